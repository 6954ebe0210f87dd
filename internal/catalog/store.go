package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"coursetrack/internal/model"
)

// Store holds users, subjects and lectures. Reads are concurrent; the only
// mutation is CreateLecture.
type Store struct {
	mu        sync.RWMutex
	users     map[string]model.User
	passwords map[string][]byte // bcrypt hashes
	userOrder []string
	subjects  map[string]model.Subject
	subOrder  []string
	lectures  []model.Lecture
	lecIndex  map[string]int
}

// Credential pairs a user with a plaintext login password. Only its hash is
// kept. An empty password disables login for the user.
type Credential struct {
	model.User
	Password string
}

// New builds a store and checks every referential rule between the entities.
func New(users []Credential, subjects []model.Subject, lectures []model.Lecture) (*Store, error) {
	s := &Store{
		users:     make(map[string]model.User, len(users)),
		passwords: make(map[string][]byte, len(users)),
		subjects:  make(map[string]model.Subject, len(subjects)),
		lecIndex:  make(map[string]int, len(lectures)),
	}
	emails := make(map[string]string, len(users))
	for _, u := range users {
		if u.ID == "" {
			return nil, model.NewValidationError("user.id", "required")
		}
		if !u.Role.Valid() {
			return nil, model.NewValidationError("user.role", "must be faculty or student")
		}
		if strings.TrimSpace(u.Name) == "" {
			return nil, model.NewValidationError("user.name", "required")
		}
		if strings.TrimSpace(u.Email) == "" {
			return nil, model.NewValidationError("user.email", "required")
		}
		if _, dup := s.users[u.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate user %s", model.ErrInvariant, u.ID)
		}
		email := strings.ToLower(u.Email)
		if other, dup := emails[email]; dup {
			return nil, fmt.Errorf("%w: users %s and %s share email %s", model.ErrInvariant, other, u.ID, u.Email)
		}
		emails[email] = u.ID
		s.users[u.ID] = u.User
		if u.Password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("hash password for user %s: %w", u.ID, err)
			}
			s.passwords[u.ID] = hash
		}
		s.userOrder = append(s.userOrder, u.ID)
	}
	for _, sub := range subjects {
		if err := s.checkSubject(sub); err != nil {
			return nil, err
		}
		sub.StudentIDs = normalizeSet(sub.StudentIDs)
		s.subjects[sub.ID] = sub
		s.subOrder = append(s.subOrder, sub.ID)
	}
	for _, l := range lectures {
		if l.ID == "" {
			return nil, model.NewValidationError("lecture.id", "required")
		}
		if _, dup := s.lecIndex[l.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate lecture %s", model.ErrInvariant, l.ID)
		}
		if err := s.checkLecture(l); err != nil {
			return nil, err
		}
		s.lecIndex[l.ID] = len(s.lectures)
		s.lectures = append(s.lectures, l)
	}
	return s, nil
}

func (s *Store) checkSubject(sub model.Subject) error {
	if sub.ID == "" {
		return model.NewValidationError("subject.id", "required")
	}
	if strings.TrimSpace(sub.Name) == "" {
		return model.NewValidationError("subject.name", "required")
	}
	if strings.TrimSpace(sub.Code) == "" {
		return model.NewValidationError("subject.code", "required")
	}
	if _, dup := s.subjects[sub.ID]; dup {
		return fmt.Errorf("%w: duplicate subject %s", model.ErrInvariant, sub.ID)
	}
	if f, ok := s.users[sub.FacultyID]; !ok || f.Role != model.RoleFaculty {
		return fmt.Errorf("%w: subject %s faculty %q is not a faculty user", model.ErrInvariant, sub.ID, sub.FacultyID)
	}
	for _, id := range sub.StudentIDs {
		if u, ok := s.users[id]; !ok || u.Role != model.RoleStudent {
			return fmt.Errorf("%w: subject %s member %q is not a student", model.ErrInvariant, sub.ID, id)
		}
	}
	return nil
}

func (s *Store) checkLecture(l model.Lecture) error {
	if err := l.Validate(); err != nil {
		return err
	}
	sub, ok := s.subjects[l.SubjectID]
	if !ok {
		return fmt.Errorf("subject %s: %w", l.SubjectID, model.ErrNotFound)
	}
	if sub.FacultyID != l.FacultyID {
		return fmt.Errorf("%w: lecture faculty %s does not teach subject %s", model.ErrInvariant, l.FacultyID, sub.ID)
	}
	return nil
}

func normalizeSet(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// User returns the user with id.
func (s *Store) User(id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	return u, nil
}

// Users lists every user in catalog order.
func (s *Store) Users() []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		out = append(out, s.users[id])
	}
	return out
}

// Authenticate finds the user with email and checks password against the
// stored hash. Unknown emails and wrong passwords both yield ErrNotFound.
func (s *Store) Authenticate(email, password string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.userOrder {
		u := s.users[id]
		if !strings.EqualFold(u.Email, email) {
			continue
		}
		hash, ok := s.passwords[id]
		if ok && bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil {
			return u, nil
		}
		break
	}
	return model.User{}, fmt.Errorf("credentials: %w", model.ErrNotFound)
}

// Subject returns the subject with id.
func (s *Store) Subject(id string) (model.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subjects[id]
	if !ok {
		return model.Subject{}, fmt.Errorf("subject %s: %w", id, model.ErrNotFound)
	}
	return cloneSubject(sub), nil
}

// SubjectsByFaculty lists subjects taught by facultyID.
func (s *Store) SubjectsByFaculty(facultyID string) []model.Subject {
	return s.filterSubjects(func(sub model.Subject) bool { return sub.FacultyID == facultyID })
}

// SubjectsByStudent lists subjects studentID is enrolled in.
func (s *Store) SubjectsByStudent(studentID string) []model.Subject {
	return s.filterSubjects(func(sub model.Subject) bool { return sub.Enrolled(studentID) })
}

func (s *Store) filterSubjects(keep func(model.Subject) bool) []model.Subject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Subject
	for _, id := range s.subOrder {
		if sub := s.subjects[id]; keep(sub) {
			out = append(out, cloneSubject(sub))
		}
	}
	return out
}

func cloneSubject(sub model.Subject) model.Subject {
	sub.StudentIDs = append([]string(nil), sub.StudentIDs...)
	return sub
}

// IsEnrolled reports whether studentID is a member of subjectID.
func (s *Store) IsEnrolled(subjectID, studentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subjects[subjectID]
	return ok && sub.Enrolled(studentID)
}

// EnrolledStudents resolves the members of a subject, ordered by name.
func (s *Store) EnrolledStudents(subjectID string) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subjects[subjectID]
	if !ok {
		return nil, fmt.Errorf("subject %s: %w", subjectID, model.ErrNotFound)
	}
	out := make([]model.User, 0, len(sub.StudentIDs))
	for _, id := range sub.StudentIDs {
		if u, ok := s.users[id]; ok && u.Role == model.RoleStudent {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Lecture returns the lecture with id.
func (s *Store) Lecture(id string) (model.Lecture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.lecIndex[id]
	if !ok {
		return model.Lecture{}, fmt.Errorf("lecture %s: %w", id, model.ErrNotFound)
	}
	return s.lectures[i], nil
}

// Lectures lists every lecture in creation order.
func (s *Store) Lectures() []model.Lecture {
	return s.filterLectures(func(model.Lecture) bool { return true })
}

// LecturesBySubject lists lectures of subjectID in creation order.
func (s *Store) LecturesBySubject(subjectID string) []model.Lecture {
	return s.filterLectures(func(l model.Lecture) bool { return l.SubjectID == subjectID })
}

// LecturesByFaculty lists lectures taught by facultyID.
func (s *Store) LecturesByFaculty(facultyID string) []model.Lecture {
	return s.filterLectures(func(l model.Lecture) bool { return l.FacultyID == facultyID })
}

// LecturesForStudent lists lectures of every subject studentID is enrolled in.
func (s *Store) LecturesForStudent(studentID string) []model.Lecture {
	s.mu.RLock()
	enrolled := make(map[string]bool)
	for id, sub := range s.subjects {
		if sub.Enrolled(studentID) {
			enrolled[id] = true
		}
	}
	s.mu.RUnlock()
	return s.filterLectures(func(l model.Lecture) bool { return enrolled[l.SubjectID] })
}

func (s *Store) filterLectures(keep func(model.Lecture) bool) []model.Lecture {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Lecture
	for _, l := range s.lectures {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}

// CreateLecture schedules a new lecture on behalf of facultyID.
func (s *Store) CreateLecture(ctx context.Context, facultyID string, in LectureInput) (model.Lecture, error) {
	if err := ctx.Err(); err != nil {
		return model.Lecture{}, err
	}
	if err := in.Validate(); err != nil {
		return model.Lecture{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.users[facultyID]; !ok {
		return model.Lecture{}, fmt.Errorf("user %s: %w", facultyID, model.ErrNotFound)
	} else if f.Role != model.RoleFaculty {
		return model.Lecture{}, fmt.Errorf("%w: user %s is not faculty", model.ErrInvariant, facultyID)
	}

	l := model.Lecture{
		SubjectID: in.SubjectID,
		FacultyID: facultyID,
		Title:     in.Title,
		Date:      in.Date,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Room:      in.Room,
	}
	if err := s.checkLecture(l); err != nil {
		return model.Lecture{}, err
	}

	// Records can outlive the in-memory catalog, so created ids must never
	// collide with a lecture from an earlier process.
	l.ID = uuid.NewString()
	s.lecIndex[l.ID] = len(s.lectures)
	s.lectures = append(s.lectures, l)
	return l, nil
}
