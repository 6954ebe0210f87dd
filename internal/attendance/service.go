package attendance

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"coursetrack/internal/metrics"
	"coursetrack/internal/model"
	"coursetrack/internal/queue"
)

// Directory is the catalog view the service validates marks against.
type Directory interface {
	User(id string) (model.User, error)
	Lecture(id string) (model.Lecture, error)
	Subject(id string) (model.Subject, error)
	EnrolledStudents(subjectID string) ([]model.User, error)
}

// Publisher receives an event for every accepted mark. Optional.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Service coordinates attendance marking on top of a Ledger.
type Service struct {
	dir    Directory
	ledger Ledger
	pub    Publisher
	now    func() time.Time
}

// NewService creates a service. A nil now defaults to time.Now.
func NewService(dir Directory, ledger Ledger, pub Publisher, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{dir: dir, ledger: ledger, pub: pub, now: now}
}

// Ledger exposes the underlying store for read paths.
func (s *Service) Ledger() Ledger {
	return s.ledger
}

// UpsertAttendance records status for studentID at lectureID, replacing any
// earlier decision for the same pair.
func (s *Service) UpsertAttendance(ctx context.Context, lectureID, studentID string, status model.Status, markedBy string) (model.AttendanceRecord, error) {
	timer := prometheus.NewTimer(metrics.UpsertDuration)
	defer timer.ObserveDuration()

	rec, created, err := s.upsert(ctx, lectureID, studentID, status, markedBy)
	if err != nil {
		metrics.AttendanceUpserts.WithLabelValues(metrics.ResultRejected).Inc()
		return model.AttendanceRecord{}, err
	}
	result := metrics.ResultUpdated
	if created {
		result = metrics.ResultCreated
	}
	metrics.AttendanceUpserts.WithLabelValues(result).Inc()
	metrics.AttendanceMarks.WithLabelValues(string(rec.Status)).Inc()

	if s.pub != nil {
		msg := queue.Message{
			Type:      queue.TypeAttendanceMarked,
			LectureID: rec.LectureID,
			StudentID: rec.StudentID,
			Status:    string(rec.Status),
			At:        rec.MarkedAt,
		}
		if err := s.pub.Publish(ctx, msg); err != nil {
			log.Printf("publish attendance event for lecture %s: %v", rec.LectureID, err)
		}
	}
	return rec, nil
}

func (s *Service) upsert(ctx context.Context, lectureID, studentID string, status model.Status, markedBy string) (model.AttendanceRecord, bool, error) {
	verr := &model.ValidationError{}
	if lectureID == "" {
		verr.Add("lecture_id", "required")
	}
	if studentID == "" {
		verr.Add("student_id", "required")
	}
	if markedBy == "" {
		verr.Add("marked_by", "required")
	}
	if !status.Valid() {
		verr.Add("status", "must be present or absent")
	}
	if verr.HasErrors() {
		return model.AttendanceRecord{}, false, verr
	}

	lecture, err := s.dir.Lecture(lectureID)
	if err != nil {
		return model.AttendanceRecord{}, false, err
	}
	student, err := s.dir.User(studentID)
	if err != nil {
		return model.AttendanceRecord{}, false, err
	}
	if student.Role != model.RoleStudent {
		return model.AttendanceRecord{}, false, fmt.Errorf("%w: user %s is not a student", model.ErrInvariant, studentID)
	}
	subject, err := s.dir.Subject(lecture.SubjectID)
	if err != nil {
		return model.AttendanceRecord{}, false, err
	}
	if !subject.Enrolled(studentID) {
		return model.AttendanceRecord{}, false, fmt.Errorf("student %s, subject %s: %w", studentID, subject.ID, model.ErrNotEnrolled)
	}
	marker, err := s.dir.User(markedBy)
	if err != nil {
		return model.AttendanceRecord{}, false, err
	}
	if marker.Role != model.RoleFaculty || marker.ID != lecture.FacultyID {
		return model.AttendanceRecord{}, false, fmt.Errorf("%w: user %s does not teach lecture %s", model.ErrInvariant, markedBy, lectureID)
	}

	return s.ledger.Upsert(ctx, model.AttendanceRecord{
		LectureID: lectureID,
		StudentID: studentID,
		Status:    status,
		MarkedBy:  markedBy,
		MarkedAt:  s.now().UTC(),
	})
}

// BatchResult reports a multi-student mark. Each student is saved
// independently, so a batch can partially succeed.
type BatchResult struct {
	Saved  []model.AttendanceRecord `json:"saved"`
	Failed map[string]error         `json:"-"`
}

// OK reports whether every mark was saved.
func (r BatchResult) OK() bool {
	return len(r.Failed) == 0
}

// MarkBatch upserts one decision per student, in student id order.
func (s *Service) MarkBatch(ctx context.Context, lectureID string, marks map[string]model.Status, markedBy string) BatchResult {
	ids := make([]string, 0, len(marks))
	for id := range marks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	res := BatchResult{Saved: []model.AttendanceRecord{}, Failed: make(map[string]error)}
	for _, id := range ids {
		rec, err := s.UpsertAttendance(ctx, lectureID, id, marks[id], markedBy)
		if err != nil {
			res.Failed[id] = err
			continue
		}
		res.Saved = append(res.Saved, rec)
	}
	return res
}

// MarkAll applies status to every student enrolled in the lecture's subject.
func (s *Service) MarkAll(ctx context.Context, lectureID string, status model.Status, markedBy string) (BatchResult, error) {
	lecture, err := s.dir.Lecture(lectureID)
	if err != nil {
		return BatchResult{}, err
	}
	students, err := s.dir.EnrolledStudents(lecture.SubjectID)
	if err != nil {
		return BatchResult{}, err
	}
	marks := make(map[string]model.Status, len(students))
	for _, u := range students {
		marks[u.ID] = status
	}
	return s.MarkBatch(ctx, lectureID, marks, markedBy), nil
}
