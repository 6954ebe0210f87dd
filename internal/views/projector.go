package views

import (
	"context"
	"fmt"
	"time"

	"coursetrack/internal/model"
	"coursetrack/internal/stats"
)

// cardLimit caps the lecture lists on dashboards.
const cardLimit = 5

// Catalog is the reference data the projector reads.
type Catalog interface {
	User(id string) (model.User, error)
	Subject(id string) (model.Subject, error)
	Lecture(id string) (model.Lecture, error)
	SubjectsByFaculty(facultyID string) []model.Subject
	SubjectsByStudent(studentID string) []model.Subject
	LecturesBySubject(subjectID string) []model.Lecture
	LecturesByFaculty(facultyID string) []model.Lecture
	LecturesForStudent(studentID string) []model.Lecture
	EnrolledStudents(subjectID string) ([]model.User, error)
}

// Records is the read side of the attendance ledger.
type Records interface {
	Records(ctx context.Context) ([]model.AttendanceRecord, error)
	ForLecture(ctx context.Context, lectureID string) ([]model.AttendanceRecord, error)
	ForStudent(ctx context.Context, studentID string) ([]model.AttendanceRecord, error)
}

// Projector assembles role specific views from the catalog and ledger.
type Projector struct {
	cat     Catalog
	records Records
	now     func() time.Time
}

// NewProjector creates a projector. now supplies the instant (and location)
// lectures are partitioned against; nil means time.Now.
func NewProjector(cat Catalog, records Records, now func() time.Time) *Projector {
	if now == nil {
		now = time.Now
	}
	return &Projector{cat: cat, records: records, now: now}
}

// LectureCard is a lecture line on a dashboard or list.
type LectureCard struct {
	Lecture    model.Lecture `json:"lecture"`
	Subject    string        `json:"subject"`
	Attendance *stats.Tally  `json:"attendance,omitempty"`
	Tier       stats.Tier    `json:"tier,omitempty"`
}

func (p *Projector) card(l model.Lecture, records []model.AttendanceRecord, withStats bool) LectureCard {
	c := LectureCard{Lecture: l, Subject: "Unknown Subject"}
	if sub, err := p.cat.Subject(l.SubjectID); err == nil {
		c.Subject = sub.Label()
	}
	if withStats {
		t := stats.LectureTally(records, l.ID)
		c.Attendance = &t
		c.Tier = stats.StatusTier(t.Percentage)
	}
	return c
}

func (p *Projector) requireRole(id string, role model.Role) (model.User, error) {
	u, err := p.cat.User(id)
	if err != nil {
		return model.User{}, err
	}
	if u.Role != role {
		return model.User{}, fmt.Errorf("%w: user %s is not %s", model.ErrInvariant, id, role)
	}
	return u, nil
}

// split sorts lectures by start and partitions them around now.
func (p *Projector) split(lectures []model.Lecture, dir stats.Direction) (stats.Partition, error) {
	now := p.now()
	sorted, err := stats.SortByStart(lectures, now.Location())
	if err != nil {
		return stats.Partition{}, err
	}
	return stats.PartitionByTime(sorted, now, dir)
}

// SubjectCard summarises one subject a faculty member teaches.
type SubjectCard struct {
	Subject      model.Subject `json:"subject"`
	LectureCount int           `json:"lecture_count"`
	StudentCount int           `json:"student_count"`
}

// FacultyDashboard is the landing view for faculty.
type FacultyDashboard struct {
	Faculty       model.User    `json:"faculty"`
	SubjectCount  int           `json:"subject_count"`
	StudentCount  int           `json:"student_count"`
	UpcomingCount int           `json:"upcoming_count"`
	Upcoming      []LectureCard `json:"upcoming"`
	Recent        []LectureCard `json:"recent"`
	// RecentAttendance is the rate of the most recent past lecture, nil when
	// no lecture has taken place yet.
	RecentAttendance *int          `json:"recent_attendance"`
	Subjects         []SubjectCard `json:"subjects"`
}

// FacultyDashboard builds the faculty landing view.
func (p *Projector) FacultyDashboard(ctx context.Context, facultyID string) (FacultyDashboard, error) {
	faculty, err := p.requireRole(facultyID, model.RoleFaculty)
	if err != nil {
		return FacultyDashboard{}, err
	}
	records, err := p.records.Records(ctx)
	if err != nil {
		return FacultyDashboard{}, err
	}

	subjects := p.cat.SubjectsByFaculty(facultyID)
	students := make(map[string]struct{})
	d := FacultyDashboard{
		Faculty:      faculty,
		SubjectCount: len(subjects),
		Upcoming:     []LectureCard{},
		Recent:       []LectureCard{},
		Subjects:     make([]SubjectCard, 0, len(subjects)),
	}
	for _, sub := range subjects {
		for _, id := range sub.StudentIDs {
			students[id] = struct{}{}
		}
		d.Subjects = append(d.Subjects, SubjectCard{
			Subject:      sub,
			LectureCount: len(p.cat.LecturesBySubject(sub.ID)),
			StudentCount: len(sub.StudentIDs),
		})
	}
	d.StudentCount = len(students)

	part, err := p.split(p.cat.LecturesByFaculty(facultyID), stats.PastDescending)
	if err != nil {
		return FacultyDashboard{}, err
	}
	d.UpcomingCount = len(part.Upcoming)
	for i, l := range part.Upcoming {
		if i == cardLimit {
			break
		}
		d.Upcoming = append(d.Upcoming, p.card(l, records, false))
	}
	for i, l := range part.Past {
		if i == cardLimit {
			break
		}
		d.Recent = append(d.Recent, p.card(l, records, true))
	}
	if len(d.Recent) > 0 {
		pct := d.Recent[0].Attendance.Percentage
		d.RecentAttendance = &pct
	}
	return d, nil
}

// StudentSubjectCard is a subject with the student's rate in it.
type StudentSubjectCard struct {
	Subject    model.Subject `json:"subject"`
	Percentage int           `json:"percentage"`
	Tier       stats.Tier    `json:"tier"`
}

// StudentDashboard is the landing view for students.
type StudentDashboard struct {
	Student       model.User           `json:"student"`
	SubjectCount  int                  `json:"subject_count"`
	UpcomingCount int                  `json:"upcoming_count"`
	Upcoming      []LectureCard        `json:"upcoming"`
	Overall       int                  `json:"overall"`
	OverallTier   stats.Tier           `json:"overall_tier"`
	Standing      string               `json:"standing"`
	Subjects      []StudentSubjectCard `json:"subjects"`
}

// StudentDashboard builds the student landing view.
func (p *Projector) StudentDashboard(ctx context.Context, studentID string) (StudentDashboard, error) {
	student, err := p.requireRole(studentID, model.RoleStudent)
	if err != nil {
		return StudentDashboard{}, err
	}
	records, err := p.records.ForStudent(ctx, studentID)
	if err != nil {
		return StudentDashboard{}, err
	}
	lectures := p.cat.LecturesForStudent(studentID)

	subjects := p.cat.SubjectsByStudent(studentID)
	d := StudentDashboard{
		Student:      student,
		SubjectCount: len(subjects),
		Upcoming:     []LectureCard{},
		Subjects:     make([]StudentSubjectCard, 0, len(subjects)),
	}
	for _, sub := range subjects {
		pct := stats.SubjectPercentageForStudent(lectures, records, sub.ID, studentID)
		d.Subjects = append(d.Subjects, StudentSubjectCard{Subject: sub, Percentage: pct, Tier: stats.StatusTier(pct)})
	}

	part, err := p.split(lectures, stats.Ascending)
	if err != nil {
		return StudentDashboard{}, err
	}
	d.UpcomingCount = len(part.Upcoming)
	for i, l := range part.Upcoming {
		if i == cardLimit {
			break
		}
		d.Upcoming = append(d.Upcoming, p.card(l, nil, false))
	}

	d.Overall = stats.OverallPercentageForStudent(records, studentID)
	d.OverallTier = stats.StatusTier(d.Overall)
	d.Standing = d.OverallTier.Label()
	return d, nil
}

// Roster resolves a lecture and builds its attendance sheet.
func (p *Projector) Roster(ctx context.Context, lectureID string) (Roster, error) {
	lecture, err := p.cat.Lecture(lectureID)
	if err != nil {
		return Roster{}, err
	}
	subject, err := p.cat.Subject(lecture.SubjectID)
	if err != nil {
		return Roster{}, err
	}
	students, err := p.cat.EnrolledStudents(subject.ID)
	if err != nil {
		return Roster{}, err
	}
	records, err := p.records.ForLecture(ctx, lectureID)
	if err != nil {
		return Roster{}, err
	}
	return BuildRoster(lecture, subject, students, records), nil
}

// HistoryRow is one lecture of a subject from a student's point of view.
type HistoryRow struct {
	Lecture  model.Lecture `json:"lecture"`
	State    State         `json:"state"`
	MarkedAt *time.Time    `json:"marked_at,omitempty"`
}

// SubjectHistory is a student's attendance breakdown for one subject.
type SubjectHistory struct {
	Subject       model.Subject `json:"subject"`
	Summary       stats.Tally   `json:"summary"`
	TotalLectures int           `json:"total_lectures"`
	Unmarked      int           `json:"unmarked"`
	Tier          stats.Tier    `json:"tier"`
	Advice        string        `json:"advice"`
	Rows          []HistoryRow  `json:"rows"`
}

// SubjectHistory builds the per-lecture breakdown for studentID in subjectID,
// newest lecture first.
func (p *Projector) SubjectHistory(ctx context.Context, studentID, subjectID string) (SubjectHistory, error) {
	if _, err := p.requireRole(studentID, model.RoleStudent); err != nil {
		return SubjectHistory{}, err
	}
	subject, err := p.cat.Subject(subjectID)
	if err != nil {
		return SubjectHistory{}, err
	}
	if !subject.Enrolled(studentID) {
		return SubjectHistory{}, fmt.Errorf("student %s, subject %s: %w", studentID, subjectID, model.ErrNotEnrolled)
	}
	records, err := p.records.ForStudent(ctx, studentID)
	if err != nil {
		return SubjectHistory{}, err
	}
	lectures := p.cat.LecturesBySubject(subjectID)

	summary := stats.SubjectTallyForStudent(lectures, records, subjectID, studentID)
	h := SubjectHistory{
		Subject:       subject,
		Summary:       summary,
		TotalLectures: len(lectures),
		Unmarked:      len(lectures) - summary.Total,
		Tier:          stats.StatusTier(summary.Percentage),
		Rows:          make([]HistoryRow, 0, len(lectures)),
	}
	h.Advice = h.Tier.Advice()

	byLecture := make(map[string]model.AttendanceRecord, len(records))
	for _, r := range records {
		byLecture[r.LectureID] = r
	}
	part, err := p.split(lectures, stats.PastDescending)
	if err != nil {
		return SubjectHistory{}, err
	}
	for i := len(part.Upcoming) - 1; i >= 0; i-- {
		h.Rows = append(h.Rows, historyRow(part.Upcoming[i], byLecture, StateUpcoming))
	}
	for _, l := range part.Past {
		h.Rows = append(h.Rows, historyRow(l, byLecture, StateNotMarked))
	}
	return h, nil
}

func historyRow(l model.Lecture, byLecture map[string]model.AttendanceRecord, missing State) HistoryRow {
	row := HistoryRow{Lecture: l, State: missing}
	if r, ok := byLecture[l.ID]; ok {
		row.State = stateOf(&r)
		at := r.MarkedAt
		row.MarkedAt = &at
	}
	return row
}

// SubjectOption is a filter choice on the lecture list.
type SubjectOption struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

// StudentLectures lists a student's lectures, upcoming first in start order and
// past most recent first.
type StudentLectures struct {
	Subjects []SubjectOption `json:"subjects"`
	Filter   string          `json:"filter"`
	Upcoming []LectureCard   `json:"upcoming"`
	Past     []LectureCard   `json:"past"`
}

// AllSubjects is the filter value that disables subject filtering.
const AllSubjects = "all"

// StudentLectures builds the lecture list for studentID, optionally limited to
// one subject.
func (p *Projector) StudentLectures(ctx context.Context, studentID, subjectFilter string) (StudentLectures, error) {
	if err := ctx.Err(); err != nil {
		return StudentLectures{}, err
	}
	if _, err := p.requireRole(studentID, model.RoleStudent); err != nil {
		return StudentLectures{}, err
	}
	if subjectFilter == "" {
		subjectFilter = AllSubjects
	}
	out := StudentLectures{Filter: subjectFilter, Upcoming: []LectureCard{}, Past: []LectureCard{}}
	for _, sub := range p.cat.SubjectsByStudent(studentID) {
		out.Subjects = append(out.Subjects, SubjectOption{ID: sub.ID, Code: sub.Code})
	}

	var lectures []model.Lecture
	for _, l := range p.cat.LecturesForStudent(studentID) {
		if subjectFilter == AllSubjects || l.SubjectID == subjectFilter {
			lectures = append(lectures, l)
		}
	}
	part, err := p.split(lectures, stats.PastDescending)
	if err != nil {
		return StudentLectures{}, err
	}
	for _, l := range part.Upcoming {
		out.Upcoming = append(out.Upcoming, p.card(l, nil, false))
	}
	for _, l := range part.Past {
		out.Past = append(out.Past, p.card(l, nil, false))
	}
	return out, nil
}
