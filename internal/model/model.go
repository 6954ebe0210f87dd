package model

import (
	"fmt"
	"time"
)

// Role distinguishes faculty from students.
type Role string

const (
	RoleFaculty Role = "faculty"
	RoleStudent Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleFaculty || r == RoleStudent
}

// Status is the attendance decision recorded for a student.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// ParseStatus converts user input into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", NewValidationError("status", "must be present or absent")
	}
	return s, nil
}

// Layouts used for the lecture calendar fields. Both are fixed width so
// lexical order matches chronological order.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// User is a faculty member or a student.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Subject is a course taught by one faculty member to a set of students.
type Subject struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Code       string   `json:"code"`
	FacultyID  string   `json:"faculty_id"`
	StudentIDs []string `json:"student_ids"`
}

// Enrolled reports whether studentID belongs to the subject.
func (s Subject) Enrolled(studentID string) bool {
	for _, id := range s.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// Label renders the subject the way listings show it.
func (s Subject) Label() string {
	return s.Code + ": " + s.Name
}

// Lecture is a single scheduled session of a subject.
type Lecture struct {
	ID        string `json:"id"`
	SubjectID string `json:"subject_id"`
	FacultyID string `json:"faculty_id"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Room      string `json:"room"`
}

// StartsAt combines Date and StartTime into an instant in loc.
func (l Lecture) StartsAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, l.Date+" "+l.StartTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("lecture %s: %w", l.ID, err)
	}
	return t, nil
}

// Validate checks the field-level invariants of a lecture. Referential checks
// against subjects happen in the catalog.
func (l Lecture) Validate() error {
	verr := &ValidationError{}
	if l.SubjectID == "" {
		verr.Add("subject_id", "required")
	}
	if l.FacultyID == "" {
		verr.Add("faculty_id", "required")
	}
	if l.Title == "" {
		verr.Add("title", "required")
	}
	if l.Room == "" {
		verr.Add("room", "required")
	}
	if _, err := time.Parse(DateLayout, l.Date); err != nil {
		verr.Add("date", "must be YYYY-MM-DD")
	}
	start, serr := parseClock(l.StartTime)
	if serr != nil {
		verr.Add("start_time", "must be HH:MM")
	}
	end, eerr := parseClock(l.EndTime)
	if eerr != nil {
		verr.Add("end_time", "must be HH:MM")
	}
	if serr == nil && eerr == nil && !start.Before(end) {
		verr.Add("end_time", "must be after start time")
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// parseClock accepts only zero-padded 24h times.
func parseClock(v string) (time.Time, error) {
	if len(v) != len(TimeLayout) {
		return time.Time{}, fmt.Errorf("invalid time %q", v)
	}
	return time.Parse(TimeLayout, v)
}

// AttendanceRecord is the single decision stored for a (lecture, student) pair.
type AttendanceRecord struct {
	ID        string    `json:"id"`
	LectureID string    `json:"lecture_id"`
	StudentID string    `json:"student_id"`
	Status    Status    `json:"status"`
	MarkedBy  string    `json:"marked_by"`
	MarkedAt  time.Time `json:"marked_at"`
}

// PairKey identifies the ledger slot for a lecture/student pair.
type PairKey struct {
	LectureID string
	StudentID string
}

// Key returns the record's pair key.
func (r AttendanceRecord) Key() PairKey {
	return PairKey{LectureID: r.LectureID, StudentID: r.StudentID}
}
