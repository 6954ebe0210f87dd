package views

import (
	"encoding/csv"
	"io"
	"time"

	"coursetrack/internal/model"
	"coursetrack/internal/stats"
)

// State is how a student appears on a lecture roster.
type State string

const (
	StatePresent   State = "present"
	StateAbsent    State = "absent"
	StateNotMarked State = "not_marked"
	// StateUpcoming marks a lecture without a record that has not started yet.
	StateUpcoming State = "upcoming"
)

// Label renders the state for display.
func (s State) Label() string {
	switch s {
	case StatePresent:
		return "Present"
	case StateAbsent:
		return "Absent"
	case StateUpcoming:
		return "Upcoming"
	default:
		return "Not Marked"
	}
}

func stateOf(rec *model.AttendanceRecord) State {
	if rec == nil {
		return StateNotMarked
	}
	if rec.Status == model.StatusPresent {
		return StatePresent
	}
	return StateAbsent
}

// RosterEntry is one enrolled student and their mark for the lecture.
type RosterEntry struct {
	Student  model.User `json:"student"`
	State    State      `json:"state"`
	MarkedAt *time.Time `json:"marked_at,omitempty"`
	MarkedBy string     `json:"marked_by,omitempty"`
}

// Roster is the per-lecture attendance sheet.
type Roster struct {
	Lecture model.Lecture `json:"lecture"`
	Subject model.Subject `json:"subject"`
	Entries []RosterEntry `json:"entries"`
	Summary stats.Tally   `json:"summary"`
	Tier    stats.Tier    `json:"tier"`
}

// BuildRoster lays out every enrolled student with their record for lecture.
// Students without a record are StateNotMarked, never absent.
func BuildRoster(lecture model.Lecture, subject model.Subject, students []model.User, records []model.AttendanceRecord) Roster {
	byStudent := make(map[string]model.AttendanceRecord)
	for _, r := range records {
		if r.LectureID == lecture.ID {
			byStudent[r.StudentID] = r
		}
	}
	entries := make([]RosterEntry, 0, len(students))
	for _, u := range students {
		e := RosterEntry{Student: u, State: StateNotMarked}
		if r, ok := byStudent[u.ID]; ok {
			e.State = stateOf(&r)
			at := r.MarkedAt
			e.MarkedAt = &at
			e.MarkedBy = r.MarkedBy
		}
		entries = append(entries, e)
	}
	summary := stats.LectureTally(records, lecture.ID)
	return Roster{
		Lecture: lecture,
		Subject: subject,
		Entries: entries,
		Summary: summary,
		Tier:    stats.StatusTier(summary.Percentage),
	}
}

// WriteCSV writes the roster as a CSV sheet with a header row.
func (r Roster) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"student_id", "name", "email", "status", "marked_at"}); err != nil {
		return err
	}
	for _, e := range r.Entries {
		markedAt := ""
		if e.MarkedAt != nil {
			markedAt = e.MarkedAt.UTC().Format(time.RFC3339)
		}
		if err := cw.Write([]string{e.Student.ID, e.Student.Name, e.Student.Email, e.State.Label(), markedAt}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
