// Package stats derives attendance percentages, status tiers and lecture
// time partitions from catalog and ledger snapshots. Every function is pure.
package stats

import (
	"math"
	"sort"
	"time"

	"coursetrack/internal/model"
)

// Percent returns present/total as a whole percentage, or 0 when nothing
// has been marked.
func Percent(present, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(present) / float64(total) * 100))
}

// Tally summarises a set of records.
type Tally struct {
	Present    int `json:"present"`
	Absent     int `json:"absent"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Count tallies records that satisfy keep. A nil keep counts everything.
func Count(records []model.AttendanceRecord, keep func(model.AttendanceRecord) bool) Tally {
	var t Tally
	for _, r := range records {
		if keep != nil && !keep(r) {
			continue
		}
		t.Total++
		switch r.Status {
		case model.StatusPresent:
			t.Present++
		case model.StatusAbsent:
			t.Absent++
		}
	}
	t.Percentage = Percent(t.Present, t.Total)
	return t
}

// LectureTally summarises the records of one lecture.
func LectureTally(records []model.AttendanceRecord, lectureID string) Tally {
	return Count(records, func(r model.AttendanceRecord) bool { return r.LectureID == lectureID })
}

// LecturePercentage is the share of marked students present at lectureID.
func LecturePercentage(records []model.AttendanceRecord, lectureID string) int {
	return LectureTally(records, lectureID).Percentage
}

// SubjectTallyForStudent summarises studentID's records across the lectures
// of subjectID.
func SubjectTallyForStudent(lectures []model.Lecture, records []model.AttendanceRecord, subjectID, studentID string) Tally {
	inSubject := make(map[string]bool)
	for _, l := range lectures {
		if l.SubjectID == subjectID {
			inSubject[l.ID] = true
		}
	}
	return Count(records, func(r model.AttendanceRecord) bool {
		return r.StudentID == studentID && inSubject[r.LectureID]
	})
}

// SubjectPercentageForStudent is studentID's attendance rate in subjectID.
func SubjectPercentageForStudent(lectures []model.Lecture, records []model.AttendanceRecord, subjectID, studentID string) int {
	return SubjectTallyForStudent(lectures, records, subjectID, studentID).Percentage
}

// OverallPercentageForStudent is studentID's attendance rate across all
// marked lectures.
func OverallPercentageForStudent(records []model.AttendanceRecord, studentID string) int {
	return Count(records, func(r model.AttendanceRecord) bool { return r.StudentID == studentID }).Percentage
}

// Tier is the qualitative band of a percentage.
type Tier string

const (
	TierGood    Tier = "good"
	TierAverage Tier = "average"
	TierPoor    Tier = "poor"
)

// StatusTier classifies p: above 75 is good, above 50 average, the rest poor.
func StatusTier(p int) Tier {
	switch {
	case p > 75:
		return TierGood
	case p > 50:
		return TierAverage
	default:
		return TierPoor
	}
}

// Label is the standing shown next to an overall percentage.
func (t Tier) Label() string {
	switch t {
	case TierGood:
		return "Good Standing"
	case TierAverage:
		return "Average"
	default:
		return "Poor - Attention Required"
	}
}

// Advice is the message shown on a subject breakdown.
func (t Tier) Advice() string {
	switch t {
	case TierGood:
		return "Excellent! Keep up the good attendance."
	case TierAverage:
		return "Average attendance. Try to attend more classes."
	default:
		return "Poor attendance. You need to improve your attendance."
	}
}

// Direction controls how PartitionByTime orders the past group.
type Direction int

const (
	// Ascending keeps input order in both groups.
	Ascending Direction = iota
	// PastDescending reverses the past group so the most recent comes first.
	PastDescending
)

// Partition splits lectures around an instant.
type Partition struct {
	Upcoming []model.Lecture `json:"upcoming"`
	Past     []model.Lecture `json:"past"`
}

// PartitionByTime places each lecture whose start is at or after now in
// Upcoming and the rest in Past, preserving input order. Start instants are
// read in now's location.
func PartitionByTime(lectures []model.Lecture, now time.Time, dir Direction) (Partition, error) {
	p := Partition{Upcoming: []model.Lecture{}, Past: []model.Lecture{}}
	for _, l := range lectures {
		at, err := l.StartsAt(now.Location())
		if err != nil {
			return Partition{}, err
		}
		if at.Before(now) {
			p.Past = append(p.Past, l)
		} else {
			p.Upcoming = append(p.Upcoming, l)
		}
	}
	if dir == PastDescending {
		for i, j := 0, len(p.Past)-1; i < j; i, j = i+1, j-1 {
			p.Past[i], p.Past[j] = p.Past[j], p.Past[i]
		}
	}
	return p, nil
}

// SortByStart returns a copy of lectures stably ordered by start instant.
func SortByStart(lectures []model.Lecture, loc *time.Location) ([]model.Lecture, error) {
	type keyed struct {
		at time.Time
		l  model.Lecture
	}
	ks := make([]keyed, len(lectures))
	for i, l := range lectures {
		at, err := l.StartsAt(loc)
		if err != nil {
			return nil, err
		}
		ks[i] = keyed{at: at, l: l}
	}
	sort.SliceStable(ks, func(i, j int) bool { return ks[i].at.Before(ks[j].at) })
	out := make([]model.Lecture, len(ks))
	for i, k := range ks {
		out[i] = k.l
	}
	return out, nil
}
