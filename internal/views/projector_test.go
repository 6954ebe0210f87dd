package views

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursetrack/internal/attendance"
	"coursetrack/internal/catalog"
	"coursetrack/internal/model"
	"coursetrack/internal/stats"
)

var (
	today = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	// between lecture 1 (09:00) and lecture 3 (11:00) of the seeded day
	midMorning = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
)

func setup(t *testing.T, now time.Time) *Projector {
	t.Helper()
	cat, records, err := catalog.Seed(today)
	require.NoError(t, err)
	ledger, err := attendance.NewMemoryLedger(records...)
	require.NoError(t, err)
	return NewProjector(cat, ledger, func() time.Time { return now })
}

func lectureIDs(cards []LectureCard) []string {
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.Lecture.ID)
	}
	return out
}

func TestBuildRosterDistinguishesNotMarked(t *testing.T) {
	lecture := model.Lecture{ID: "L1", SubjectID: "S1"}
	subject := model.Subject{ID: "S1", StudentIDs: []string{"A", "B", "C"}}
	students := []model.User{{ID: "A", Name: "Ann"}, {ID: "B", Name: "Ben"}, {ID: "C", Name: "Cid"}}
	at := time.Date(2024, 3, 4, 9, 15, 0, 0, time.UTC)
	records := []model.AttendanceRecord{
		{ID: "1", LectureID: "L1", StudentID: "A", Status: model.StatusPresent, MarkedBy: "F", MarkedAt: at},
		{ID: "2", LectureID: "L1", StudentID: "B", Status: model.StatusAbsent, MarkedBy: "F", MarkedAt: at},
		{ID: "3", LectureID: "L2", StudentID: "C", Status: model.StatusPresent, MarkedBy: "F", MarkedAt: at},
	}

	r := BuildRoster(lecture, subject, students, records)
	require.Len(t, r.Entries, 3)
	assert.Equal(t, StatePresent, r.Entries[0].State)
	assert.Equal(t, StateAbsent, r.Entries[1].State)
	assert.Equal(t, StateNotMarked, r.Entries[2].State)
	assert.Nil(t, r.Entries[2].MarkedAt)
	require.NotNil(t, r.Entries[0].MarkedAt)
	assert.Equal(t, at, *r.Entries[0].MarkedAt)
	assert.Equal(t, stats.Tally{Present: 1, Absent: 1, Total: 2, Percentage: 50}, r.Summary)
	assert.Equal(t, stats.TierPoor, r.Tier)
}

func TestRosterFromSeed(t *testing.T) {
	p := setup(t, midMorning)
	ctx := context.Background()

	r, err := p.Roster(ctx, "1")
	require.NoError(t, err)
	var states []State
	for _, e := range r.Entries {
		states = append(states, e.State)
	}
	assert.Equal(t, []State{StatePresent, StatePresent, StateAbsent, StatePresent}, states)
	assert.Equal(t, 75, r.Summary.Percentage)
	assert.Equal(t, stats.TierAverage, r.Tier)

	r, err = p.Roster(ctx, "3")
	require.NoError(t, err)
	require.Len(t, r.Entries, 3)
	for _, e := range r.Entries {
		assert.Equal(t, StateNotMarked, e.State)
	}
	assert.Equal(t, 0, r.Summary.Percentage)

	_, err = p.Roster(ctx, "99")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRosterCSV(t *testing.T) {
	p := setup(t, midMorning)
	r, err := p.Roster(context.Background(), "1")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.WriteCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "student_id,name,email,status,marked_at", lines[0])
	assert.Equal(t, "3,Alice Student,student@example.com,Present,2024-03-04T09:15:00Z", lines[1])
	assert.Equal(t, "5,Charlie Brown,charlie@example.com,Absent,2024-03-04T09:15:00Z", lines[3])
}

func TestFacultyDashboard(t *testing.T) {
	p := setup(t, midMorning)

	d, err := p.FacultyDashboard(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, 2, d.SubjectCount)
	assert.Equal(t, 4, d.StudentCount)
	assert.Equal(t, 2, d.UpcomingCount)
	assert.Equal(t, []string{"3", "2"}, lectureIDs(d.Upcoming))
	assert.Equal(t, []string{"1"}, lectureIDs(d.Recent))
	assert.Equal(t, "CS101: Introduction to Computer Science", d.Recent[0].Subject)
	require.NotNil(t, d.RecentAttendance)
	assert.Equal(t, 75, *d.RecentAttendance)
	assert.Equal(t, stats.TierAverage, d.Recent[0].Tier)
	require.Len(t, d.Subjects, 2)
	assert.Equal(t, 2, d.Subjects[0].LectureCount)
	assert.Equal(t, 3, d.Subjects[1].StudentCount)
}

func TestFacultyDashboardWithoutPastLectures(t *testing.T) {
	p := setup(t, today)

	d, err := p.FacultyDashboard(context.Background(), "2")
	require.NoError(t, err)
	assert.Nil(t, d.RecentAttendance)
	assert.Empty(t, d.Recent)
	assert.Equal(t, []string{"5", "4"}, lectureIDs(d.Upcoming))
}

func TestDashboardsCheckRole(t *testing.T) {
	p := setup(t, midMorning)
	ctx := context.Background()

	_, err := p.FacultyDashboard(ctx, "3")
	assert.ErrorIs(t, err, model.ErrInvariant)
	_, err = p.StudentDashboard(ctx, "1")
	assert.ErrorIs(t, err, model.ErrInvariant)
	_, err = p.StudentDashboard(ctx, "99")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestStudentDashboard(t *testing.T) {
	p := setup(t, midMorning)

	d, err := p.StudentDashboard(context.Background(), "3")
	require.NoError(t, err)
	assert.Equal(t, 3, d.SubjectCount)
	assert.Equal(t, 3, d.UpcomingCount)
	assert.Equal(t, []string{"3", "2", "4"}, lectureIDs(d.Upcoming))
	assert.Equal(t, 100, d.Overall)
	assert.Equal(t, stats.TierGood, d.OverallTier)
	assert.Equal(t, "Good Standing", d.Standing)
	require.Len(t, d.Subjects, 3)
	assert.Equal(t, 100, d.Subjects[0].Percentage)
	assert.Equal(t, 0, d.Subjects[1].Percentage)
	assert.Equal(t, stats.TierPoor, d.Subjects[1].Tier)

	d, err = p.StudentDashboard(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, 0, d.Overall)
	assert.Equal(t, "Poor - Attention Required", d.Standing)
}

func TestSubjectHistory(t *testing.T) {
	ctx := context.Background()
	p := setup(t, midMorning)

	h, err := p.SubjectHistory(ctx, "3", "1")
	require.NoError(t, err)
	assert.Equal(t, 2, h.TotalLectures)
	assert.Equal(t, 1, h.Unmarked)
	assert.Equal(t, stats.Tally{Present: 1, Total: 1, Percentage: 100}, h.Summary)
	assert.Equal(t, "Excellent! Keep up the good attendance.", h.Advice)
	require.Len(t, h.Rows, 2)
	assert.Equal(t, "2", h.Rows[0].Lecture.ID)
	assert.Equal(t, StateUpcoming, h.Rows[0].State)
	assert.Equal(t, "1", h.Rows[1].Lecture.ID)
	assert.Equal(t, StatePresent, h.Rows[1].State)

	later := setup(t, time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC))
	h, err = later.SubjectHistory(ctx, "3", "1")
	require.NoError(t, err)
	assert.Equal(t, StateNotMarked, h.Rows[0].State)

	_, err = p.SubjectHistory(ctx, "5", "2")
	assert.ErrorIs(t, err, model.ErrNotEnrolled)
	_, err = p.SubjectHistory(ctx, "3", "99")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestStudentLectures(t *testing.T) {
	ctx := context.Background()
	p := setup(t, midMorning)

	l, err := p.StudentLectures(ctx, "4", "")
	require.NoError(t, err)
	assert.Equal(t, AllSubjects, l.Filter)
	assert.Equal(t, []string{"3", "2", "5"}, lectureIDs(l.Upcoming))
	assert.Equal(t, []string{"1"}, lectureIDs(l.Past))
	assert.Len(t, l.Subjects, 3)

	l, err = p.StudentLectures(ctx, "4", "2")
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, lectureIDs(l.Upcoming))
	assert.Empty(t, l.Past)

	late := setup(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC))
	l, err = late.StudentLectures(ctx, "4", AllSubjects)
	require.NoError(t, err)
	assert.Empty(t, l.Upcoming)
	assert.Equal(t, []string{"5", "2", "3", "1"}, lectureIDs(l.Past))
}

func TestStateLabels(t *testing.T) {
	assert.Equal(t, "Not Marked", StateNotMarked.Label())
	assert.Equal(t, "Upcoming", StateUpcoming.Label())
}

func TestRosterOfLectureCreatedAfterRestart(t *testing.T) {
	ctx := context.Background()
	clock := func() time.Time { return midMorning }
	ledger, err := attendance.NewMemoryLedger()
	require.NoError(t, err)
	in := catalog.LectureInput{SubjectID: "1", Title: "Recursion", Date: "2024-03-04", StartTime: "08:00", EndTime: "09:00", Room: "Room 101"}

	// first process: schedule a lecture and mark a student against it
	before, _, err := catalog.Seed(today)
	require.NoError(t, err)
	old, err := before.CreateLecture(ctx, "1", in)
	require.NoError(t, err)
	_, err = attendance.NewService(before, ledger, nil, clock).UpsertAttendance(ctx, old.ID, "5", model.StatusAbsent, "1")
	require.NoError(t, err)

	// second process: the catalog is rebuilt but the ledger is shared
	after, _, err := catalog.Seed(today)
	require.NoError(t, err)
	fresh, err := after.CreateLecture(ctx, "1", in)
	require.NoError(t, err)
	require.NotEqual(t, old.ID, fresh.ID)

	r, err := NewProjector(after, ledger, clock).Roster(ctx, fresh.ID)
	require.NoError(t, err)
	require.Len(t, r.Entries, 4)
	for _, e := range r.Entries {
		assert.Equal(t, StateNotMarked, e.State, e.Student.ID)
	}
	assert.Equal(t, 0, r.Summary.Total)
}
