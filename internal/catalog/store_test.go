package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursetrack/internal/model"
)

var today = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

func seeded(t *testing.T) *Store {
	t.Helper()
	s, _, err := Seed(today)
	require.NoError(t, err)
	return s
}

func TestLookupsReturnNotFound(t *testing.T) {
	s := seeded(t)

	_, err := s.User("99")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = s.Subject("99")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = s.Lecture("99")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = s.EnrolledStudents("99")
	assert.ErrorIs(t, err, model.ErrNotFound)

	u, err := s.User("3")
	require.NoError(t, err)
	assert.Equal(t, "Alice Student", u.Name)
}

func TestSubjectFilters(t *testing.T) {
	s := seeded(t)

	var codes []string
	for _, sub := range s.SubjectsByFaculty("1") {
		codes = append(codes, sub.Code)
	}
	assert.Equal(t, []string{"CS101", "CS201"}, codes)

	codes = nil
	for _, sub := range s.SubjectsByStudent("5") {
		codes = append(codes, sub.Code)
	}
	assert.Equal(t, []string{"CS101", "CS301", "CS401"}, codes)

	assert.True(t, s.IsEnrolled("1", "5"))
	assert.False(t, s.IsEnrolled("2", "5"))
	assert.False(t, s.IsEnrolled("99", "5"))
}

func TestSubjectIsCopied(t *testing.T) {
	s := seeded(t)
	sub, err := s.Subject("1")
	require.NoError(t, err)
	sub.StudentIDs[0] = "mutated"

	again, err := s.Subject("1")
	require.NoError(t, err)
	assert.NotContains(t, again.StudentIDs, "mutated")
}

func TestLectureFilters(t *testing.T) {
	s := seeded(t)
	assert.Len(t, s.Lectures(), 5)
	assert.Len(t, s.LecturesBySubject("1"), 2)
	assert.Len(t, s.LecturesByFaculty("2"), 2)

	var ids []string
	for _, l := range s.LecturesForStudent("3") {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids)
}

func TestEnrolledStudentsSortedByName(t *testing.T) {
	s := seeded(t)
	students, err := s.EnrolledStudents("1")
	require.NoError(t, err)
	var names []string
	for _, u := range students {
		names = append(names, u.Name)
	}
	assert.Equal(t, []string{"Alice Student", "Bob Wilson", "Charlie Brown", "Diana Prince"}, names)
}

func TestAuthenticate(t *testing.T) {
	s := seeded(t)
	u, err := s.Authenticate("faculty@example.com", DemoPassword)
	require.NoError(t, err)
	assert.Equal(t, model.RoleFaculty, u.Role)

	u, err = s.Authenticate("Student@Example.com", DemoPassword)
	require.NoError(t, err)
	assert.Equal(t, "3", u.ID)

	_, err = s.Authenticate("faculty@example.com", "wrong")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = s.Authenticate("nobody@example.com", DemoPassword)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAuthenticateWithoutPassword(t *testing.T) {
	s, err := New([]Credential{{User: model.User{ID: "1", Name: "A", Email: "a@example.com", Role: model.RoleStudent}}}, nil, nil)
	require.NoError(t, err)
	_, err = s.Authenticate("a@example.com", "")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestNewRejectsBrokenReferences(t *testing.T) {
	faculty := Credential{User: model.User{ID: "f", Name: "F", Email: "f@example.com", Role: model.RoleFaculty}}
	student := Credential{User: model.User{ID: "s", Name: "S", Email: "s@example.com", Role: model.RoleStudent}}

	_, err := New([]Credential{faculty, student}, []model.Subject{{ID: "x", Name: "X", Code: "X1", FacultyID: "s"}}, nil)
	assert.ErrorIs(t, err, model.ErrInvariant)

	_, err = New([]Credential{faculty, student}, []model.Subject{{ID: "x", Name: "X", Code: "X1", FacultyID: "f", StudentIDs: []string{"f"}}}, nil)
	assert.ErrorIs(t, err, model.ErrInvariant)

	_, err = New([]Credential{faculty}, []model.Subject{{ID: "x", Name: "X", Code: "X1", FacultyID: "f"}}, []model.Lecture{{
		ID: "1", SubjectID: "x", FacultyID: "other", Title: "t", Date: "2024-01-01", StartTime: "09:00", EndTime: "10:00", Room: "r",
	}})
	assert.ErrorIs(t, err, model.ErrInvariant)

	_, err = New([]Credential{faculty}, nil, []model.Lecture{{
		ID: "1", SubjectID: "missing", FacultyID: "f", Title: "t", Date: "2024-01-01", StartTime: "09:00", EndTime: "10:00", Room: "r",
	}})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = New([]Credential{{User: model.User{ID: "u", Name: "U", Email: "u@example.com", Role: "admin"}}}, nil, nil)
	assert.True(t, model.IsValidation(err))
}

func TestNewRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name     string
		users    []Credential
		subjects []model.Subject
		field    string
	}{
		{
			name:  "user without name",
			users: []Credential{{User: model.User{ID: "f", Email: "f@example.com", Role: model.RoleFaculty}}},
			field: "user.name",
		},
		{
			name:  "user without email",
			users: []Credential{{User: model.User{ID: "f", Name: "F", Role: model.RoleFaculty}}},
			field: "user.email",
		},
		{
			name:     "subject without name",
			users:    []Credential{{User: model.User{ID: "f", Name: "F", Email: "f@example.com", Role: model.RoleFaculty}}},
			subjects: []model.Subject{{ID: "x", Code: "X1", FacultyID: "f"}},
			field:    "subject.name",
		},
		{
			name:     "subject without code",
			users:    []Credential{{User: model.User{ID: "f", Name: "F", Email: "f@example.com", Role: model.RoleFaculty}}},
			subjects: []model.Subject{{ID: "x", Name: "X", FacultyID: "f"}},
			field:    "subject.code",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.users, tt.subjects, nil)
			var verr *model.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "required", verr.Fields[tt.field])
		})
	}
}

func TestNewRejectsDuplicateEmail(t *testing.T) {
	_, err := New([]Credential{
		{User: model.User{ID: "a", Name: "A", Email: "same@example.com", Role: model.RoleStudent}, Password: "one"},
		{User: model.User{ID: "b", Name: "B", Email: "Same@Example.com", Role: model.RoleStudent}, Password: "two"},
	}, nil, nil)
	assert.ErrorIs(t, err, model.ErrInvariant)
}

func TestNewCollapsesDuplicateEnrollment(t *testing.T) {
	s, err := New(
		[]Credential{
			{User: model.User{ID: "f", Name: "F", Email: "f@example.com", Role: model.RoleFaculty}},
			{User: model.User{ID: "b", Name: "B", Email: "b@example.com", Role: model.RoleStudent}},
			{User: model.User{ID: "a", Name: "A", Email: "a@example.com", Role: model.RoleStudent}},
		},
		[]model.Subject{{ID: "x", Name: "X", Code: "X1", FacultyID: "f", StudentIDs: []string{"b", "a", "b"}}},
		nil,
	)
	require.NoError(t, err)
	sub, err := s.Subject("x")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, sub.StudentIDs)
}

func lectureInput() LectureInput {
	return LectureInput{
		SubjectID: "1",
		Title:     "  Recursion ",
		Date:      "2024-03-06",
		StartTime: "09:00",
		EndTime:   "10:30",
		Room:      "Room 101",
	}
}

func TestCreateLecture(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	l, err := s.CreateLecture(ctx, "1", lectureInput())
	require.NoError(t, err)
	require.NotEmpty(t, l.ID)
	assert.Equal(t, "Recursion", l.Title)
	assert.Equal(t, "1", l.FacultyID)

	got, err := s.Lecture(l.ID)
	require.NoError(t, err)
	assert.Equal(t, l, got)
	assert.Len(t, s.LecturesBySubject("1"), 3)

	l2, err := s.CreateLecture(ctx, "1", lectureInput())
	require.NoError(t, err)
	assert.NotEqual(t, l.ID, l2.ID)
}

func TestCreateLectureIDsDoNotRepeatAcrossStores(t *testing.T) {
	ctx := context.Background()
	first, err := seeded(t).CreateLecture(ctx, "1", lectureInput())
	require.NoError(t, err)
	second, err := seeded(t).CreateLecture(ctx, "1", lectureInput())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	for _, seedID := range []string{"1", "2", "3", "4", "5", "6"} {
		assert.NotEqual(t, seedID, first.ID)
	}
}

func TestCreateLectureRejects(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	in := lectureInput()
	in.Title = ""
	in.StartTime = "9:00"
	_, err := s.CreateLecture(ctx, "1", in)
	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "required", verr.Fields["title"])
	assert.Equal(t, "must be HH:MM", verr.Fields["start_time"])

	in = lectureInput()
	in.EndTime = "08:00"
	_, err = s.CreateLecture(ctx, "1", in)
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "end_time")

	in = lectureInput()
	in.SubjectID = "3"
	_, err = s.CreateLecture(ctx, "1", in)
	assert.ErrorIs(t, err, model.ErrInvariant)

	in = lectureInput()
	in.SubjectID = "99"
	_, err = s.CreateLecture(ctx, "1", in)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = s.CreateLecture(ctx, "3", lectureInput())
	assert.ErrorIs(t, err, model.ErrInvariant)

	assert.Len(t, s.Lectures(), 5)
}
