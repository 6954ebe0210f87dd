package catalog

import (
	"time"

	"coursetrack/internal/model"
)

// DemoPassword is shared by every demo account.
const DemoPassword = "password123"

// Seed returns the demo catalog with lectures scheduled today and tomorrow,
// plus the attendance already taken for the first lecture.
func Seed(today time.Time) (*Store, []model.AttendanceRecord, error) {
	d0 := today.Format(model.DateLayout)
	d1 := today.AddDate(0, 0, 1).Format(model.DateLayout)

	users := []Credential{
		{User: model.User{ID: "1", Name: "Professor Smith", Email: "faculty@example.com", Role: model.RoleFaculty}, Password: DemoPassword},
		{User: model.User{ID: "2", Name: "Professor Johnson", Email: "johnson@example.com", Role: model.RoleFaculty}, Password: DemoPassword},
		{User: model.User{ID: "3", Name: "Alice Student", Email: "student@example.com", Role: model.RoleStudent}, Password: DemoPassword},
		{User: model.User{ID: "4", Name: "Bob Wilson", Email: "bob@example.com", Role: model.RoleStudent}, Password: DemoPassword},
		{User: model.User{ID: "5", Name: "Charlie Brown", Email: "charlie@example.com", Role: model.RoleStudent}, Password: DemoPassword},
		{User: model.User{ID: "6", Name: "Diana Prince", Email: "diana@example.com", Role: model.RoleStudent}, Password: DemoPassword},
	}
	subjects := []model.Subject{
		{ID: "1", Name: "Introduction to Computer Science", Code: "CS101", FacultyID: "1", StudentIDs: []string{"3", "4", "5", "6"}},
		{ID: "2", Name: "Data Structures", Code: "CS201", FacultyID: "1", StudentIDs: []string{"3", "4", "6"}},
		{ID: "3", Name: "Database Management Systems", Code: "CS301", FacultyID: "2", StudentIDs: []string{"3", "5", "6"}},
		{ID: "4", Name: "Software Engineering", Code: "CS401", FacultyID: "2", StudentIDs: []string{"4", "5", "6"}},
	}
	lectures := []model.Lecture{
		{ID: "1", SubjectID: "1", FacultyID: "1", Title: "Introduction to Programming", Date: d0, StartTime: "09:00", EndTime: "10:30", Room: "Room 101"},
		{ID: "2", SubjectID: "1", FacultyID: "1", Title: "Variables and Data Types", Date: d1, StartTime: "09:00", EndTime: "10:30", Room: "Room 101"},
		{ID: "3", SubjectID: "2", FacultyID: "1", Title: "Arrays and Linked Lists", Date: d0, StartTime: "11:00", EndTime: "12:30", Room: "Room 102"},
		{ID: "4", SubjectID: "3", FacultyID: "2", Title: "SQL Basics", Date: d1, StartTime: "14:00", EndTime: "15:30", Room: "Room 201"},
		{ID: "5", SubjectID: "4", FacultyID: "2", Title: "Software Development Life Cycle", Date: d1, StartTime: "10:00", EndTime: "11:30", Room: "Room 202"},
	}

	store, err := New(users, subjects, lectures)
	if err != nil {
		return nil, nil, err
	}

	markedAt := time.Date(today.Year(), today.Month(), today.Day(), 9, 15, 0, 0, today.Location()).UTC()
	records := []model.AttendanceRecord{
		{ID: "1", LectureID: "1", StudentID: "3", Status: model.StatusPresent, MarkedBy: "1", MarkedAt: markedAt},
		{ID: "2", LectureID: "1", StudentID: "4", Status: model.StatusPresent, MarkedBy: "1", MarkedAt: markedAt},
		{ID: "3", LectureID: "1", StudentID: "5", Status: model.StatusAbsent, MarkedBy: "1", MarkedAt: markedAt},
		{ID: "4", LectureID: "1", StudentID: "6", Status: model.StatusPresent, MarkedBy: "1", MarkedAt: markedAt},
	}
	return store, records, nil
}
