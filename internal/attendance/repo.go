package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"coursetrack/internal/model"
)

// Repository is a Ledger persisted in Postgres. The unique index on
// (lecture_id, student_id) keeps one row per pair.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const recordColumns = `id, lecture_id, student_id, status, marked_by, marked_at`

// Upsert implements Ledger.
func (r *Repository) Upsert(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, bool, error) {
	if r == nil || r.db == nil {
		return model.AttendanceRecord{}, false, errors.New("ledger database not configured")
	}
	if rec.MarkedAt.IsZero() {
		rec.MarkedAt = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (lecture_id, student_id) DO UPDATE SET
			status = EXCLUDED.status,
			marked_by = EXCLUDED.marked_by,
			marked_at = EXCLUDED.marked_at
		RETURNING id, (xmax = 0) AS inserted
	`, uuid.NewString(), rec.LectureID, rec.StudentID, string(rec.Status), rec.MarkedBy, rec.MarkedAt)
	var created bool
	if err := row.Scan(&rec.ID, &created); err != nil {
		return model.AttendanceRecord{}, false, err
	}
	return rec, created, nil
}

// Records implements Ledger.
func (r *Repository) Records(ctx context.Context) ([]model.AttendanceRecord, error) {
	return r.query(ctx, `SELECT `+recordColumns+` FROM attendance_records ORDER BY marked_at, id`)
}

// ForLecture implements Ledger.
func (r *Repository) ForLecture(ctx context.Context, lectureID string) ([]model.AttendanceRecord, error) {
	return r.query(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE lecture_id = $1 ORDER BY marked_at, id`, lectureID)
}

// ForStudent implements Ledger.
func (r *Repository) ForStudent(ctx context.Context, studentID string) ([]model.AttendanceRecord, error) {
	return r.query(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE student_id = $1 ORDER BY marked_at, id`, studentID)
}

// Len implements Ledger.
func (r *Repository) Len(ctx context.Context) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("ledger database not configured")
	}
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance_records`).Scan(&n)
	return n, err
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]model.AttendanceRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("ledger database not configured")
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.AttendanceRecord
	for rows.Next() {
		var rec model.AttendanceRecord
		var status string
		if err := rows.Scan(&rec.ID, &rec.LectureID, &rec.StudentID, &status, &rec.MarkedBy, &rec.MarkedAt); err != nil {
			return nil, err
		}
		rec.Status = model.Status(status)
		res = append(res, rec)
	}
	return res, rows.Err()
}

// Import copies seed records into the table, leaving existing pairs untouched.
func (r *Repository) Import(ctx context.Context, records []model.AttendanceRecord) error {
	if r == nil || r.db == nil {
		return errors.New("ledger database not configured")
	}
	for _, rec := range records {
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO attendance_records (`+recordColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (lecture_id, student_id) DO NOTHING
		`, uuid.NewString(), rec.LectureID, rec.StudentID, string(rec.Status), rec.MarkedBy, rec.MarkedAt); err != nil {
			return err
		}
	}
	return nil
}
