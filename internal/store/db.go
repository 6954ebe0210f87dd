package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB opens a Postgres pool and pings it.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{Client: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS attendance_records (
	id          TEXT PRIMARY KEY,
	lecture_id  TEXT NOT NULL,
	student_id  TEXT NOT NULL,
	status      TEXT NOT NULL CHECK (status IN ('present', 'absent')),
	marked_by   TEXT NOT NULL,
	marked_at   TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS attendance_records_pair ON attendance_records (lecture_id, student_id);
CREATE INDEX IF NOT EXISTS attendance_records_student ON attendance_records (student_id);
`

// Migrate creates the ledger tables if they do not exist.
func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.Client.ExecContext(ctx, schema)
	return err
}

// Healthy pings the database.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
