package attendance

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"coursetrack/internal/model"
)

// Ledger stores at most one attendance record per (lecture, student) pair.
type Ledger interface {
	// Upsert inserts rec or overwrites status, marker and timestamp of the
	// existing record for the same pair. created reports which happened.
	Upsert(ctx context.Context, rec model.AttendanceRecord) (out model.AttendanceRecord, created bool, err error)
	Records(ctx context.Context) ([]model.AttendanceRecord, error)
	ForLecture(ctx context.Context, lectureID string) ([]model.AttendanceRecord, error)
	ForStudent(ctx context.Context, studentID string) ([]model.AttendanceRecord, error)
	Len(ctx context.Context) (int, error)
}

// MemoryLedger is an in-process Ledger indexed by pair key.
type MemoryLedger struct {
	mu      sync.Mutex
	records []model.AttendanceRecord
	index   map[model.PairKey]int
	seq     atomic.Int64
}

// NewMemoryLedger returns a ledger preloaded with seed, which must not repeat
// a pair or an id.
func NewMemoryLedger(seed ...model.AttendanceRecord) (*MemoryLedger, error) {
	l := &MemoryLedger{index: make(map[model.PairKey]int, len(seed))}
	ids := make(map[string]struct{}, len(seed))
	var maxID int64
	for _, rec := range seed {
		if rec.ID == "" {
			return nil, model.NewValidationError("record.id", "required")
		}
		if _, dup := ids[rec.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate record id %s", model.ErrInvariant, rec.ID)
		}
		if _, dup := l.index[rec.Key()]; dup {
			return nil, fmt.Errorf("%w: duplicate record for lecture %s student %s", model.ErrInvariant, rec.LectureID, rec.StudentID)
		}
		ids[rec.ID] = struct{}{}
		l.index[rec.Key()] = len(l.records)
		l.records = append(l.records, rec)
		if n, err := strconv.ParseInt(rec.ID, 10, 64); err == nil && n > maxID {
			maxID = n
		}
	}
	if n := int64(len(l.records)); n > maxID {
		maxID = n
	}
	l.seq.Store(maxID)
	return l, nil
}

// Upsert implements Ledger.
func (l *MemoryLedger) Upsert(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.AttendanceRecord{}, false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if i, ok := l.index[rec.Key()]; ok {
		cur := &l.records[i]
		cur.Status = rec.Status
		cur.MarkedBy = rec.MarkedBy
		cur.MarkedAt = rec.MarkedAt
		return *cur, false, nil
	}

	rec.ID = strconv.FormatInt(l.seq.Add(1), 10)
	l.index[rec.Key()] = len(l.records)
	l.records = append(l.records, rec)
	return rec, true, nil
}

// Records implements Ledger.
func (l *MemoryLedger) Records(ctx context.Context) ([]model.AttendanceRecord, error) {
	return l.filter(ctx, func(model.AttendanceRecord) bool { return true })
}

// ForLecture implements Ledger.
func (l *MemoryLedger) ForLecture(ctx context.Context, lectureID string) ([]model.AttendanceRecord, error) {
	return l.filter(ctx, func(r model.AttendanceRecord) bool { return r.LectureID == lectureID })
}

// ForStudent implements Ledger.
func (l *MemoryLedger) ForStudent(ctx context.Context, studentID string) ([]model.AttendanceRecord, error) {
	return l.filter(ctx, func(r model.AttendanceRecord) bool { return r.StudentID == studentID })
}

// Len implements Ledger.
func (l *MemoryLedger) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records), nil
}

func (l *MemoryLedger) filter(ctx context.Context, keep func(model.AttendanceRecord) bool) ([]model.AttendanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.AttendanceRecord
	for _, r := range l.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}
