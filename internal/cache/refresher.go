package cache

import (
	"context"
	"log"

	"coursetrack/internal/metrics"
	"coursetrack/internal/model"
	"coursetrack/internal/queue"
	"coursetrack/internal/stats"
)

// LectureRecords is the ledger read the refresher needs.
type LectureRecords interface {
	ForLecture(ctx context.Context, lectureID string) ([]model.AttendanceRecord, error)
}

// TallyWriter stores a computed lecture tally.
type TallyWriter interface {
	Put(ctx context.Context, lectureID string, t stats.Tally) error
}

// Refresher recomputes lecture summaries in response to queue events.
type Refresher struct {
	records LectureRecords
	sink    TallyWriter
}

// NewRefresher builds a refresher. A nil sink only computes and logs.
func NewRefresher(records LectureRecords, sink TallyWriter) *Refresher {
	return &Refresher{records: records, sink: sink}
}

// Handle recomputes the tally for the lecture named in msg.
func (r *Refresher) Handle(ctx context.Context, msg queue.Message) (stats.Tally, error) {
	if msg.LectureID == "" {
		return stats.Tally{}, model.NewValidationError("lecture_id", "required")
	}
	recs, err := r.records.ForLecture(ctx, msg.LectureID)
	if err != nil {
		return stats.Tally{}, err
	}
	t := stats.LectureTally(recs, msg.LectureID)
	if r.sink != nil {
		if err := r.sink.Put(ctx, msg.LectureID, t); err != nil {
			return stats.Tally{}, err
		}
	}
	metrics.SummariesRefreshed.Inc()
	return t, nil
}

// Run handles messages until the channel closes.
func (r *Refresher) Run(ctx context.Context, messages <-chan queue.Message) {
	for msg := range messages {
		switch msg.Type {
		case queue.TypeAttendanceMarked, queue.TypeLectureScheduled:
		default:
			log.Printf("skipping message of type %q", msg.Type)
			continue
		}
		t, err := r.Handle(ctx, msg)
		if err != nil {
			log.Printf("refresh lecture %s failed: %v", msg.LectureID, err)
			continue
		}
		log.Printf("lecture %s: %d/%d present (%d%%)", msg.LectureID, t.Present, t.Total, t.Percentage)
	}
}
