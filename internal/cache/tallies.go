package cache

import (
	"context"
	"errors"
	"log"

	"coursetrack/internal/metrics"
	"coursetrack/internal/stats"
)

// TallyStore is a lecture summary cache. Summaries implements it.
type TallyStore interface {
	TallyWriter
	Get(ctx context.Context, lectureID string) (stats.Tally, error)
}

// Tallies reads lecture summaries from the cache, falling back to the
// ledger and repopulating the cache when the entry is missing.
type Tallies struct {
	records LectureRecords
	store   TallyStore
}

// NewTallies builds a reader. A nil store always computes from records.
func NewTallies(records LectureRecords, store TallyStore) *Tallies {
	return &Tallies{records: records, store: store}
}

// LectureTally returns the present/absent tally for lectureID.
func (t *Tallies) LectureTally(ctx context.Context, lectureID string) (stats.Tally, error) {
	if t.store != nil {
		cached, err := t.store.Get(ctx, lectureID)
		if err == nil {
			metrics.SummaryLookups.WithLabelValues(metrics.LookupHit).Inc()
			return cached, nil
		}
		if !errors.Is(err, ErrMiss) {
			log.Printf("read cached summary for lecture %s: %v", lectureID, err)
		}
	}
	metrics.SummaryLookups.WithLabelValues(metrics.LookupMiss).Inc()

	recs, err := t.records.ForLecture(ctx, lectureID)
	if err != nil {
		return stats.Tally{}, err
	}
	tally := stats.LectureTally(recs, lectureID)
	if t.store != nil {
		if err := t.store.Put(ctx, lectureID, tally); err != nil {
			log.Printf("cache summary for lecture %s: %v", lectureID, err)
		}
	}
	return tally, nil
}
