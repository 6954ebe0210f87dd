package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"coursetrack/internal/stats"
)

// ErrMiss is returned when no summary is cached for a lecture.
var ErrMiss = errors.New("cache miss")

// Summaries caches per-lecture attendance tallies in Redis hashes.
type Summaries struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewSummaries returns a cache writing keys under prefix. A zero ttl keeps
// entries until overwritten.
func NewSummaries(client *redis.Client, prefix string, ttl time.Duration) *Summaries {
	if prefix == "" {
		prefix = "coursetrack:lecture:"
	}
	return &Summaries{client: client, prefix: prefix, ttl: ttl}
}

func (s *Summaries) key(lectureID string) string {
	return s.prefix + lectureID
}

// Put stores the tally for lectureID.
func (s *Summaries) Put(ctx context.Context, lectureID string, t stats.Tally) error {
	key := s.key(lectureID)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, map[string]any{
			"present":    t.Present,
			"absent":     t.Absent,
			"total":      t.Total,
			"percentage": t.Percentage,
		})
		if s.ttl > 0 {
			p.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return err
}

// Get loads the tally for lectureID.
func (s *Summaries) Get(ctx context.Context, lectureID string) (stats.Tally, error) {
	vals, err := s.client.HGetAll(ctx, s.key(lectureID)).Result()
	if err != nil {
		return stats.Tally{}, err
	}
	if len(vals) == 0 {
		return stats.Tally{}, ErrMiss
	}
	var t stats.Tally
	for field, dst := range map[string]*int{
		"present":    &t.Present,
		"absent":     &t.Absent,
		"total":      &t.Total,
		"percentage": &t.Percentage,
	} {
		n, err := strconv.Atoi(vals[field])
		if err != nil {
			return stats.Tally{}, err
		}
		*dst = n
	}
	return t, nil
}
