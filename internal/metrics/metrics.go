package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upsert outcomes.
const (
	ResultCreated  = "created"
	ResultUpdated  = "updated"
	ResultRejected = "rejected"
)

// Summary cache lookup outcomes.
const (
	LookupHit  = "hit"
	LookupMiss = "miss"
)

var (
	// AttendanceUpserts counts ledger writes by outcome.
	AttendanceUpserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coursetrack",
		Name:      "attendance_upserts_total",
		Help:      "Attendance upserts by result.",
	}, []string{"result"})

	// AttendanceMarks counts accepted marks by status.
	AttendanceMarks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coursetrack",
		Name:      "attendance_marks_total",
		Help:      "Accepted attendance marks by status.",
	}, []string{"status"})

	// LecturesScheduled counts lectures created through the catalog.
	LecturesScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coursetrack",
		Name:      "lectures_scheduled_total",
		Help:      "Lectures scheduled by faculty.",
	})

	// SummariesRefreshed counts lecture summaries written by the worker.
	SummariesRefreshed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coursetrack",
		Name:      "lecture_summaries_refreshed_total",
		Help:      "Lecture summaries recomputed into the cache.",
	})

	// SummaryLookups counts lecture summary reads by cache outcome.
	SummaryLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coursetrack",
		Name:      "lecture_summary_lookups_total",
		Help:      "Lecture summary reads by cache result.",
	}, []string{"result"})

	// UpsertDuration observes ledger upsert latency.
	UpsertDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "coursetrack",
		Name:      "attendance_upsert_seconds",
		Help:      "Latency of attendance upserts.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	})
)
