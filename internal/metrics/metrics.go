// Package metrics registers the Prometheus metrics this program exposes for
// ingestion and search activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics owned by this program. A single
// instance is created in New and passed to the ingest pipeline, so tests
// can inject a fresh prometheus.Registry without polluting the default one.
type Metrics struct {
	// IngestConversationsTotal counts conversations persisted by
	// InsertConversationTree, partitioned by agent slug and outcome
	// ("created", "appended", "unchanged").
	IngestConversationsTotal *prometheus.CounterVec

	// IngestMessagesTotal counts messages newly appended to the store,
	// partitioned by agent slug.
	IngestMessagesTotal *prometheus.CounterVec

	// IngestDurationSeconds records the wall-clock duration of a full
	// connector scan + persist pass, partitioned by agent slug.
	IngestDurationSeconds *prometheus.HistogramVec

	// ScanErrorsTotal counts connector Scan failures, partitioned by agent
	// slug.
	ScanErrorsTotal *prometheus.CounterVec

	// SearchQueriesTotal counts completed search queries, partitioned by
	// match type ("exact", "substring", "prefix", "implicit_wildcard").
	SearchQueriesTotal *prometheus.CounterVec

	// SearchDurationSeconds records query latency.
	SearchDurationSeconds prometheus.Histogram

	// SearchRateLimitedTotal counts queries rejected by the rate limiter.
	SearchRateLimitedTotal prometheus.Counter

	// WatchEventsTotal counts filesystem events observed by the watch
	// loop, partitioned by agent slug.
	WatchEventsTotal *prometheus.CounterVec
}

// New registers all metrics against reg and returns the populated Metrics.
// promauto.With(reg) registers into the provided registry rather than the
// global default, keeping unit tests hermetic.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		IngestConversationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cass",
			Subsystem: "ingest",
			Name:      "conversations_total",
			Help:      "Total number of conversations processed by insert_conversation_tree, partitioned by agent and outcome.",
		}, []string{"agent", "outcome"}),

		IngestMessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cass",
			Subsystem: "ingest",
			Name:      "messages_total",
			Help:      "Total number of messages newly appended to the store, partitioned by agent.",
		}, []string{"agent"}),

		IngestDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cass",
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of a connector scan-and-persist pass, partitioned by agent.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"agent"}),

		ScanErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cass",
			Subsystem: "ingest",
			Name:      "scan_errors_total",
			Help:      "Total number of connector Scan failures, partitioned by agent.",
		}, []string{"agent"}),

		SearchQueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cass",
			Subsystem: "search",
			Name:      "queries_total",
			Help:      "Total number of completed search queries, partitioned by match type.",
		}, []string{"match_type"}),

		SearchDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cass",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Latency of search queries, including any implicit-wildcard fallback stage.",
			Buckets:   prometheus.DefBuckets,
		}),

		SearchRateLimitedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cass",
			Subsystem: "search",
			Name:      "rate_limited_total",
			Help:      "Total number of search queries rejected by the rate limiter.",
		}),

		WatchEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cass",
			Subsystem: "watch",
			Name:      "events_total",
			Help:      "Total number of filesystem events observed by the incremental watch loop, partitioned by agent.",
		}, []string{"agent"}),
	}
}
