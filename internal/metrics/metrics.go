package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherpwa_provider_calls_total",
			Help: "Total upstream weather provider API calls",
		},
		[]string{"provider", "endpoint", "status"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherpwa_provider_latency_seconds",
			Help:    "Upstream provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "endpoint"},
	)

	ComparisonsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherpwa_comparisons_total",
			Help: "Comparison requests by outcome",
		},
		[]string{"outcome"},
	)

	HistoryDaysFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherpwa_history_days_fetched_total",
			Help: "Archive days added to the comparison cache",
		},
		[]string{"direction"},
	)

	HistoryFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherpwa_history_fetch_failures_total",
			Help: "Archive fetches that failed and were skipped",
		},
		[]string{"direction"},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherpwa_cache_invalidations_total",
			Help: "Cache entries discarded before expiry",
		},
		[]string{"cache"},
	)

	ScheduledJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherpwa_scheduled_jobs_total",
			Help: "Scheduled refresh jobs run",
		},
		[]string{"job"},
	)
)
