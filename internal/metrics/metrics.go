package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	URLsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stagecrawl",
		Name:      "urls_processed_total",
		Help:      "Import attempts by source site and final outcome.",
	}, []string{"site", "outcome"})

	ImportErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stagecrawl",
		Name:      "import_errors_total",
		Help:      "Failed import attempts by pipeline error code.",
	}, []string{"site", "code"})

	Suggestions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stagecrawl",
		Name:      "suggestions_total",
		Help:      "Change suggestions created, by type and initial status.",
	}, []string{"type", "status"})

	ImportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stagecrawl",
		Name:      "import_duration_seconds",
		Help:      "Wall time of one importUrl pass, fetch through decision.",
		Buckets:   prometheus.DefBuckets,
	})

	BatchRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stagecrawl",
		Name:      "batch_runs_total",
		Help:      "Completed crawl batches by run type and status.",
	}, []string{"run_type", "status"})
)
