package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion and retrieval Prometheus metrics.
var (
	IngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Name:      "ingest_total",
			Help:      "Total ingestions by result (ready or error class)",
		},
		[]string{"result"},
	)

	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docrag",
			Name:      "ingest_duration_seconds",
			Help:      "End-to-end ingestion duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	IngestChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docrag",
			Name:      "ingest_chunks",
			Help:      "Number of chunks produced per ingested document",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Name:      "query_total",
			Help:      "Total retrieval queries by result (ok or error class)",
		},
		[]string{"result"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers ingestion and query metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(IngestTotal)
	prometheus.MustRegister(IngestDuration)
	prometheus.MustRegister(IngestChunks)
	prometheus.MustRegister(QueryTotal)
	pipelineMetricsRegistered = true
}
