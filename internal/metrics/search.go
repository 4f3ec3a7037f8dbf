package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline metrics: ingestion, search, rebuild.
var (
	IngestionChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_chunks_total",
			Help:      "Chunks processed during ingestion by outcome (embedded, failed)",
		},
		[]string{"status"},
	)

	IngestionDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_documents_total",
			Help:      "Uploaded documents by module type and outcome",
		},
		[]string{"module_type", "status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Similarity search duration by kind (query, similar, insight)",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"kind"},
	)

	SearchResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of results returned per search",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"kind"},
	)

	RebuildDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebuild_documents_total",
			Help:      "Documents processed by rebuild runs by outcome (rebuilt, failed)",
		},
		[]string{"status"},
	)
)

// Search kinds.
const (
	SearchKindQuery   = "query"
	SearchKindSimilar = "similar"
	SearchKindInsight = "insight"
)
