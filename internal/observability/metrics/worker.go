package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	batchTotal    *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	batchInFlight prometheus.Gauge
	batchChunks   *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	batchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "govrag",
			Subsystem: "indexer",
			Name:      "chunk_batch_total",
			Help:      "Total processed chunk batches by status.",
		},
		[]string{"service", "status"},
	)
	batchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "govrag",
			Subsystem: "indexer",
			Name:      "chunk_batch_duration_seconds",
			Help:      "Chunk batch indexing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	batchInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "govrag",
			Subsystem: "indexer",
			Name:      "chunk_batch_in_flight",
			Help:      "Number of in-flight chunk batch indexing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	batchChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "govrag",
			Subsystem: "indexer",
			Name:      "chunk_batch_size",
			Help:      "Distribution of chunks per indexed batch.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"service"},
	)

	registry.MustRegister(batchTotal, batchDuration, batchInFlight, batchChunks)

	return &WorkerMetrics{
		registry:      registry,
		batchTotal:    batchTotal,
		batchDuration: batchDuration,
		batchInFlight: batchInFlight,
		batchChunks:   batchChunks,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartBatch() {
	m.batchInFlight.Inc()
}

func (m *WorkerMetrics) FinishBatch(service string, chunkCount int, duration time.Duration, err error) {
	m.batchInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.batchTotal.WithLabelValues(service, status).Inc()
	m.batchDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if chunkCount > 0 {
		m.batchChunks.WithLabelValues(service).Observe(float64(chunkCount))
	}
}
