package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	turnsTotal        *prometheus.CounterVec
	turnDuration      *prometheus.HistogramVec
	evidenceChunks    *prometheus.HistogramVec
	degradationsTotal *prometheus.CounterVec
	topicChangesTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "govrag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "govrag",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "govrag",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "govrag",
			Subsystem: "retrieval",
			Name:      "turns_total",
			Help:      "Total resolved turns by scope mode and status.",
		},
		[]string{"service", "mode", "status"},
	)
	turnDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "govrag",
			Subsystem: "retrieval",
			Name:      "turn_duration_seconds",
			Help:      "Turn resolution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	evidenceChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "govrag",
			Subsystem: "retrieval",
			Name:      "evidence_chunks",
			Help:      "Distribution of evidence chunks per resolved turn.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	degradationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "govrag",
			Subsystem: "retrieval",
			Name:      "degradations_total",
			Help:      "Total degraded pipeline stages by tag.",
		},
		[]string{"service", "tag"},
	)
	topicChangesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "govrag",
			Subsystem: "retrieval",
			Name:      "topic_changes_total",
			Help:      "Total follow-up turns that expanded scope to new documents.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		turnsTotal,
		turnDuration,
		evidenceChunks,
		degradationsTotal,
		topicChangesTotal,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		turnsTotal:        turnsTotal,
		turnDuration:      turnDuration,
		evidenceChunks:    evidenceChunks,
		degradationsTotal: degradationsTotal,
		topicChangesTotal: topicChangesTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordTurn(service, mode, status string, evidenceCount int, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.turnsTotal.WithLabelValues(service, mode, status).Inc()
	m.turnDuration.WithLabelValues(service).Observe(duration.Seconds())
	m.evidenceChunks.WithLabelValues(service).Observe(float64(evidenceCount))
}

func (m *HTTPServerMetrics) RecordDegradations(service string, tags []string) {
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		m.degradationsTotal.WithLabelValues(service, tag).Inc()
	}
}

func (m *HTTPServerMetrics) RecordTopicChange(service string) {
	m.topicChangesTotal.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
