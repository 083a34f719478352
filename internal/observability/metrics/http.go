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

	pipelineRunsTotal  *prometheus.CounterVec
	stageDuration      *prometheus.HistogramVec
	validationTotal    *prometheus.CounterVec
	retrievedDocuments *prometheus.HistogramVec
	noContextTotal     *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ka",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ka",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ka",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	pipelineRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ka",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total pipeline runs by terminal state.",
		},
		[]string{"service", "state"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ka",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage"},
	)
	validationTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ka",
			Subsystem: "pipeline",
			Name:      "validation_total",
			Help:      "Total validated answers by verdict.",
		},
		[]string{"service", "status"},
	)
	retrievedDocuments := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ka",
			Subsystem: "pipeline",
			Name:      "retrieved_documents",
			Help:      "Distribution of retrieved documents per run.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	noContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ka",
			Subsystem: "pipeline",
			Name:      "no_context_total",
			Help:      "Total runs that retrieved no documents.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		pipelineRunsTotal,
		stageDuration,
		validationTotal,
		retrievedDocuments,
		noContextTotal,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		pipelineRunsTotal:  pipelineRunsTotal,
		stageDuration:      stageDuration,
		validationTotal:    validationTotal,
		retrievedDocuments: retrievedDocuments,
		noContextTotal:     noContextTotal,
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

// RecordPipelineRun counts a finished run and its retrieval outcome.
func (m *HTTPServerMetrics) RecordPipelineRun(service, state string, sourceCount int) {
	if state == "" {
		state = "unknown"
	}
	m.pipelineRunsTotal.WithLabelValues(service, state).Inc()
	m.retrievedDocuments.WithLabelValues(service).Observe(float64(sourceCount))
	if sourceCount == 0 {
		m.noContextTotal.WithLabelValues(service).Inc()
	}
}

func (m *HTTPServerMetrics) RecordStageDuration(service, stage string, seconds float64) {
	if stage == "" {
		stage = "unknown"
	}
	m.stageDuration.WithLabelValues(service, stage).Observe(seconds)
}

func (m *HTTPServerMetrics) RecordValidation(service, status string) {
	if status == "" {
		status = "unknown"
	}
	m.validationTotal.WithLabelValues(service, status).Inc()
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
