package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bryanwahyu/sketch2sys/internal/domain/sketch"
)

// Metrics holds the service collectors. It satisfies workspace.Metrics.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestsInFlight prometheus.Gauge
	analysesStarted  prometheus.Counter
	analysesFailed   *prometheus.CounterVec
	analysesInFlight prometheus.Gauge
	staleDiscarded   prometheus.Counter
	renderFailures   prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sketch2sys_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		requestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sketch2sys_http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		}),
		analysesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sketch2sys_analyses_started_total",
			Help: "Inference calls launched.",
		}),
		analysesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sketch2sys_analyses_failed_total",
			Help: "Inference calls that ended in an error, by kind.",
		}, []string{"kind"}),
		analysesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sketch2sys_analyses_in_flight",
			Help: "Inference calls awaiting completion.",
		}),
		staleDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sketch2sys_stale_completions_total",
			Help: "Completions discarded because a newer analysis superseded them.",
		}),
		renderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sketch2sys_render_failures_total",
			Help: "Diagram sources that failed to compile.",
		}),
	}
	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.requestsTotal, m.requestsInFlight,
		m.analysesStarted, m.analysesFailed, m.analysesInFlight,
		m.staleDiscarded, m.renderFailures,
	)
	return m
}

// AnalysisStarted implements workspace.Metrics
func (m *Metrics) AnalysisStarted() {
	m.analysesStarted.Inc()
	m.analysesInFlight.Inc()
}

// AnalysisFinished implements workspace.Metrics
func (m *Metrics) AnalysisFinished(err error) {
	m.analysesInFlight.Dec()
	if err != nil {
		m.analysesFailed.WithLabelValues(errorKind(err)).Inc()
	}
}

// StaleDiscarded implements workspace.Metrics
func (m *Metrics) StaleDiscarded() { m.staleDiscarded.Inc() }

// RenderFailed is hooked into the diagram renderer
func (m *Metrics) RenderFailed() { m.renderFailures.Inc() }

func errorKind(err error) string {
	switch {
	case errors.Is(err, sketch.ErrNoResponse):
		return "no_response"
	case errors.Is(err, sketch.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, sketch.ErrQuotaExceeded):
		return "quota"
	}
	var se *sketch.ServiceError
	if errors.As(err, &se) {
		return "service"
	}
	return "other"
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requestsInFlight.Inc()
		defer m.requestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		m.requestsTotal.WithLabelValues(r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
	})
}

// Handler exposes the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
