package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome of a generation.
const (
	OK        = "ok"
	NoKey     = "no_key"
	Busy      = "busy"
	Failed    = "failed"
	Invalid   = "invalid_response"
	Cancelled = "cancelled"
	Timeout   = "timeout"
)

const namespace = "sonicarch"

// Metrics holds the prometheus collectors of the server.
type Metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	generations *prometheus.CounterVec
	latency     prometheus.Histogram
	sessions    prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests by status code",
	}, []string{"code"})
	generations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generations_total",
		Help:      "Total number of prompt generations by mode and outcome",
	}, []string{"mode", "outcome"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "generation_duration_seconds",
		Help:      "Duration of the language model calls",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
	})
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Number of live editing sessions",
	})

	registry.MustRegister(requests, generations, latency, sessions)

	return &Metrics{
		registry:    registry,
		requests:    requests,
		generations: generations,
		latency:     latency,
		sessions:    sessions,
	}
}

// ObserveGeneration records one generation.
func (m *Metrics) ObserveGeneration(mode, outcome string, d time.Duration) {
	m.generations.WithLabelValues(mode, outcome).Inc()
	if outcome == OK || outcome == Failed || outcome == Invalid || outcome == Timeout {
		m.latency.Observe(d.Seconds())
	}
}

func (m *Metrics) SetSessions(n int) {
	m.sessions.Set(float64(n))
}

// Handler serves the metrics. refresh is called before each scrape.
func (m *Metrics) Handler(refresh func()) http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if refresh != nil {
			refresh()
		}
		h.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware counts requests by status code.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrap := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrap, r)
		m.requests.WithLabelValues(strconv.Itoa(wrap.status)).Inc()
	})
}
