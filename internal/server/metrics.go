package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"

	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeTimeout  = "timeout"
	outcomeFallback = "fallback"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// predictionsTotal counts /predict calls that reached the model,
	// partitioned by outcome: "ok" or "error".
	predictionsTotal *prometheus.CounterVec

	// askRequestsTotal counts /ask calls, partitioned by outcome: "ok",
	// "fallback" (nothing retrieved), "timeout" or "error".
	askRequestsTotal *prometheus.CounterVec

	// agentDurationSeconds records the wall-clock duration of each /agent run.
	agentDurationSeconds *prometheus.HistogramVec

	// inFlightRequests is the number of requests currently being served.
	inFlightRequests prometheus.Gauge

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec

	// rateLimitedTotal counts requests rejected with 429, by handler.
	rateLimitedTotal *prometheus.CounterVec

	// dependencyUp is 1 when the last /ready probe of a dependency passed.
	dependencyUp *prometheus.GaugeVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) registers into the provided
// registry rather than the global default so unit tests stay hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		predictionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aiprep",
			Subsystem: "predict",
			Name:      "requests_total",
			Help:      "Total number of predictions attempted, partitioned by outcome.",
		}, []string{"outcome"}),

		askRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aiprep",
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total number of /ask requests answered, partitioned by outcome.",
		}, []string{"outcome"}),

		agentDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aiprep",
			Subsystem: "agent",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /agent runs.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		inFlightRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "aiprep",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being served.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aiprep",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aiprep",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),

		rateLimitedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aiprep",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		}, []string{labelHandler}),

		dependencyUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "aiprep",
			Name:      "dependency_up",
			Help:      "Result of the most recent readiness probe per dependency (1 = reachable).",
		}, []string{"dependency"}),
	}
}

// instrument records request count, latency and in-flight gauge for the
// named handler.
func (s *Server) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.metrics.inFlightRequests.Inc()
		defer s.metrics.inFlightRequests.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rec.status)).Inc()
	})
}

// outcomeFor classifies an upstream error for outcome labels.
func outcomeFor(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, context.DeadlineExceeded):
		return outcomeTimeout
	default:
		return outcomeError
	}
}
