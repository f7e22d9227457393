package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/aiprep-go/internal/predict"
	"github.com/54b3r/aiprep-go/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8000).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// RequestTimeout bounds a single /ask or /agent call, including every
	// model round trip. Defaults to 2 minutes if zero.
	RequestTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [slog.Default] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /ready.
	// If empty, /ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on /predict, /ask and /agent.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server's collectors. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Asker answers a question from the document index.
// *rag.QueryPipeline satisfies it; tests inject a fake.
type Asker interface {
	AnswerQuestion(ctx context.Context, question string, topK int) (*rag.Answer, error)
}

// Runner answers a free-form query with the tool-calling agent.
// *agent.Agent satisfies it.
type Runner interface {
	Run(ctx context.Context, query string) (string, error)
}

// Deps are the service objects the handlers call. Predictor and Asker are
// required; a nil Agent makes /agent answer 503.
type Deps struct {
	Predictor predict.Predictor
	Asker     Asker
	Agent     Runner
}

// Server is the HTTP API in front of the prediction model, the RAG pipeline
// and the agent.
type Server struct {
	// predictor scores /predict requests.
	predictor predict.Predictor
	// asker answers /ask requests.
	asker Asker
	// agent answers /agent requests. May be nil.
	agent Runner
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors owned by this server.
	metrics *serverMetrics
	// limiter holds the per-client token buckets for the service routes.
	limiter *clientLimiter
}

// predictResponse is the JSON body of GET /predict.
type predictResponse struct {
	Prediction float64 `json:"prediction"`
}

// agentResponse is the JSON body of GET /agent.
type agentResponse struct {
	Result string `json:"result"`
}

// errorResponse is the JSON body of every 4xx/5xx produced by a handler.
type errorResponse struct {
	Error string `json:"error"`
}
