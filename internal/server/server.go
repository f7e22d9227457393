// Package server implements the HTTP API that exposes prediction, document
// question answering and the agent. The server is started by the
// `aiprep serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/aiprep-go/internal/logging"
	"github.com/54b3r/aiprep-go/internal/rag"
)

// maxTopK caps the top_k query parameter of /ask.
const maxTopK = 50

// New constructs a Server from the provided service objects and config.
func New(deps Deps, cfg *Config) (*Server, error) {
	if deps.Predictor == nil {
		return nil, fmt.Errorf("server: predictor must not be nil")
	}
	if deps.Asker == nil {
		return nil, fmt.Errorf("server: asker must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must outlast the slowest agent run.
		cfg.WriteTimeout = cfg.RequestTimeout + 30*time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		predictor: deps.Predictor,
		asker:     deps.Asker,
		agent:     deps.Agent,
		cfg:       cfg,
		log:       log,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(cfg.MetricsRegistry),
		limiter:   newClientLimiter(cfg.RateLimit, cfg.RateBurst),
	}

	if cfg.APIKey == "" {
		log.Warn("server: AIPREP_API_KEY not set, authentication disabled")
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// routes builds the full handler tree. Health, readiness and metrics are
// never authenticated or rate limited.
func (s *Server) routes() http.Handler {
	protect := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, s.rateLimit(name, requireAPIKey(s.cfg.APIKey, h)))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", s.instrument("root", http.RedirectHandler("/health", http.StatusTemporaryRedirect)))
	mux.Handle("GET /health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.MetricsGatherer, promhttp.HandlerOpts{}))
	mux.Handle("GET /predict", protect("predict", s.handlePredict))
	mux.Handle("GET /ask", protect("ask", s.handleAsk))
	mux.Handle("GET /agent", protect("agent", s.handleAgent))

	return requestLogger(s.log, mux)
}

// Handler returns the server's root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.limiter.sweepLoop(sweepCtx, limiterSweepInterval, limiterIdleTTL)

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.log.Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handlePredict handles GET /predict?age=&income=.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	age, err := floatParam(r, "age")
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, err)
		return
	}
	income, err := floatParam(r, "income")
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, err)
		return
	}

	v, err := s.predictor.Predict(ctx, age, income)
	if err != nil {
		s.metrics.predictionsTotal.WithLabelValues(outcomeError).Inc()
		logging.FromContext(ctx).Error("predict failed", slog.Any("error", err))
		writeError(ctx, w, http.StatusBadGateway, err)
		return
	}
	s.metrics.predictionsTotal.WithLabelValues(outcomeOK).Inc()
	writeJSON(ctx, w, http.StatusOK, predictResponse{Prediction: v})
}

// handleAsk handles GET /ask?question=[&top_k=].
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.URL.Query().Get("question"))
	if question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, errors.New("question is required"))
		return
	}
	topK, err := topKParam(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	ans, err := s.asker.AnswerQuestion(ctx, question, topK)
	if err != nil {
		s.metrics.askRequestsTotal.WithLabelValues(outcomeFor(err)).Inc()
		logging.FromContext(ctx).Error("ask failed", slog.Any("error", err))
		writeError(ctx, w, upstreamStatus(err), err)
		return
	}
	outcome := outcomeOK
	if len(ans.Sources) == 0 && ans.Text == rag.FallbackAnswer {
		outcome = outcomeFallback
	}
	s.metrics.askRequestsTotal.WithLabelValues(outcome).Inc()
	writeJSON(ctx, w, http.StatusOK, ans)
}

// handleAgent handles GET /agent?query=.
func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(r.Context(), w, http.StatusBadRequest, errors.New("query is required"))
		return
	}
	if s.agent == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, errors.New("agent is not configured"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.agent.Run(ctx, query)
	outcome := outcomeFor(err)
	s.metrics.agentDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		logging.FromContext(ctx).Error("agent failed", slog.Any("error", err))
		writeError(ctx, w, upstreamStatus(err), err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, agentResponse{Result: result})
}

// floatParam reads a required, finite float query parameter.
func floatParam(r *http.Request, name string) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be a number, got %q", name, raw)
	}
	return v, nil
}

// topKParam reads the optional top_k parameter. Zero means "use the default".
func topKParam(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("top_k"))
	if raw == "" {
		return 0, nil
	}
	k, err := strconv.Atoi(raw)
	if err != nil || k < 1 || k > maxTopK {
		return 0, fmt.Errorf("top_k must be an integer between 1 and %d, got %q", maxTopK, raw)
	}
	return k, nil
}

// upstreamStatus maps a dependency failure to 504 on timeout and 502 otherwise.
func upstreamStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(ctx).Error("response encode error", slog.Any("error", err))
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	writeJSON(ctx, w, status, errorResponse{Error: err.Error()})
}
