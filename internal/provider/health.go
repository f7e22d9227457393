package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HealthChecker is a zero-cost reachability probe for a backend. Backends
// without one fall back to a Generate call in the readiness pinger.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// OllamaHealthCheck probes GET /api/tags, which lists local models without
// loading any of them.
type OllamaHealthCheck struct {
	baseURL string
	client  *http.Client
}

// NewOllamaHealthCheck builds a probe for the Ollama server at baseURL.
func NewOllamaHealthCheck(baseURL string) *OllamaHealthCheck {
	return &OllamaHealthCheck{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// HealthCheck returns nil when Ollama answers with a 2xx status.
func (h *OllamaHealthCheck) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("ollama health: create request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama health: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ollama health: HTTP %d", resp.StatusCode)
	}
	return nil
}

// HealthCheckFor returns the zero-cost probe for cfg's backend, or nil when
// the backend has none.
func HealthCheckFor(cfg *Config) HealthChecker {
	if cfg.Backend == BackendOllama {
		base := cfg.BaseURL
		if base == "" {
			base = "http://localhost:11434"
		}
		return NewOllamaHealthCheck(base)
	}
	return nil
}
