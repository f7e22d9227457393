// Package bridge exposes the HTTP API as a stdio MCP server, so desktop
// assistants can call predict, ask and health as tools. Every tool forwards
// one GET request to API_BASE; nothing is computed locally.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Per-tool request timeouts.
const (
	predictTimeout = 10 * time.Second
	askTimeout     = 15 * time.Second
	healthTimeout  = 5 * time.Second
)

// maxBody bounds how much of a response the bridge will read.
const maxBody = 4 << 20

// Client calls the aiprep HTTP API.
type Client struct {
	base   string
	apiKey string
	http   *http.Client
}

// NewClient returns a client for the API at base. apiKey is sent as a
// Bearer token when non-empty. A nil hc uses a plain http.Client; timeouts
// come from the per-call contexts.
func NewClient(base, apiKey string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{base: strings.TrimRight(base, "/"), apiKey: apiKey, http: hc}
}

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bridge: GET %s returned %d: %s", e.Path, e.Status, e.Body)
}

// Predict calls GET /predict.
func (c *Client) Predict(ctx context.Context, age, income float64) (*PredictOutput, error) {
	q := url.Values{}
	q.Set("age", strconv.FormatFloat(age, 'f', -1, 64))
	q.Set("income", strconv.FormatFloat(income, 'f', -1, 64))

	var out PredictOutput
	if err := c.getJSON(ctx, predictTimeout, "/predict", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ask calls GET /ask.
func (c *Client) Ask(ctx context.Context, question string) (*AskOutput, error) {
	q := url.Values{}
	q.Set("question", question)

	var out AskOutput
	if err := c.getJSON(ctx, askTimeout, "/ask", q, &out); err != nil {
		return nil, err
	}
	if out.Sources == nil {
		out.Sources = []SourceOutput{}
	}
	return &out, nil
}

// Health calls GET /health. It never returns an error: transport failures
// are reported in the output.
func (c *Client) Health(ctx context.Context) HealthOutput {
	status, body, err := c.get(ctx, healthTimeout, "/health", nil)
	if err != nil {
		return HealthOutput{OK: false, Error: err.Error()}
	}
	if status != http.StatusOK {
		return HealthOutput{OK: false, Body: string(body)}
	}
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return HealthOutput{OK: true, Body: string(body)}
	}
	return HealthOutput{OK: true, Body: parsed}
}

func (c *Client) getJSON(ctx context.Context, timeout time.Duration, path string, q url.Values, out any) error {
	status, body, err := c.get(ctx, timeout, path, q)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &StatusError{Path: path, Status: status, Body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("bridge: decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, timeout time.Duration, path string, q url.Values) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := c.base + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("bridge: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("bridge: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return 0, nil, fmt.Errorf("bridge: read %s response: %w", path, err)
	}
	return resp.StatusCode, body, nil
}
