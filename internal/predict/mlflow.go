package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MLflowPredictor calls a model served by `mlflow models serve`.
type MLflowPredictor struct {
	baseURL string
	client  *http.Client
}

// NewMLflowPredictor returns a predictor for the scoring server at baseURL.
// A nil client gets a 10 second timeout.
func NewMLflowPredictor(baseURL string, client *http.Client) *MLflowPredictor {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &MLflowPredictor{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type dataframeSplit struct {
	Columns []string    `json:"columns"`
	Data    [][]float64 `json:"data"`
}

type invocationRequest struct {
	DataframeSplit dataframeSplit `json:"dataframe_split"`
}

// Predict implements Predictor.
func (p *MLflowPredictor) Predict(ctx context.Context, age, income float64) (float64, error) {
	body, err := json.Marshal(invocationRequest{DataframeSplit: dataframeSplit{
		Columns: Features,
		Data:    [][]float64{{age, income}},
	}})
	if err != nil {
		return 0, fmt.Errorf("predict: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/invocations", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("predict: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("predict: invocations: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("predict: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("predict: invocations returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return firstPrediction(raw)
}

// firstPrediction accepts {"predictions":[x]} and the older bare [x].
func firstPrediction(raw []byte) (float64, error) {
	var wrapped struct {
		Predictions []float64 `json:"predictions"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Predictions) > 0 {
		return wrapped.Predictions[0], nil
	}
	var bare []float64
	if err := json.Unmarshal(raw, &bare); err == nil && len(bare) > 0 {
		return bare[0], nil
	}
	return 0, fmt.Errorf("predict: no prediction in response %q", strings.TrimSpace(string(raw)))
}

// Ping checks the scoring server's /ping endpoint.
func (p *MLflowPredictor) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/ping", nil)
	if err != nil {
		return fmt.Errorf("predict: build ping request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("predict: ping: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("predict: ping returned %d", resp.StatusCode)
	}
	return nil
}
