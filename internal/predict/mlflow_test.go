package predict

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nan() float64 { return math.NaN() }

func TestMLflowPredictor_Predict(t *testing.T) {
	t.Parallel()

	var got invocationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/invocations", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"predictions": [0.42]}`))
	}))
	t.Cleanup(srv.Close)

	p := NewMLflowPredictor(srv.URL+"/", nil)
	v, err := p.Predict(context.Background(), 30, 50000)
	require.NoError(t, err)
	assert.InDelta(t, 0.42, v, 1e-9)
	assert.Equal(t, []string{"age", "income"}, got.DataframeSplit.Columns)
	assert.Equal(t, [][]float64{{30, 50000}}, got.DataframeSplit.Data)
}

func TestMLflowPredictor_BareList(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[0.7]`))
	}))
	t.Cleanup(srv.Close)

	v, err := NewMLflowPredictor(srv.URL, nil).Predict(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, v, 1e-9)
}

func TestMLflowPredictor_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error_code": "BAD_REQUEST"}`},
		{"empty predictions", http.StatusOK, `{"predictions": []}`},
		{"not json", http.StatusOK, `nope`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewMLflowPredictor(srv.URL, nil).Predict(context.Background(), 1, 2)
			assert.Error(t, err)
		})
	}
}

func TestMLflowPredictor_Ping(t *testing.T) {
	t.Parallel()

	var unhealthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ping", r.URL.Path)
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	t.Cleanup(srv.Close)

	p := NewMLflowPredictor(srv.URL, nil)
	assert.NoError(t, p.Ping(context.Background()))

	unhealthy.Store(true)
	assert.Error(t, p.Ping(context.Background()))
}
