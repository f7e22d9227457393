package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// newMetricsTestServer builds a Server backed by a fresh isolated registry so
// tests do not pollute prometheus.DefaultRegisterer.
// cfg may be nil.
func newMetricsTestServer(t *testing.T, deps Deps, cfg *Config) (*Server, *prometheus.Registry) {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	reg := prometheus.NewRegistry()
	cfg.MetricsRegistry = reg
	cfg.MetricsGatherer = reg
	s, err := New(deps, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, reg
}

// findMetric returns the metric in family name whose labels include all of want.
func findMetric(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) *dto.Metric {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue next
				}
			}
			return m
		}
	}
	return nil
}

func Test_Metrics_EndpointReturns200(t *testing.T) {
	t.Parallel()
	s, _ := newMetricsTestServer(t, Deps{Predictor: &fakePredictor{}, Asker: &fakeAsker{}}, nil)

	// Serve one request first so the http collectors have a sample.
	s.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
	if !strings.Contains(w.Body.String(), "aiprep_http_requests_total") {
		t.Error("aiprep_http_requests_total missing from /metrics output")
	}
}

func Test_Metrics_PredictCounterIncremented(t *testing.T) {
	t.Parallel()
	s, reg := newMetricsTestServer(t, Deps{Predictor: &fakePredictor{value: 1}, Asker: &fakeAsker{}}, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/predict?age=30&income=50000", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("predict: want 200, got %d", w.Code)
	}

	m := findMetric(t, reg, "aiprep_predict_requests_total", map[string]string{"outcome": "ok"})
	if m == nil {
		t.Fatal(`aiprep_predict_requests_total{outcome="ok"} not found`)
	}
	if v := m.GetCounter().GetValue(); v != 1 {
		t.Errorf("want counter=1, got %v", v)
	}

	h := findMetric(t, reg, "aiprep_http_requests_total", map[string]string{"handler": "predict", "code": "200", "method": "GET"})
	if h == nil {
		t.Fatal("http request counter for predict handler not found")
	}
}

func Test_Metrics_AskFallbackOutcome(t *testing.T) {
	t.Parallel()
	s, reg := newMetricsTestServer(t, Deps{Predictor: &fakePredictor{}, Asker: &fakeAsker{fallback: true}}, nil)

	s.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ask?question=anything", nil))

	if findMetric(t, reg, "aiprep_ask_requests_total", map[string]string{"outcome": "fallback"}) == nil {
		t.Error(`aiprep_ask_requests_total{outcome="fallback"} not found`)
	}
}

func Test_Metrics_InFlightGauge(t *testing.T) {
	t.Parallel()
	s, reg := newMetricsTestServer(t, Deps{Predictor: &fakePredictor{}, Asker: &fakeAsker{}}, nil)

	s.metrics.inFlightRequests.Inc()
	s.metrics.inFlightRequests.Inc()

	m := findMetric(t, reg, "aiprep_http_in_flight_requests", nil)
	if m == nil {
		t.Fatal("aiprep_http_in_flight_requests not found")
	}
	if v := m.GetGauge().GetValue(); v != 2 {
		t.Errorf("want in_flight=2, got %v", v)
	}
}
