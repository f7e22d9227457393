package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// fakePinger is a test double for the Pinger interface.
type fakePinger struct {
	name string
	err  error
	// delay, when set, blocks Ping until it elapses or ctx ends.
	delay time.Duration
	calls atomic.Int32
}

func (f *fakePinger) Name() string { return f.name }

func (f *fakePinger) Ping(ctx context.Context) error {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

// newReadyTestServer builds a *Server with the given pingers wired in.
func newReadyTestServer(pingers ...Pinger) *Server {
	s := newTestServer()
	s.pingers = pingers
	return s
}

func getReady(t *testing.T, s *Server) (int, readyResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	s.handleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}
	return w.Code, decode[readyResponse](t, w)
}

func TestHandleHealth_OK(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	newTestServer().handleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	if body := decode[map[string]string](t, w); body["status"] != "ok" {
		t.Errorf("status: expected %q, got %q", "ok", body["status"])
	}
}

func TestHandleReady(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		pingers    []Pinger
		wantStatus int
		wantReady  bool
		wantOK     []bool
	}{
		{"no pingers", nil, http.StatusOK, true, nil},
		{
			"all healthy",
			[]Pinger{&fakePinger{name: "ollama"}, &fakePinger{name: "vector_store"}},
			http.StatusOK, true, []bool{true, true},
		},
		{
			"one failing",
			[]Pinger{&fakePinger{name: "ollama"}, &fakePinger{name: "vector_store", err: errors.New("connection refused")}},
			http.StatusServiceUnavailable, false, []bool{true, false},
		},
		{
			"all failing",
			[]Pinger{&fakePinger{name: "ollama", err: errors.New("timeout")}, &fakePinger{name: "predictor", err: errors.New("no model")}},
			http.StatusServiceUnavailable, false, []bool{false, false},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			code, resp := getReady(t, newReadyTestServer(tc.pingers...))
			if code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, code)
			}
			if resp.Ready != tc.wantReady {
				t.Errorf("ready: expected %v", tc.wantReady)
			}
			if len(resp.Checks) != len(tc.wantOK) {
				t.Fatalf("expected %d checks, got %d", len(tc.wantOK), len(resp.Checks))
			}
			for i, c := range resp.Checks {
				// Order follows registration.
				if c.Name != tc.pingers[i].Name() {
					t.Errorf("check %d: expected %q, got %q", i, tc.pingers[i].Name(), c.Name)
				}
				if c.OK != tc.wantOK[i] {
					t.Errorf("check %q: expected ok=%v", c.Name, tc.wantOK[i])
				}
				if !c.OK && c.Error == "" {
					t.Errorf("check %q: failed check must carry an error", c.Name)
				}
			}
		})
	}
}

func TestHandleReady_ProbesRunConcurrently(t *testing.T) {
	t.Parallel()

	slow := []*fakePinger{
		{name: "a", delay: 200 * time.Millisecond},
		{name: "b", delay: 200 * time.Millisecond},
		{name: "c", delay: 200 * time.Millisecond},
	}
	s := newReadyTestServer(slow[0], slow[1], slow[2])

	start := time.Now()
	code, _ := getReady(t, s)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if elapsed := time.Since(start); elapsed >= 550*time.Millisecond {
		t.Errorf("probes look sequential: took %v", elapsed)
	}
	for _, p := range slow {
		if p.calls.Load() != 1 {
			t.Errorf("pinger %s called %d times", p.name, p.calls.Load())
		}
	}
}

func TestHandleReady_DependencyGauge(t *testing.T) {
	t.Parallel()

	s, reg := newMetricsTestServer(t, Deps{Predictor: &fakePredictor{}, Asker: &fakeAsker{}}, &Config{
		Pingers: []Pinger{&fakePinger{name: "ollama"}, &fakePinger{name: "vector_store", err: errors.New("down")}},
	})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}

	for name, want := range map[string]float64{"ollama": 1, "vector_store": 0} {
		m := findMetric(t, reg, "aiprep_dependency_up", map[string]string{"dependency": name})
		if m == nil {
			t.Fatalf("aiprep_dependency_up{dependency=%q} not found", name)
		}
		if got := m.GetGauge().GetValue(); got != want {
			t.Errorf("%s: expected %v, got %v", name, want, got)
		}
	}
}
