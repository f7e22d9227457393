package server

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// okHandler answers 200 so tests can tell a pass-through from a rejection.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestClientLimiter_BurstThenReject(t *testing.T) {
	t.Parallel()

	l := newClientLimiter(0.001, 2)
	now := time.Now()

	for i := range 2 {
		if wait := l.reserve("10.0.0.1", now); wait != 0 {
			t.Fatalf("request %d: expected pass, got wait %v", i, wait)
		}
	}
	if wait := l.reserve("10.0.0.1", now); wait <= 0 {
		t.Fatal("third request inside the burst window should be rejected")
	}
}

func TestClientLimiter_RejectionDoesNotConsumeToken(t *testing.T) {
	t.Parallel()

	// 1 token/s, bucket of 1.
	l := newClientLimiter(1, 1)
	now := time.Now()

	if l.reserve("a", now) != 0 {
		t.Fatal("first request should pass")
	}
	for range 5 {
		if l.reserve("a", now) == 0 {
			t.Fatal("requests before refill should be rejected")
		}
	}
	// One second later exactly one token is back, even after the rejections.
	if wait := l.reserve("a", now.Add(time.Second)); wait != 0 {
		t.Errorf("expected refill after 1s, still waiting %v", wait)
	}
}

func TestClientLimiter_PerClientIsolation(t *testing.T) {
	t.Parallel()

	l := newClientLimiter(0.001, 1)
	now := time.Now()

	l.reserve("192.168.1.1", now)
	if l.reserve("192.168.1.1", now) == 0 {
		t.Fatal("client A should be exhausted")
	}
	if wait := l.reserve("192.168.1.2", now); wait != 0 {
		t.Errorf("client B should be independent of A, got wait %v", wait)
	}
}

func TestClientLimiter_Sweep(t *testing.T) {
	t.Parallel()

	l := newClientLimiter(10, 10)
	now := time.Now()
	l.reserve("old", now.Add(-10*time.Minute))
	l.reserve("fresh", now)

	if left := l.sweep(now, limiterIdleTTL); left != 1 {
		t.Fatalf("expected 1 bucket after sweep, got %d", left)
	}
	if _, ok := l.buckets["fresh"]; !ok {
		t.Error("fresh bucket was evicted")
	}
}

func TestRateLimit_Middleware(t *testing.T) {
	t.Parallel()

	s, reg := newMetricsTestServer(t, Deps{Predictor: &fakePredictor{}, Asker: &fakeAsker{}}, &Config{RateLimit: 0.001, RateBurst: 1})
	h := s.rateLimit("ask", okHandler)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ask", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	if w := send(); w.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", w.Code)
	}
	w := send()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", w.Code)
	}
	secs, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || secs < 1 {
		t.Errorf("Retry-After: expected positive seconds, got %q", w.Header().Get("Retry-After"))
	}
	if body := decode[errorResponse](t, w); body.Error != "rate limit exceeded" {
		t.Errorf("error body: got %q", body.Error)
	}

	m := findMetric(t, reg, "aiprep_http_rate_limited_total", map[string]string{"handler": "ask"})
	if m == nil || m.GetCounter().GetValue() != 1 {
		t.Errorf("rate limited counter: got %v", m)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   time.Duration
		want string
	}{
		{10 * time.Millisecond, "1"},
		{time.Second, "1"},
		{1500 * time.Millisecond, "2"},
		{1000 * time.Second, "1000"},
		{24 * time.Hour, "3600"},
	}
	for _, tc := range cases {
		if got := retryAfterSeconds(tc.in); got != tc.want {
			t.Errorf("retryAfterSeconds(%v): expected %s, got %s", tc.in, tc.want, got)
		}
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	cases := []struct {
		remoteAddr string
		wantIP     string
	}{
		{"127.0.0.1:54321", "127.0.0.1"},
		{"10.0.0.1:80", "10.0.0.1"},
		{"[::1]:8080", "::1"},
		{"noport", "noport"},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tc.remoteAddr
		if got := clientIP(req); got != tc.wantIP {
			t.Errorf("remoteAddr=%q: expected %q, got %q", tc.remoteAddr, tc.wantIP, got)
		}
	}
}
