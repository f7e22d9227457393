package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/54b3r/aiprep-go/internal/logging"
)

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := logging.NewWriter(&buf, "debug", "json")

	var seen string
	h := requestLogger(base, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The request-scoped logger must reach the handler.
		logging.FromContext(r.Context()).Info("inside")
		seen = w.Header().Get(requestIDHeader)
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ask?question=x", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get(requestIDHeader); got != "abc-123" || seen != "abc-123" {
		t.Errorf("request id not propagated: header=%q handler=%q", got, seen)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	checks := map[string]any{
		"msg":        "request",
		"request_id": "abc-123",
		"path":       "/ask",
		"status":     float64(http.StatusTeapot),
		"level":      "WARN",
	}
	for k, want := range checks {
		if entry[k] != want {
			t.Errorf("%s: expected %v, got %v", k, want, entry[k])
		}
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	if got := requestID("trace-42"); got != "trace-42" {
		t.Errorf("valid id should be kept, got %q", got)
	}
	for _, bad := range []string{"", "has space", strings.Repeat("x", maxRequestIDLen+1), "new\nline"} {
		got := requestID(bad)
		if got == bad || len(got) != 36 {
			t.Errorf("requestID(%q) should mint a UUID, got %q", bad, got)
		}
	}
}

func TestLevelFor(t *testing.T) {
	t.Parallel()

	cases := map[int]slog.Level{
		200: slog.LevelInfo,
		307: slog.LevelInfo,
		404: slog.LevelWarn,
		429: slog.LevelWarn,
		502: slog.LevelError,
	}
	for status, want := range cases {
		if got := levelFor(status); got != want {
			t.Errorf("levelFor(%d): expected %v, got %v", status, want, got)
		}
	}
}
