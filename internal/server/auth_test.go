package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequireAPIKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		key        string
		header     http.Header
		wantStatus int
	}{
		{"disabled passes everything", "", nil, http.StatusOK},
		{"missing credentials", "secret", nil, http.StatusUnauthorized},
		{"wrong bearer", "secret", http.Header{"Authorization": {"Bearer nope"}}, http.StatusUnauthorized},
		{"correct bearer", "secret", http.Header{"Authorization": {"Bearer secret"}}, http.StatusOK},
		{"lowercase scheme", "secret", http.Header{"Authorization": {"bearer secret"}}, http.StatusOK},
		{"basic auth rejected", "secret", http.Header{"Authorization": {"Basic dXNlcjpwYXNz"}}, http.StatusUnauthorized},
		{"x-api-key header", "secret", http.Header{"X-Api-Key": {"secret"}}, http.StatusOK},
		{"wrong x-api-key", "secret", http.Header{"X-Api-Key": {"secrets"}}, http.StatusUnauthorized},
		{"prefix of key", "secret", http.Header{"Authorization": {"Bearer sec"}}, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/predict", nil)
			for k, v := range tc.header {
				req.Header[k] = v
			}
			w := httptest.NewRecorder()
			requireAPIKey(tc.key, okHandler).ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, w.Code)
			}
			if w.Code == http.StatusUnauthorized {
				if w.Header().Get("WWW-Authenticate") == "" {
					t.Error("expected WWW-Authenticate header on 401")
				}
				if body := decode[errorResponse](t, w); body.Error == "" {
					t.Error("expected JSON error body on 401")
				}
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		header string
		want   string
	}{
		{"Bearer mytoken", "mytoken"},
		{"bearer mytoken", "mytoken"},
		{"BEARER mytoken", "mytoken"},
		{"Bearer  spaced ", "spaced"},
		{"Basic dXNlcjpwYXNz", ""},
		{"", ""},
		{"Bearer", ""},
		{"token only", ""},
	}

	for _, tc := range cases {
		if got := bearerToken(tc.header); got != tc.want {
			t.Errorf("header=%q: expected %q, got %q", tc.header, tc.want, got)
		}
	}
}
