package server

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/aiprep-go/internal/logging"
)

// apiKeyHeader is accepted as an alternative to a Bearer token.
const apiKeyHeader = "X-API-Key"

// requireAPIKey guards next with the configured API key. With no key
// configured it returns next unchanged.
//
// Clients present the key as either
//
//	Authorization: Bearer <key>
//	X-API-Key: <key>
//
// Failures get 401 with a Bearer challenge and a JSON error body. The
// presented value is never logged.
func requireAPIKey(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := []byte(apiKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := presentedKey(r)
		if token == "" {
			logging.FromContext(r.Context()).Warn("auth: no credentials", slog.String("path", r.URL.Path))
			w.Header().Set("WWW-Authenticate", `Bearer realm="aiprep"`)
			writeError(r.Context(), w, http.StatusUnauthorized, errors.New("authorization required"))
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			logging.FromContext(r.Context()).Warn("auth: key rejected", slog.String("path", r.URL.Path))
			w.Header().Set("WWW-Authenticate", `Bearer realm="aiprep", error="invalid_token"`)
			writeError(r.Context(), w, http.StatusUnauthorized, errors.New("invalid API key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// presentedKey returns the Bearer token, falling back to X-API-Key.
func presentedKey(r *http.Request) string {
	if tok := bearerToken(r.Header.Get("Authorization")); tok != "" {
		return tok
	}
	return strings.TrimSpace(r.Header.Get(apiKeyHeader))
}

// bearerToken parses "Bearer <token>" with a case-insensitive scheme.
func bearerToken(hdr string) string {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(hdr), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}
