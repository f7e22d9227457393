// Package audit writes one structured line per CLI invocation recording the
// command, the config file in effect and the operational environment.
//
// Credentials are reduced to "set"/"unset"; URLs lose their userinfo.
package audit

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strings"
)

// auditedKeys are logged on every command, in this order.
var auditedKeys = []string{
	"MODEL_PROVIDER", "OLLAMA_HOST", "OLLAMA_MODEL", "AGENT_MODEL",
	"OPENAI_API_KEY", "OPENAI_MODEL",
	"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT",
	"ARK_API_KEY", "ARK_MODEL", "GOOGLE_API_KEY", "GEMINI_MODEL",
	"EMBEDDING_PROVIDER", "EMBED_MODEL", "EMBEDDING_ENDPOINT", "EMBEDDING_API_KEY",
	"VECTOR_STORE", "VECTOR_STORE_PATH", "RAG_COLLECTION", "RAG_TOP_K", "RAG_ID_POLICY",
	"QDRANT_HOST", "QDRANT_PORT", "QDRANT_API_KEY",
	"DATA_DIR", "CSV_PATH", "MODEL_URI", "API_BASE", "AIPREP_API_KEY",
	"LOG_LEVEL", "LOG_FORMAT", "LANGFUSE_HOST", "LANGFUSE_PUBLIC_KEY", "LANGFUSE_SECRET_KEY",
}

// secretSuffixes mark a variable as a credential.
var secretSuffixes = []string{"_API_KEY", "_SECRET_KEY", "_PUBLIC_KEY", "_TOKEN", "_PASSWORD"}

// LogCommandStart emits the audit line for command. configPath is the YAML
// file that was loaded, or empty.
func LogCommandStart(ctx context.Context, log *slog.Logger, command string, configPath string) {
	env := make([]any, 0, len(auditedKeys))
	for _, key := range auditedKeys {
		env = append(env, slog.String(key, SanitiseKey(key, os.Getenv(key))))
	}

	log.LogAttrs(ctx, slog.LevelInfo, "audit: command start",
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
		slog.Group("env", env...),
	)
}

// IsSecret reports whether key names a credential.
func IsSecret(key string) bool {
	for _, suf := range secretSuffixes {
		if strings.HasSuffix(key, suf) {
			return true
		}
	}
	return false
}

// SanitiseKey renders value for the log: credentials become "set"/"unset",
// URLs drop any embedded user:password, empty values become "unset".
func SanitiseKey(key, value string) string {
	switch {
	case value == "":
		return "unset"
	case IsSecret(key):
		return "set"
	default:
		return stripUserinfo(value)
	}
}

// stripUserinfo removes credentials from URL-shaped values.
func stripUserinfo(v string) string {
	if !strings.Contains(v, "://") {
		return v
	}
	u, err := url.Parse(v)
	if err != nil || u.User == nil {
		return v
	}
	u.User = nil
	return u.String()
}

// sanitiseConfigPath returns the config path with the home directory
// abbreviated, or "none".
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
