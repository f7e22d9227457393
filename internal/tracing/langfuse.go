// Package tracing wires optional Langfuse tracing into every eino component
// invocation (chat model calls, react agent steps and tool calls).
package tracing

import (
	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/aiprep-go/internal/config"
)

// defaultHost is the self-hosted Langfuse address used when LANGFUSE_HOST is unset.
const defaultHost = "http://localhost:3000"

// Setup builds the Langfuse callback handler when both keys are present.
// The returned flush function must be called before process exit so queued
// traces are sent. When tracing is not configured it returns nil, nil, false.
func Setup(cfg config.TracingSettings) (callbacks.Handler, func(), bool) {
	if !cfg.Enabled() {
		return nil, nil, false
	}
	host := cfg.Host
	if host == "" {
		host = defaultHost
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
	})
	return handler, flusher, true
}

// Install registers the handler globally and returns the flush function, or
// a no-op when tracing is disabled. Call it once per process.
func Install(cfg config.TracingSettings) func() {
	handler, flush, ok := Setup(cfg)
	if !ok {
		return func() {}
	}
	callbacks.AppendGlobalHandlers(handler)
	return flush
}
