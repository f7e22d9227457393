package tracing

import (
	"testing"

	"github.com/54b3r/aiprep-go/internal/config"
)

func TestSetup_DisabledWithoutKeys(t *testing.T) {
	cases := []config.TracingSettings{
		{},
		{PublicKey: "pk"},
		{SecretKey: "sk", Host: "http://langfuse:3000"},
	}
	for _, cfg := range cases {
		handler, flush, ok := Setup(cfg)
		if ok || handler != nil || flush != nil {
			t.Errorf("Setup(%+v) should be disabled, got ok=%v", cfg, ok)
		}
	}
}

func TestSetup_Enabled(t *testing.T) {
	handler, flush, ok := Setup(config.TracingSettings{PublicKey: "pk", SecretKey: "sk"})
	if !ok {
		t.Fatal("expected tracing to be enabled")
	}
	if handler == nil || flush == nil {
		t.Fatal("expected non-nil handler and flush")
	}
}

func TestInstall_DisabledIsNoop(t *testing.T) {
	flush := Install(config.TracingSettings{})
	if flush == nil {
		t.Fatal("Install must always return a callable flush")
	}
	flush()
}
