package server

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/aiprep-go/internal/logging"
	"github.com/54b3r/aiprep-go/internal/predict"
	"github.com/54b3r/aiprep-go/internal/provider"
)

// LLMPinger probes an LLM backend. It satisfies the Pinger interface and is
// used by GET /ready.
type LLMPinger struct {
	// model is the chat model to probe when no health check is available.
	model model.BaseChatModel
	// healthCheck is the zero-cost probe for the backend, if it has one.
	healthCheck provider.HealthChecker
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given model and backend name.
// hc may be nil.
func NewLLMPinger(m model.BaseChatModel, hc provider.HealthChecker, name string) *LLMPinger {
	return &LLMPinger{model: m, healthCheck: hc, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping uses the backend's health check when it has one; otherwise it falls
// back to a single Generate call, which consumes tokens.
func (p *LLMPinger) Ping(ctx context.Context) error {
	if p.healthCheck != nil {
		if err := p.healthCheck.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s health check failed: %w", p.name, err)
		}
		return nil
	}
	if p.model == nil {
		return fmt.Errorf("%s: no model to probe", p.name)
	}

	logging.FromContext(ctx).Debug("pinger: no health check for backend, probing with Generate")
	resp, err := p.model.Generate(ctx, []*schema.Message{schema.UserMessage("ping")})
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}

// pingable is implemented by the stores and the served predictor.
type pingable interface {
	Ping(ctx context.Context) error
}

// DependencyPinger adapts anything with a Ping method to the Pinger interface.
type DependencyPinger struct {
	name string
	dep  pingable
}

// NewDependencyPinger labels dep as name in readiness responses.
func NewDependencyPinger(name string, dep pingable) *DependencyPinger {
	return &DependencyPinger{name: name, dep: dep}
}

// Name returns the dependency label used in readiness responses.
func (p *DependencyPinger) Name() string { return p.name }

// Ping delegates to the dependency.
func (p *DependencyPinger) Ping(ctx context.Context) error { return p.dep.Ping(ctx) }

// PredictorPinger reports whether the prediction model can score a request.
type PredictorPinger struct {
	predictor predict.Predictor
}

// NewPredictorPinger constructs a PredictorPinger.
func NewPredictorPinger(p predict.Predictor) *PredictorPinger {
	return &PredictorPinger{predictor: p}
}

// Name returns the dependency label used in readiness responses.
func (p *PredictorPinger) Name() string { return "predictor" }

// Ping uses the predictor's own Ping when it is remote; an in-process model
// is probed with a throwaway prediction.
func (p *PredictorPinger) Ping(ctx context.Context) error {
	if pp, ok := p.predictor.(pingable); ok {
		return pp.Ping(ctx)
	}
	if _, err := p.predictor.Predict(ctx, 0, 0); err != nil {
		return fmt.Errorf("probe prediction failed: %w", err)
	}
	return nil
}
