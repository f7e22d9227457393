package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/54b3r/aiprep-go/internal/version"
)

// Name is the MCP implementation name announced to clients.
const Name = "ai-prep"

// PredictInput is the input schema for the predict tool.
type PredictInput struct {
	Age    float64 `json:"age" jsonschema:"age in years"`
	Income float64 `json:"income" jsonschema:"annual income"`
}

// PredictOutput is the output schema for the predict tool.
type PredictOutput struct {
	Prediction float64 `json:"prediction"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"natural language question for the document index"`
}

// SourceOutput is one provenance entry of an answer.
type SourceOutput struct {
	Source string `json:"source"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer  string         `json:"answer"`
	Sources []SourceOutput `json:"sources"`
}

// HealthInput is empty; the health tool takes no arguments.
type HealthInput struct{}

// HealthOutput is the output schema for the health tool. Body holds the
// decoded JSON body on success and the raw text otherwise.
type HealthOutput struct {
	OK    bool   `json:"ok"`
	Body  any    `json:"body,omitempty"`
	Error string `json:"error,omitempty"`
}

// Server is the stdio MCP server.
type Server struct {
	client *Client
	server *mcp.Server
	log    *slog.Logger
}

// NewServer creates the MCP server and registers its tools.
func NewServer(client *Client, log *slog.Logger) (*Server, error) {
	if client == nil {
		return nil, fmt.Errorf("bridge: client must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		client: client,
		server: mcp.NewServer(&mcp.Implementation{Name: Name, Version: version.Version}, nil),
		log:    log,
	}
	s.registerTools()
	return s, nil
}

// Tools lists the registered tool names, in registration order.
func (s *Server) Tools() []string { return []string{"predict", "ask", "health"} }

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "predict",
		Description: "Run the CatBoost prediction via the API's /predict endpoint.",
	}, s.handlePredict)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Query the document index via the API's /ask endpoint.",
	}, s.handleAsk)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "health",
		Description: "Check API health (no arguments).",
	}, s.handleHealth)
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("bridge: starting",
		slog.String("name", Name),
		slog.String("api_base", s.client.base),
		slog.String("tools", strings.Join(s.Tools(), ", ")),
	)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) handlePredict(ctx context.Context, _ *mcp.CallToolRequest, in PredictInput) (*mcp.CallToolResult, PredictOutput, error) {
	out, err := s.client.Predict(ctx, in.Age, in.Income)
	if err != nil {
		s.log.Warn("bridge: predict failed", slog.Any("error", err))
		return nil, PredictOutput{}, err
	}
	return nil, *out, nil
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, AskOutput, error) {
	if strings.TrimSpace(in.Question) == "" {
		return nil, AskOutput{}, fmt.Errorf("bridge: question is required")
	}
	out, err := s.client.Ask(ctx, in.Question)
	if err != nil {
		s.log.Warn("bridge: ask failed", slog.Any("error", err))
		return nil, AskOutput{}, err
	}
	return nil, *out, nil
}

func (s *Server) handleHealth(ctx context.Context, _ *mcp.CallToolRequest, _ HealthInput) (*mcp.CallToolResult, HealthOutput, error) {
	return nil, s.client.Health(ctx), nil
}
