package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/aiprep-go/internal/logging"
	"github.com/54b3r/aiprep-go/internal/server"
)

// NewServeCmd constructs the `aiprep serve` command, which starts the HTTP
// API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the aiprep HTTP API",
		Long: `Start the aiprep HTTP API.

Endpoints:
  GET /health                      liveness
  GET /ready                       dependency probes (LLM, vector store, predictor)
  GET /predict?age=..&income=..    model prediction
  GET /ask?question=..[&top_k=..]  grounded answer with sources
  GET /agent?query=..              tool-calling agent
  GET /metrics                     Prometheus metrics

The prediction artifact (MODEL_URI) is loaded once at startup. When
AIPREP_API_KEY is set, /predict, /ask and /agent require it as a Bearer token.

Examples:
  aiprep serve
  aiprep serve --port 9090
  MODEL_PROVIDER=openai aiprep serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)
			s := settings
			if cmd.Flags().Changed("host") {
				s.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				s.Server.Port = port
			}

			log.Info("serve starting", slog.String("provider", s.Model.Provider))

			predictor, err := openPredictor(s, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			qs, err := buildQueryStack(ctx, s, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = qs.store.Close() }()

			deps := server.Deps{Predictor: predictor, Asker: qs.pipeline}
			ag, err := buildAgent(ctx, s, predictor, qs.pipeline)
			if err != nil {
				// /agent answers 503; predict and ask still work.
				log.Warn("agent unavailable", slog.Any("error", err))
			} else {
				deps.Agent = ag
				log.Info("agent initialised", slog.String("model", s.Model.AgentModel))
			}

			srv, err := server.New(deps, &server.Config{
				Host:    s.Server.Host,
				Port:    s.Server.Port,
				Logger:  log,
				Pingers: buildPingers(qs, predictor, s.Model.Provider),
				APIKey:  s.Server.APIKey,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (overrides AIPREP_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8000, "TCP port to listen on (overrides AIPREP_PORT)")

	return cmd
}
