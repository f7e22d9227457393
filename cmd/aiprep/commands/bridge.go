package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/aiprep-go/internal/bridge"
	"github.com/54b3r/aiprep-go/internal/logging"
)

// NewBridgeCmd constructs the `aiprep bridge` command, which serves the
// predict, ask and health tools over stdio and forwards each call to the
// HTTP API.
func NewBridgeCmd() *cobra.Command {
	var apiBase string

	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Expose the HTTP API as stdio tools for tool-calling clients",
		Long: `Run a Model Context Protocol server named "ai-prep" on stdin/stdout.

Tools:
  predict(age, income)  forwards to GET /predict (10s timeout)
  ask(question)         forwards to GET /ask (15s timeout)
  health()              forwards to GET /health (5s timeout), never fails

The bridge needs a running 'aiprep serve'. Logs go to stderr only.

Examples:
  aiprep bridge
  API_BASE=http://10.0.0.5:8000 aiprep bridge`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			base := settings.Bridge.APIBase
			if cmd.Flags().Changed("api-base") {
				base = apiBase
			}
			log.Info("bridge forwarding", slog.String("api_base", base))

			srv, err := bridge.NewServer(bridge.NewClient(base, settings.Server.APIKey, nil), log)
			if err != nil {
				return fmt.Errorf("bridge: %w", err)
			}
			if err := srv.Run(ctx); err != nil {
				return fmt.Errorf("bridge: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&apiBase, "api-base", "", "HTTP API base URL (overrides API_BASE)")

	return cmd
}
