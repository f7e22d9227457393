// Package commands defines all Cobra CLI commands for the aiprep binary.
package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/aiprep-go/internal/audit"
	"github.com/54b3r/aiprep-go/internal/config"
	"github.com/54b3r/aiprep-go/internal/logging"
	"github.com/54b3r/aiprep-go/internal/tracing"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// settings is resolved once by the root PersistentPreRunE and read by every
// subcommand.
var settings *config.Settings

// flushTracing drains buffered Langfuse events; a no-op when tracing is off.
var flushTracing = func() {}

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "aiprep",
		Short: "aiprep: tabular predictions and document Q&A on local models",
		Long: `aiprep serves a tabular prediction model and answers questions over an
indexed document corpus (PDFs and a tabular dataset) with a local or hosted LLM.

Configuration is layered: defaults, then a YAML file (--config, AIPREP_CONFIG,
~/.aiprep/config.yaml or ./aiprep.yaml), then ./.env, then the environment.
See 'aiprep --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			bootLog := slog.Default()

			// Load YAML config (env vars always override YAML values).
			loaded, err := config.Load(configPath, bootLog)
			if err != nil {
				return err
			}

			s, err := config.FromEnv()
			if err != nil {
				return err
			}
			settings = s

			log := logging.New(s.Logging.Level, s.Logging.Format)
			slog.SetDefault(log)
			ctx := logging.WithLogger(cmd.Context(), log)
			cmd.SetContext(ctx)

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(ctx, log, cmd.Name(), loaded)

			flushTracing = tracing.Install(s.Tracing)
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			flushTracing()
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.aiprep/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewAskCmd(),
		NewPredictCmd(),
		NewAgentCmd(),
		NewBridgeCmd(),
		NewVersionCmd(),
	)

	return root
}
