package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/aiprep-go/internal/logging"
)

// NewAgentCmd constructs the `aiprep agent` command, which runs one query
// through the tool-calling agent.
func NewAgentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agent [query]",
		Short: "Run a query through the tool-calling agent",
		Long: `Run a free-form query through the agent (AGENT_MODEL). The agent may call
predict_income and ask_docs before producing its final answer.

Examples:
  aiprep agent "What would the model predict for a 40 year old earning 60000?"
  aiprep agent "Summarise the deposit terms and predict for age 30, income 45000"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			predictor, err := openPredictor(settings, log)
			if err != nil {
				return fmt.Errorf("agent: %w", err)
			}
			qs, err := buildQueryStack(ctx, settings, log)
			if err != nil {
				return fmt.Errorf("agent: %w", err)
			}
			defer func() { _ = qs.store.Close() }()

			ag, err := buildAgent(ctx, settings, predictor, qs.pipeline)
			if err != nil {
				return fmt.Errorf("agent: %w", err)
			}

			result, err := ag.Run(ctx, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("agent: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}
}
