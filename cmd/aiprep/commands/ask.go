package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/aiprep-go/internal/logging"
)

// NewAskCmd constructs the `aiprep ask` command, which answers one question
// from the indexed documents and prints the answer with its sources.
func NewAskCmd() *cobra.Command {
	var topK int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the indexed documents",
		Long: `Retrieve the most similar units from the Document Store, ground the model
in them and print the answer followed by its distinct sources.

When nothing is retrieved the fixed fallback answer is printed and the model
is not called.

Examples:
  aiprep ask "What is the notice period for termination?"
  aiprep ask --top-k 5 --json "Who is the landlord?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			qs, err := buildQueryStack(ctx, settings, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer func() { _ = qs.store.Close() }()

			ans, err := qs.pipeline.AnswerQuestion(ctx, strings.Join(args, " "), topK)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(ans)
			}
			fmt.Fprintln(out, ans.Text)
			if len(ans.Sources) > 0 {
				fmt.Fprintln(out, "\nSources:")
				for _, src := range ans.Sources {
					fmt.Fprintf(out, "  - %s\n", src.Source)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of units to retrieve (default: RAG_TOP_K)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the answer as JSON")

	return cmd
}
