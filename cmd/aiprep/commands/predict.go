package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/54b3r/aiprep-go/internal/logging"
)

// NewPredictCmd constructs the `aiprep predict` command, which scores one
// (age, income) pair with the loaded model.
func NewPredictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict <age> <income>",
		Short: "Score one (age, income) pair with the prediction model",
		Long: `Load the artifact named by MODEL_URI and print the prediction for the
given age and income.

MODEL_URI may be a CatBoost JSON export (file or directory containing
model.json) or the base URL of an MLflow scoring server.

Examples:
  aiprep predict 35 52000
  MODEL_URI=http://127.0.0.1:5001 aiprep predict 35 52000`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			age, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("predict: age %q is not a number", args[0])
			}
			income, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("predict: income %q is not a number", args[1])
			}

			p, err := openPredictor(settings, logging.FromContext(ctx))
			if err != nil {
				return fmt.Errorf("predict: %w", err)
			}
			v, err := p.Predict(ctx, age, income)
			if err != nil {
				return fmt.Errorf("predict: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(v, 'g', -1, 64))
			return nil
		},
	}
}
