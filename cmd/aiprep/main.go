// Command aiprep is the entry point for the aiprep prediction and document
// Q&A service. It provides a CLI interface (via Cobra), the HTTP API and a
// stdio bridge for tool-calling clients.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/aiprep-go/cmd/aiprep/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
