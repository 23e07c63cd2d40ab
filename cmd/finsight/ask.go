package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fyrsmithlabs/finsight/internal/intent"
	"github.com/fyrsmithlabs/finsight/internal/logging"
	"github.com/fyrsmithlabs/finsight/internal/orchestrator"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var askJSON bool

// askCmd answers one question and prints it
var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Answer one financial question",
	Long: `Run a single question through the pipeline and print the answer.

The parsed query is printed first, then the answer with its source. Answers
from the store include the match score.

Examples:
  finsight ask "What is Apple's PE ratio?"
  finsight ask --json "Top energy stocks by dividend yield"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the answer as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logging.WithRequestID(ctx, uuid.NewString())

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	orch, err := a.pipeline()
	if err != nil {
		return err
	}

	result, err := orch.Answer(ctx, query)
	if err != nil {
		return err
	}
	return printAnswer(cmd.OutOrStdout(), result, askJSON)
}

// printAnswer writes result in the interactive layout or as JSON.
func printAnswer(w io.Writer, result *orchestrator.AnswerResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	parsed, err := json.Marshal(result.ParsedQuery)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Parsed query: %s\n\n", parsed)

	switch result.Source {
	case orchestrator.SourceStore:
		fmt.Fprintln(w, "> Found in database:")
		fmt.Fprintln(w, result.Message)
		if result.Score != nil {
			fmt.Fprintf(w, "\n(Qdrant match score: %.2f)\n", *result.Score)
		}
	default:
		if result.ParsedQuery.Route == intent.RouteLive {
			fmt.Fprintln(w, "> Fetching live data...")
		} else {
			fmt.Fprintln(w, "> No good match in database. Fetching live data...")
		}
		fmt.Fprintln(w, result.Message)
	}
	return nil
}
