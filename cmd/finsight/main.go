// Finsight answers natural-language financial questions from an indexed
// stock store, falling back to a live web-grounded lookup.
//
// Usage:
//
//	# Load the stock CSV into the vector store
//	finsight ingest data/stocks.csv
//
//	# Ask one question
//	finsight ask "What is Apple's PE ratio?"
//
//	# Serve the HTTP API
//	GROQ_API_KEY=... GEMINI_API_KEY=... finsight serve
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	// configPath overrides ~/.config/finsight/config.yaml
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "finsight",
	Short: "Financial question answering over a stock vector store",
	Long: `finsight interprets a financial question, searches the indexed stock
records and answers from the best match, or fetches live market data when the
store has nothing relevant.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/finsight/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(versionCmd)
}
