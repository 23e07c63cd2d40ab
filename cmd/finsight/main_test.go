package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fyrsmithlabs/finsight/internal/config"
	"github.com/fyrsmithlabs/finsight/internal/intent"
	"github.com/fyrsmithlabs/finsight/internal/orchestrator"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func findCommand(t *testing.T, name string) *cobra.Command {
	t.Helper()
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name {
			return cmd
		}
	}
	t.Fatalf("%s command not found in rootCmd", name)
	return nil
}

func TestRootCmd_Subcommands(t *testing.T) {
	for _, name := range []string{"serve", "ask", "ingest", "version"} {
		t.Run(name, func(t *testing.T) {
			cmd := findCommand(t, name)
			assert.NotEmpty(t, cmd.Short)
		})
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestIngestCmd_Flags(t *testing.T) {
	cmd := findCommand(t, "ingest")
	require.NotNil(t, cmd.Flags().Lookup("recreate"))

	batch := cmd.Flags().Lookup("batch-size")
	require.NotNil(t, batch)
	assert.Equal(t, "64", batch.DefValue)

	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"stocks.csv"}))
}

func TestAskCmd_Args(t *testing.T) {
	cmd := findCommand(t, "ask")
	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"apple", "pe"}))
	assert.NotNil(t, cmd.Flags().Lookup("json"))
}

func TestVersionCmd(t *testing.T) {
	cmd := findCommand(t, "version")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)

	assert.Contains(t, out.String(), "finsight "+version)
	assert.Contains(t, out.String(), "Git commit: "+gitCommit)
}

func TestPrintAnswer_Store(t *testing.T) {
	score := float32(0.8731)
	result := &orchestrator.AnswerResult{
		Message: "Apple trades at 29.1x earnings.",
		Source:  orchestrator.SourceStore,
		Score:   &score,
		ParsedQuery: intent.ParsedIntent{
			Entities:       []string{"AAPL"},
			DateConstraint: intent.NoDate,
			Route:          intent.RouteVector,
		},
	}

	var out bytes.Buffer
	require.NoError(t, printAnswer(&out, result, false))

	got := out.String()
	assert.Contains(t, got, `"stocks_mentioned":["AAPL"]`)
	assert.Contains(t, got, "> Found in database:\nApple trades at 29.1x earnings.\n")
	assert.Contains(t, got, "(Qdrant match score: 0.87)")
	assert.NotContains(t, got, "Fetching live data")
}

func TestPrintAnswer_Live(t *testing.T) {
	result := &orchestrator.AnswerResult{
		Message:     "Error fetching live data.",
		Source:      orchestrator.SourceLive,
		ParsedQuery: intent.Default(),
	}

	var out bytes.Buffer
	require.NoError(t, printAnswer(&out, result, false))

	got := out.String()
	assert.Contains(t, got, "> No good match in database. Fetching live data...\nError fetching live data.\n")
	assert.NotContains(t, got, "match score")
}

func TestPrintAnswer_LiveRoute(t *testing.T) {
	result := &orchestrator.AnswerResult{
		Message: "Tesla (TSLA) Current Price: $250.10",
		Source:  orchestrator.SourceLive,
		ParsedQuery: intent.ParsedIntent{
			Entities:       []string{"TSLA"},
			DateConstraint: intent.NoDate,
			Route:          intent.RouteLive,
		},
	}

	var out bytes.Buffer
	require.NoError(t, printAnswer(&out, result, false))

	got := out.String()
	assert.Contains(t, got, "> Fetching live data...\nTesla (TSLA) Current Price: $250.10\n")
	assert.NotContains(t, got, "No good match in database")
}

func TestPrintAnswer_JSON(t *testing.T) {
	result := &orchestrator.AnswerResult{
		Message:     "live answer",
		Source:      orchestrator.SourceLive,
		ParsedQuery: intent.Default(),
	}

	var out bytes.Buffer
	require.NoError(t, printAnswer(&out, result, true))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "live", decoded["source"])
	assert.Equal(t, "live answer", decoded["message"])
	assert.NotContains(t, decoded, "score")
}

func TestLoggingConfig(t *testing.T) {
	cfg := loggingConfig(config.ObservabilityConfig{
		LogLevel:        "debug",
		LogFormat:       "console",
		EnableTelemetry: true,
		ServiceName:     "finsight-api",
	})
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.True(t, cfg.Output.OTEL)
	assert.True(t, cfg.Caller.Enabled)
	assert.Equal(t, "finsight-api", cfg.Fields["service"])

	cfg = loggingConfig(config.ObservabilityConfig{LogLevel: "bogus"})
	assert.Equal(t, zapcore.InfoLevel, cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.False(t, cfg.Caller.Enabled)
}
