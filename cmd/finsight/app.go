package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/finsight/internal/config"
	"github.com/fyrsmithlabs/finsight/internal/embeddings"
	"github.com/fyrsmithlabs/finsight/internal/gate"
	"github.com/fyrsmithlabs/finsight/internal/intent"
	"github.com/fyrsmithlabs/finsight/internal/live"
	"github.com/fyrsmithlabs/finsight/internal/llm"
	"github.com/fyrsmithlabs/finsight/internal/logging"
	"github.com/fyrsmithlabs/finsight/internal/orchestrator"
	"github.com/fyrsmithlabs/finsight/internal/render"
	"github.com/fyrsmithlabs/finsight/internal/retriever"
	"github.com/fyrsmithlabs/finsight/internal/telemetry"
	"github.com/fyrsmithlabs/finsight/internal/vectorstore"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app holds the process-wide handles shared by every command.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	store     vectorstore.Store
	embedder  embeddings.Provider
}

// newApp loads configuration and opens the store and embedder.
//
// This function initializes, in order:
//  1. Configuration (file, environment, defaults)
//  2. Telemetry and the logger
//  3. The vector store
//  4. The embedding provider
func newApp(ctx context.Context, path string) (*app, error) {
	cfg, err := config.LoadWithFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	logger, err := logging.NewLogger(loggingConfig(cfg.Observability), tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	zl := logger.Underlying()

	a := &app{cfg: cfg, logger: logger, telemetry: tel}

	a.store, err = vectorstore.NewStore(ctx, cfg, zl)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	a.embedder, err = embeddings.NewProvider(ctx, embeddings.ConfigFrom(cfg.Embeddings), zl)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	logger.Info(ctx, "finsight initialized",
		zap.String("version", version),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("collection", cfg.Qdrant.CollectionName),
		zap.String("embeddings", cfg.Embeddings.Provider),
		zap.Int("dimension", a.embedder.Dimension()),
	)
	return a, nil
}

// loggingConfig maps the observability section onto the logger defaults.
func loggingConfig(o config.ObservabilityConfig) *logging.Config {
	cfg := logging.NewDefaultConfig()
	if lvl, err := logging.LevelFromString(o.LogLevel); err == nil {
		cfg.Level = lvl
	}
	if o.LogFormat != "" {
		cfg.Format = o.LogFormat
	}
	cfg.Output.OTEL = o.EnableTelemetry
	if o.ServiceName != "" {
		cfg.Fields["service"] = o.ServiceName
	}
	if cfg.Level > zapcore.DebugLevel {
		cfg.Caller.Enabled = false
	}
	return cfg
}

// pipeline builds the orchestrator. It needs the hosted model API keys.
func (a *app) pipeline(opts ...orchestrator.Option) (*orchestrator.Orchestrator, error) {
	if err := a.cfg.RequireAPIKeys(); err != nil {
		return nil, err
	}
	zl := a.logger.Underlying()
	p := a.cfg.Pipeline

	chat, err := llm.New(llm.ConfigFrom(a.cfg.LLM), zl)
	if err != nil {
		return nil, fmt.Errorf("creating chat model: %w", err)
	}

	backend, err := live.NewBackend(a.cfg.Live, zl)
	if err != nil {
		return nil, fmt.Errorf("creating live backend: %w", err)
	}

	ret, err := retriever.New(a.embedder, a.store, retriever.Config{
		Collection: a.cfg.Qdrant.CollectionName,
		Timeout:    p.SearchTimeout,
	}, zl)
	if err != nil {
		return nil, err
	}

	opts = append([]orchestrator.Option{
		orchestrator.WithTopK(p.TopK),
		orchestrator.WithLogger(a.logger),
		orchestrator.WithTracer(a.telemetry.Tracer("finsight.orchestrator")),
	}, opts...)

	return orchestrator.New(orchestrator.Deps{
		Interpreter: intent.NewLLMInterpreter(chat, p.InterpretTimeout, zl),
		Searcher:    ret,
		Gate:        gate.NewLLMGate(chat, p.GateTimeout, zl),
		Fetcher:     live.NewFetcher(backend, p.FallbackTimeout, zl),
		Renderer:    render.NewLLMRenderer(chat, p.RenderTimeout, zl),
	}, opts...)
}

// Close releases all handles. Errors are logged, not returned.
func (a *app) Close(ctx context.Context) {
	var errs []error
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn(ctx, "shutdown incomplete", zap.Error(err))
	}
	_ = a.logger.Sync()
}
