// Package embeddings turns record text and user queries into vectors.
//
// Two providers are available: FastEmbed runs ONNX models in-process and
// needs a cgo build, OpenAI talks to any OpenAI-compatible /embeddings
// endpoint (OpenAI, TEI, Ollama) through langchaingo.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/finsight/internal/config"
	"go.uber.org/zap"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Embedder generates vectors for documents and queries.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Provider is an Embedder bound to one model.
type Provider interface {
	Embedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is "fastembed" or "openai".
	Provider string
	Model    string
	// Dimension overrides the dimension derived from Model.
	Dimension int
	// CacheDir is the FastEmbed model cache.
	CacheDir string
	// BaseURL and APIKey are used by the openai provider.
	BaseURL string
	APIKey  string
}

// ConfigFrom maps the embeddings section of the application config.
func ConfigFrom(c config.EmbeddingsConfig) ProviderConfig {
	return ProviderConfig{
		Provider:  c.Provider,
		Model:     c.Model,
		Dimension: c.Dimension,
		CacheDir:  config.ExpandHome(c.CacheDir),
		BaseURL:   c.BaseURL,
		APIKey:    c.APIKey.Value(),
	}
}

// NewProvider creates an embedding provider and wraps it with metrics. The
// fastembed provider installs the ONNX runtime first when it is missing.
func NewProvider(ctx context.Context, cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case "fastembed", "":
		if _, err := EnsureONNXRuntime(ctx, logger); err != nil {
			return nil, err
		}
		p, err = NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case "openai":
		p, err = NewOpenAIProvider(OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Dimension > 0 && p.Dimension() > 0 && cfg.Dimension != p.Dimension() {
		_ = p.Close()
		return nil, fmt.Errorf("%w: model %s produces %d dimensions, config says %d",
			ErrInvalidConfig, cfg.Model, p.Dimension(), cfg.Dimension)
	}

	logger.Info("embedding provider initialized",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Int("dimension", p.Dimension()),
	)
	return WithMetrics(p, cfg.Model, NewMetrics(logger)), nil
}

// instrumented records generation metrics around another Provider.
type instrumented struct {
	Provider
	model   string
	metrics *Metrics
}

// WithMetrics wraps p so every call is recorded in m.
func WithMetrics(p Provider, model string, m *Metrics) Provider {
	return &instrumented{Provider: p, model: model, metrics: m}
}

func (i *instrumented) EmbedDocuments(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	start := time.Now()
	defer func() {
		i.metrics.RecordGeneration(ctx, i.model, "embed_documents", time.Since(start), len(texts), err)
	}()
	return i.Provider.EmbedDocuments(ctx, texts)
}

func (i *instrumented) EmbedQuery(ctx context.Context, text string) (vector []float32, err error) {
	start := time.Now()
	defer func() {
		i.metrics.RecordGeneration(ctx, i.model, "embed_query", time.Since(start), 1, err)
	}()
	return i.Provider.EmbedQuery(ctx, text)
}
