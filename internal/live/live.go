// Package live answers queries with current market data from a grounded
// web-search model. It is the fallback when the vector store cannot answer.
package live

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/finsight/internal/config"
	"github.com/fyrsmithlabs/finsight/internal/llm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// ErrorMessage is returned by FetchLive whenever the backend fails.
const ErrorMessage = "Error fetching live data."

// SystemPrompt is the instruction sent with every live query.
const SystemPrompt = `You are a financial assistant with expertise in stocks, money, and finance.
Instructions:
1. If the user asks about any stock, finance, or money-related query:
   - Fetch the most recent market data available.
   - Always return the following details (if available):
        • Current Price
        • Market Cap
        • PE Ratio
        • Dividend Yield
2. If any information is missing, explicitly say: "Data not available".
3. Keep responses concise, professional, and informative.
4. Always relate your answer directly to the user query.
5. Ensure your response mentions:
   - current_price
   - market_cap
   - pe_ratio
   - dividend_yield
6. Always try to give answer based on the latest market data.`

var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyAnswer is returned when the backend produced no text.
	ErrEmptyAnswer = errors.New("live backend returned no answer")
)

var fetchTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "finsight",
		Subsystem: "live",
		Name:      "fetch_total",
		Help:      "Live fallback fetches by result (ok, error, panic).",
	},
	[]string{"result"},
)

// Backend produces a grounded answer or an error.
type Backend interface {
	Answer(ctx context.Context, query string) (string, error)
}

// Fetcher is the never-failing live lookup the orchestrator uses.
type Fetcher interface {
	FetchLive(ctx context.Context, query string) string
}

// SafeFetcher turns every Backend failure, including panics, into
// ErrorMessage.
type SafeFetcher struct {
	backend Backend
	timeout time.Duration
	logger  *zap.Logger
}

// NewFetcher wraps backend. A zero timeout disables the per-call deadline.
func NewFetcher(backend Backend, timeout time.Duration, logger *zap.Logger) *SafeFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SafeFetcher{backend: backend, timeout: timeout, logger: logger}
}

// FetchLive returns the backend's answer or ErrorMessage.
func (f *SafeFetcher) FetchLive(ctx context.Context, query string) (answer string) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("live backend panicked", zap.Any("panic", r))
			fetchTotal.WithLabelValues("panic").Inc()
			answer = ErrorMessage
		}
	}()

	text, err := f.backend.Answer(ctx, query)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyAnswer
	}
	if err != nil {
		f.logger.Warn("live fetch failed", zap.Error(err))
		fetchTotal.WithLabelValues("error").Inc()
		return ErrorMessage
	}

	fetchTotal.WithLabelValues("ok").Inc()
	return text
}

// ChatBackend answers with any langchaingo model. It has no web grounding
// of its own; use it with models that search server-side.
type ChatBackend struct {
	model llms.Model
}

// NewChatBackend wraps model.
func NewChatBackend(model llms.Model) *ChatBackend {
	return &ChatBackend{model: model}
}

// Answer sends query with the live-data instruction.
func (b *ChatBackend) Answer(ctx context.Context, query string) (string, error) {
	return llm.Complete(ctx, b.model, SystemPrompt, query)
}

// NewBackend builds the backend selected by cfg.Provider: "gemini"
// (default) or "openai".
func NewBackend(cfg config.LiveConfig, logger *zap.Logger) (Backend, error) {
	switch cfg.Provider {
	case "gemini", "":
		return NewGeminiClient(GeminiConfig{
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			APIKey:            cfg.APIKey.Value(),
			ThinkingBudget:    cfg.ThinkingBudget,
			Timeout:           cfg.Timeout,
			RequestsPerMinute: cfg.RequestsPerMinute,
		}, logger)
	case "openai":
		model, err := llm.New(llm.Config{
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			APIKey:            cfg.APIKey.Value(),
			Timeout:           cfg.Timeout,
			RequestsPerMinute: cfg.RequestsPerMinute,
		}, logger)
		if err != nil {
			return nil, err
		}
		return NewChatBackend(model), nil
	default:
		return nil, fmt.Errorf("%w: unsupported live provider %q (supported: gemini, openai)", ErrInvalidConfig, cfg.Provider)
	}
}

var _ Fetcher = (*SafeFetcher)(nil)
