// Package llm builds the chat model used for query interpretation,
// relevance gating and answer rendering.
//
// Any OpenAI-compatible chat endpoint works; the default is Groq. Calls are
// paced with a token bucket and never retried.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fyrsmithlabs/finsight/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	defaultModel   = "llama-3.1-8b-instant"
	defaultTimeout = 30 * time.Second
	// Groq free tier allows 30 requests per minute.
	defaultRequestsPerMinute = 30
	defaultBurst             = 5
)

var (
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("llm: API key required")

	// ErrEmptyResponse is returned when the model produced no choices.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Config configures the chat model.
type Config struct {
	BaseURL           string
	Model             string
	APIKey            string `json:"-"`
	Timeout           time.Duration
	RequestsPerMinute int
	HTTPClient        *http.Client
}

// ConfigFrom maps the llm section of the application config.
func ConfigFrom(c config.LLMConfig) Config {
	return Config{
		BaseURL:           c.BaseURL,
		Model:             c.Model,
		APIKey:            c.APIKey.Value(),
		Timeout:           c.Timeout,
		RequestsPerMinute: c.RequestsPerMinute,
	}
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = defaultRequestsPerMinute
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
}

// New returns a rate-limited chat model for cfg.
func New(cfg Config, logger *zap.Logger) (llms.Model, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	cfg.applyDefaults()

	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(cfg.HTTPClient),
	)
	if err != nil {
		return nil, fmt.Errorf("creating chat client: %w", err)
	}

	logger.Info("chat model initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model),
		zap.Int("requests_per_minute", cfg.RequestsPerMinute),
	)
	return WithRateLimit(client, cfg.RequestsPerMinute), nil
}

// limitedModel waits on a token bucket before every call.
type limitedModel struct {
	llms.Model
	limiter *rate.Limiter
}

// WithRateLimit paces m to perMinute requests with a small burst.
func WithRateLimit(m llms.Model, perMinute int) llms.Model {
	if perMinute <= 0 {
		return m
	}
	burst := defaultBurst
	if perMinute < burst {
		burst = perMinute
	}
	return &limitedModel{
		Model:   m,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
	}
}

func (l *limitedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return l.Model.GenerateContent(ctx, messages, options...)
}

func (l *limitedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, l, prompt, options...)
}

// Complete sends a system instruction and one user message and returns the
// first choice's text, trimmed.
func Complete(ctx context.Context, m llms.Model, system, user string, options ...llms.CallOption) (string, error) {
	resp, err := m.GenerateContent(ctx, Messages(system, user), options...)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// Messages builds a system + human conversation.
func Messages(system, user string) []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
		llms.TextParts(schema.ChatMessageTypeHuman, user),
	}
}
