package live

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	defaultGeminiBaseURL  = "https://generativelanguage.googleapis.com/v1beta"
	defaultAPIVersion     = "v1beta"
	defaultGeminiModel    = "gemini-2.5-flash"
	defaultThinkingBudget = 2500
	defaultTimeout        = 60 * time.Second
	defaultPerMinute      = 10
)

// GeminiConfig configures the Gemini generateContent client.
type GeminiConfig struct {
	// BaseURL may carry the API version as its last segment, e.g. ".../v1beta".
	BaseURL        string
	Model          string
	APIKey         string `json:"-"`
	ThinkingBudget int
	Timeout        time.Duration
	// RequestsPerMinute paces calls. Zero uses the default, negative disables.
	RequestsPerMinute int
	HTTPClient        *http.Client
}

func (c *GeminiConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultGeminiBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Model == "" {
		c.Model = defaultGeminiModel
	}
	if c.ThinkingBudget == 0 {
		c.ThinkingBudget = defaultThinkingBudget
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.RequestsPerMinute == 0 {
		c.RequestsPerMinute = defaultPerMinute
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
}

// splitBaseURL separates a trailing version segment ("v1", "v1beta", ...)
// from the host part genai expects.
func splitBaseURL(raw string) (base, version string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: base URL %q: %v", ErrInvalidConfig, raw, err)
	}
	version = defaultAPIVersion
	path := strings.TrimRight(u.Path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 && strings.HasPrefix(path[i+1:], "v1") {
		version = path[i+1:]
		path = path[:i]
	}
	u.Path = path + "/"
	return u.String(), version, nil
}

// GeminiClient answers questions with Gemini grounded by Google Search.
type GeminiClient struct {
	config  GeminiConfig
	client  *genai.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewGeminiClient creates a client. The API key is required.
func NewGeminiClient(cfg GeminiConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	base, version, err := splitBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    base,
			APIVersion: version,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}
	return &GeminiClient{config: cfg, client: client, limiter: limiter, logger: logger}, nil
}

// Answer sends query with the live-data system instruction and the
// Google Search tool enabled.
func (c *GeminiClient) Answer(ctx context.Context, query string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	gc := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
		Tools:             []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}
	if c.config.ThinkingBudget > 0 {
		gc.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(int32(c.config.ThinkingBudget))}
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, genai.Text(query), gc)
	if err != nil {
		return "", statusError(err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", ErrEmptyAnswer, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", fmt.Errorf("%w: no candidates", ErrEmptyAnswer)
	}

	cand := resp.Candidates[0]
	var b strings.Builder
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p == nil || p.Thought {
				continue
			}
			b.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("%w: finish reason %s", ErrEmptyAnswer, cand.FinishReason)
	}

	c.logger.Debug("gemini answered",
		zap.String("model", c.config.Model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("length", len(text)),
	)
	return text, nil
}

// statusError maps a genai API error onto StatusError and wraps anything else.
func statusError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Code: apiErr.Code, Body: apiErr.Message}
	}
	return fmt.Errorf("gemini request: %w", err)
}

// StatusError is a non-200 reply from the Gemini API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini: status %d: %s", e.Code, strings.TrimSpace(e.Body))
}

var _ Backend = (*GeminiClient)(nil)
