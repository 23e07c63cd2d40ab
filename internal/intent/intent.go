// Package intent turns a free-text financial question into a ParsedIntent:
// the companies it mentions, an optional date constraint and whether it
// should be answered from the vector store or by a live lookup.
package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/finsight/internal/llm"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// Route selects the answering path.
type Route string

const (
	RouteVector Route = "vector"
	RouteLive   Route = "live"
)

// NoDate is the date constraint meaning "no filter".
const NoDate = "none"

// ParsedIntent is the structured reading of one query. It is built once and
// not modified afterwards.
type ParsedIntent struct {
	Entities       []string `json:"stocks_mentioned"`
	DateConstraint string   `json:"date_range"`
	Route          Route    `json:"if_vector_or_live"`
}

// Default is the intent used whenever extraction fails.
func Default() ParsedIntent {
	return ParsedIntent{Entities: []string{}, DateConstraint: NoDate, Route: RouteVector}
}

// HasDate reports whether the intent carries a usable date constraint.
func (p ParsedIntent) HasDate() bool {
	return p.DateConstraint != "" && p.DateConstraint != NoDate
}

// Interpreter extracts a ParsedIntent from a raw query. It never fails.
type Interpreter interface {
	Interpret(ctx context.Context, rawQuery string) ParsedIntent
}

// SystemPrompt instructs the model to emit exactly the three intent fields.
const SystemPrompt = `You are a financial assistant that parses user queries to extract structured information.
Return ONLY valid JSON in this structure:
{
  "stocks_mentioned": ["ticker1", "ticker2"],
  "date_range": "string or none",
  "if_vector_or_live": "vector" or "live"
}
Use "live" only when the user needs current or breaking market information.
No extra text, no explanations.`

// ErrMalformed is reported (and logged) when the model output is unusable.
var ErrMalformed = errors.New("malformed intent")

// LLMInterpreter asks a chat model for the intent.
type LLMInterpreter struct {
	model   llms.Model
	timeout time.Duration
	logger  *zap.Logger
}

// NewLLMInterpreter creates an interpreter. A zero timeout disables the
// per-call deadline.
func NewLLMInterpreter(model llms.Model, timeout time.Duration, logger *zap.Logger) *LLMInterpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMInterpreter{model: model, timeout: timeout, logger: logger}
}

// Interpret returns the extracted intent, or Default on any failure.
func (i *LLMInterpreter) Interpret(ctx context.Context, rawQuery string) (parsed ParsedIntent) {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("intent extraction panicked, using defaults", zap.Any("panic", r))
			parsed = Default()
		}
	}()

	text, err := llm.Complete(ctx, i.model, SystemPrompt, rawQuery, llms.WithTemperature(0))
	if err != nil {
		i.logger.Warn("intent extraction failed, using defaults", zap.Error(err))
		return Default()
	}

	parsed, err = Parse(text)
	if err != nil {
		i.logger.Warn("intent extraction malformed, using defaults",
			zap.Error(err),
			zap.String("output", truncate(text, 200)),
		)
		return Default()
	}
	return parsed
}

// rawIntent keeps null and missing distinguishable from wrong types.
type rawIntent struct {
	Entities json.RawMessage `json:"stocks_mentioned"`
	Date     json.RawMessage `json:"date_range"`
	Route    *string         `json:"if_vector_or_live"`
}

// Parse decodes model output into a ParsedIntent. Markdown fences are
// stripped first. A missing or unknown route makes the whole output
// malformed; missing or null entities and date fall back to their defaults.
func Parse(text string) (ParsedIntent, error) {
	body := StripFences(text)
	if body == "" {
		return Default(), fmt.Errorf("%w: empty output", ErrMalformed)
	}

	var raw rawIntent
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return Default(), fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if raw.Route == nil {
		return Default(), fmt.Errorf("%w: missing if_vector_or_live", ErrMalformed)
	}
	route := Route(strings.ToLower(strings.TrimSpace(*raw.Route)))
	if route != RouteVector && route != RouteLive {
		return Default(), fmt.Errorf("%w: invalid if_vector_or_live %q", ErrMalformed, *raw.Route)
	}

	entities := []string{}
	if !isNull(raw.Entities) {
		if err := json.Unmarshal(raw.Entities, &entities); err != nil {
			return Default(), fmt.Errorf("%w: stocks_mentioned: %v", ErrMalformed, err)
		}
		if entities == nil {
			entities = []string{}
		}
	}

	date := NoDate
	if !isNull(raw.Date) {
		var s string
		if err := json.Unmarshal(raw.Date, &s); err != nil {
			return Default(), fmt.Errorf("%w: date_range: %v", ErrMalformed, err)
		}
		if s = strings.TrimSpace(s); s != "" {
			date = s
		}
	}

	return ParsedIntent{Entities: entities, DateConstraint: date, Route: route}, nil
}

// StripFences removes a surrounding ```json ... ``` block and whitespace.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.Contains(s[:nl], "{") {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
