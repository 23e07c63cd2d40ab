// Package render turns retrieved stock records into a plain-English answer.
package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/finsight/internal/llm"
	"github.com/fyrsmithlabs/finsight/internal/stock"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// SystemPrompt asks for a readable, labelled answer rather than raw data.
const SystemPrompt = `Convert the Python dictionary payload(s) into a clean, human-readable answer.
- If multiple answers are returned, format them as a bullet list.
- Clearly label values like Price, MarketCap, PE_Ratio, and Dividend_Yield.
- Respond in plain English, not JSON or dict format.`

// NotAvailable is printed for empty fields by Plain.
const NotAvailable = "Data not available"

// ErrNoRecords is returned when Render is called without records.
var ErrNoRecords = errors.New("render: no records")

// Renderer produces the final answer text.
type Renderer interface {
	Render(ctx context.Context, records ...stock.Record) (string, error)
}

// LLMRenderer streams the answer from a chat model.
type LLMRenderer struct {
	model   llms.Model
	timeout time.Duration
	logger  *zap.Logger
}

// NewLLMRenderer creates a renderer. A zero timeout disables the per-call
// deadline.
func NewLLMRenderer(model llms.Model, timeout time.Duration, logger *zap.Logger) *LLMRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMRenderer{model: model, timeout: timeout, logger: logger}
}

// Render sends the records as JSON and assembles the streamed reply.
func (r *LLMRenderer) Render(ctx context.Context, records ...stock.Record) (string, error) {
	if len(records) == 0 {
		return "", ErrNoRecords
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	payload, err := UserMessage(records...)
	if err != nil {
		return "", err
	}

	var streamed strings.Builder
	chunks := 0
	resp, err := r.model.GenerateContent(ctx, llm.Messages(SystemPrompt, payload),
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			chunks++
			streamed.Write(chunk)
			return nil
		}),
	)
	if err != nil {
		return "", fmt.Errorf("rendering answer: %w", err)
	}

	text := strings.TrimSpace(streamed.String())
	if text == "" && resp != nil && len(resp.Choices) > 0 {
		text = strings.TrimSpace(resp.Choices[0].Content)
	}
	if text == "" {
		return "", llm.ErrEmptyResponse
	}

	r.logger.Debug("answer rendered",
		zap.Int("records", len(records)),
		zap.Int("chunks", chunks),
		zap.Int("length", len(text)),
	)
	return text, nil
}

// UserMessage serializes one record as an object and several as an array.
func UserMessage(records ...stock.Record) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(records) == 1 {
		data, err = json.Marshal(records[0])
	} else {
		data, err = json.Marshal(records)
	}
	if err != nil {
		return "", fmt.Errorf("encoding records: %w", err)
	}
	return string(data), nil
}

// Plain renders records locally with labelled fields. It is used when the
// chat model cannot be reached.
func Plain(records ...stock.Record) string {
	switch len(records) {
	case 0:
		return ""
	case 1:
		r := records[0]
		var b strings.Builder
		fmt.Fprintf(&b, "%s\n", title(r))
		if r.Sector != "" {
			fmt.Fprintf(&b, "Sector: %s\n", r.Sector)
		}
		fmt.Fprintf(&b, "Price: %s\n", orNA(r.Price))
		fmt.Fprintf(&b, "MarketCap: %s\n", orNA(r.MarketCap))
		fmt.Fprintf(&b, "PE_Ratio: %s\n", orNA(r.PERatio))
		fmt.Fprintf(&b, "Dividend_Yield: %s", orNA(r.DividendYield))
		if r.Description != "" {
			fmt.Fprintf(&b, "\n%s", r.Description)
		}
		return b.String()
	default:
		lines := make([]string, len(records))
		for i, r := range records {
			lines[i] = fmt.Sprintf("- %s: Price %s, MarketCap %s, PE_Ratio %s, Dividend_Yield %s",
				title(r), orNA(r.Price), orNA(r.MarketCap), orNA(r.PERatio), orNA(r.DividendYield))
		}
		return strings.Join(lines, "\n")
	}
}

func title(r stock.Record) string {
	switch {
	case r.Name != "" && r.Symbol != "":
		return fmt.Sprintf("%s (%s)", r.Name, r.Symbol)
	case r.Name != "":
		return r.Name
	case r.Symbol != "":
		return r.Symbol
	default:
		return "Unknown company"
	}
}

func orNA(v string) string {
	if strings.TrimSpace(v) == "" {
		return NotAvailable
	}
	return v
}

var _ Renderer = (*LLMRenderer)(nil)
