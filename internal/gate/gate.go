// Package gate decides whether a retrieved stock record is enough to answer
// a query. Any doubt counts as "no".
package gate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/finsight/internal/llm"
	"github.com/fyrsmithlabs/finsight/internal/stock"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// SystemPrompt asks for a bare yes/no verdict.
const SystemPrompt = `Given the user query and the retrieved data, determine if the data is relevant and sufficient to fully answer the query.
Respond only with 'yes' or 'no'.`

// Gate judges retrieval sufficiency.
type Gate interface {
	IsSufficient(ctx context.Context, query string, record stock.Record) bool
}

// LLMGate asks a chat model.
type LLMGate struct {
	model   llms.Model
	timeout time.Duration
	logger  *zap.Logger
}

// NewLLMGate creates a gate. A zero timeout disables the per-call deadline.
func NewLLMGate(model llms.Model, timeout time.Duration, logger *zap.Logger) *LLMGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMGate{model: model, timeout: timeout, logger: logger}
}

// IsSufficient returns true only when the model answers exactly "yes",
// ignoring case and surrounding whitespace.
func (g *LLMGate) IsSufficient(ctx context.Context, query string, record stock.Record) (ok bool) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("relevance check panicked, treating as insufficient",
				zap.Any("panic", r),
				zap.String("symbol", record.Symbol),
			)
			ok = false
		}
	}()

	answer, err := llm.Complete(ctx, g.model, SystemPrompt, UserMessage(query, record),
		llms.WithTemperature(0),
		llms.WithMaxTokens(4),
	)
	if err != nil {
		g.logger.Warn("relevance check failed, treating as insufficient",
			zap.Error(err),
			zap.String("symbol", record.Symbol),
		)
		return false
	}

	ok = IsYes(answer)
	g.logger.Debug("relevance verdict",
		zap.String("answer", answer),
		zap.Bool("sufficient", ok),
		zap.String("symbol", record.Symbol),
	)
	return ok
}

// UserMessage renders the query and record for the model.
func UserMessage(query string, record stock.Record) string {
	return fmt.Sprintf("User query: %s\nRetrieved data: %s", query, record.JSON())
}

// IsYes normalizes a verdict. "YES.", "maybe" and "" are all false.
func IsYes(answer string) bool {
	return strings.ToLower(strings.TrimSpace(answer)) == "yes"
}
