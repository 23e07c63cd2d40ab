// Package retriever runs similarity search for a query against the stock
// collection and picks the best candidate.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/finsight/internal/embeddings"
	"github.com/fyrsmithlabs/finsight/internal/intent"
	"github.com/fyrsmithlabs/finsight/internal/stock"
	"github.com/fyrsmithlabs/finsight/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("finsight.retriever")

// DefaultTopK is the number of neighbours requested per query.
const DefaultTopK = 5

var (
	// ErrEmbeddingFailed wraps failures of the query embedding call.
	ErrEmbeddingFailed = errors.New("query embedding failed")

	// ErrSearchFailed wraps failures of the store query.
	ErrSearchFailed = errors.New("similarity search failed")
)

// Searcher is the retrieval contract the orchestrator depends on.
type Searcher interface {
	Search(ctx context.Context, queryText, dateConstraint string, topK int) ([]stock.ScoredCandidate, error)
}

// Config configures a Retriever.
type Config struct {
	Collection string
	// Timeout bounds embedding plus search. Zero disables it.
	Timeout time.Duration
}

// Retriever embeds queries and searches the vector store.
type Retriever struct {
	embedder embeddings.Embedder
	store    vectorstore.Store
	config   Config
	logger   *zap.Logger
}

// New creates a Retriever. Both handles are shared across queries.
func New(embedder embeddings.Embedder, store vectorstore.Store, cfg Config, logger *zap.Logger) (*Retriever, error) {
	if embedder == nil || store == nil {
		return nil, errors.New("retriever: embedder and store are required")
	}
	if err := vectorstore.ValidateCollectionName(cfg.Collection); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: embedder, store: store, config: cfg, logger: logger}, nil
}

// Search returns up to topK candidates for queryText ordered by the store.
// dateConstraint other than "" or "none" restricts results to records whose
// date equals it exactly. No match yields an empty slice.
func (r *Retriever) Search(ctx context.Context, queryText, dateConstraint string, topK int) (_ []stock.ScoredCandidate, err error) {
	ctx, span := tracer.Start(ctx, "Retriever.Search")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if topK <= 0 {
		topK = DefaultTopK
	}
	filter := FilterFor(dateConstraint)
	span.SetAttributes(
		attribute.String("collection", r.config.Collection),
		attribute.Int("top_k", topK),
		attribute.Bool("filtered", !filter.IsEmpty()),
	)

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	vector, err := r.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}

	points, err := r.store.Query(ctx, r.config.Collection, vector, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	candidates := make([]stock.ScoredCandidate, 0, len(points))
	for _, p := range points {
		candidates = append(candidates, stock.ScoredCandidate{
			ID:     p.ID,
			Record: stock.FromPayload(p.Payload),
			Score:  p.Score,
		})
	}

	span.SetAttributes(attribute.Int("results_count", len(candidates)))
	r.logger.Debug("retrieved candidates",
		zap.Int("count", len(candidates)),
		zap.String("date", dateConstraint),
	)
	return candidates, nil
}

// FilterFor builds the equality filter on the record date, or nil when the
// constraint is empty or "none".
func FilterFor(dateConstraint string) *vectorstore.Filter {
	if dateConstraint == "" || dateConstraint == intent.NoDate {
		return nil
	}
	return vectorstore.Equals(stock.KeyDate, dateConstraint)
}

// Best returns the candidate with the strictly highest score. Ties keep the
// earliest candidate. ok is false for an empty input.
func Best(candidates []stock.ScoredCandidate) (best stock.ScoredCandidate, ok bool) {
	for i, c := range candidates {
		if i == 0 || c.Score > best.Score {
			best = c
		}
	}
	return best, len(candidates) > 0
}

var _ Searcher = (*Retriever)(nil)
