package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fyrsmithlabs/finsight/internal/embeddings"
	"github.com/fyrsmithlabs/finsight/internal/stock"
	"github.com/fyrsmithlabs/finsight/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("finsight.ingest")

// DefaultBatchSize is the number of records embedded per call.
const DefaultBatchSize = 64

// Config configures a Loader.
type Config struct {
	Collection string
	BatchSize  int
	// Recreate drops the collection before loading.
	Recreate bool
}

// Result summarizes a load.
type Result struct {
	Records  int
	Batches  int
	Duration time.Duration
}

// Loader embeds records and upserts them with their row index as ID.
type Loader struct {
	embedder embeddings.Embedder
	store    vectorstore.Store
	config   Config
	logger   *zap.Logger
}

// NewLoader creates a Loader.
func NewLoader(embedder embeddings.Embedder, store vectorstore.Store, cfg Config, logger *zap.Logger) (*Loader, error) {
	if embedder == nil || store == nil {
		return nil, errors.New("ingest: embedder and store are required")
	}
	if err := vectorstore.ValidateCollectionName(cfg.Collection); err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{embedder: embedder, store: store, config: cfg, logger: logger}, nil
}

// LoadFile reads and loads a CSV file.
func (l *Loader) LoadFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	records, err := ReadCSV(f)
	if err != nil {
		return Result{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return l.Load(ctx, records)
}

// Load embeds records in batches and upserts them. Record i gets ID i. The
// collection is created on the first batch with the embedder's vector size.
func (l *Loader) Load(ctx context.Context, records []stock.Record) (Result, error) {
	ctx, span := tracer.Start(ctx, "Loader.Load")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", l.config.Collection),
		attribute.Int("records", len(records)),
	)

	start := time.Now()
	var res Result
	if len(records) == 0 {
		return res, nil
	}

	if l.config.Recreate {
		err := l.store.DeleteCollection(ctx, l.config.Collection)
		if err != nil && !errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return res, fmt.Errorf("dropping collection: %w", err)
		}
		l.logger.Info("collection dropped", zap.String("collection", l.config.Collection))
	}

	ensured := false
	for from := 0; from < len(records); from += l.config.BatchSize {
		to := min(from+l.config.BatchSize, len(records))
		batch := records[from:to]

		texts := make([]string, len(batch))
		for i, r := range batch {
			texts[i] = r.WithEmbeddedText().EmbeddedText
		}

		vectors, err := l.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return res, fmt.Errorf("embedding rows %d-%d: %w", from, to-1, err)
		}
		if len(vectors) != len(batch) {
			return res, fmt.Errorf("embedding rows %d-%d: got %d vectors", from, to-1, len(vectors))
		}

		if !ensured {
			if err := l.store.EnsureCollection(ctx, l.config.Collection, len(vectors[0])); err != nil {
				return res, fmt.Errorf("ensuring collection: %w", err)
			}
			ensured = true
		}

		points := make([]vectorstore.Point, len(batch))
		for i, r := range batch {
			points[i] = vectorstore.Point{
				ID:      uint64(from + i),
				Vector:  vectors[i],
				Payload: r.Payload(),
			}
		}
		if err := l.store.Upsert(ctx, l.config.Collection, points); err != nil {
			return res, fmt.Errorf("upserting rows %d-%d: %w", from, to-1, err)
		}

		res.Records += len(batch)
		res.Batches++
		l.logger.Debug("batch loaded",
			zap.Int("from", from),
			zap.Int("to", to-1),
		)
	}

	res.Duration = time.Since(start)
	l.logger.Info("records loaded",
		zap.String("collection", l.config.Collection),
		zap.Int("records", res.Records),
		zap.Int("batches", res.Batches),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}
