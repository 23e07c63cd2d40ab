package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("finsight.vectorstore.chromem")

const chromemBackend = "chromem"

// errNoEmbedding guards against chromem embedding text on its own; every
// point must arrive with its vector.
var errNoEmbedding = errors.New("chromem store requires precomputed embeddings")

// ChromemConfig holds configuration for the embedded chromem-go database.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty keeps the
	// database in memory only.
	Path string

	// Compress enables gzip compression for persisted data.
	Compress bool
}

// ChromemStore is a Store backed by chromem-go. It needs no external
// service and is used for local runs and tests.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger

	// vectorSizes records the dimension given to EnsureCollection.
	mu          sync.RWMutex
	vectorSizes map[string]int
}

// NewChromemStore opens (or creates) a chromem database.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(config.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", config.Path, err)
		}
		var err error
		db, err = chromem.NewPersistentDB(config.Path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}

	logger.Info("ChromemStore initialized",
		zap.String("path", config.Path),
		zap.Bool("persistent", config.Path != ""),
		zap.Bool("compress", config.Compress),
	)

	return &ChromemStore{
		db:          db,
		config:      config,
		logger:      logger,
		vectorSizes: make(map[string]int),
	}, nil
}

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedding
}

// EnsureCollection creates the collection if it is missing.
func (s *ChromemStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) (err error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.EnsureCollection")
	defer span.End()
	defer observe(chromemBackend, "ensure_collection", time.Now(), &err)

	span.SetAttributes(attribute.String("collection", collection))

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if vectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	if _, err := s.db.GetOrCreateCollection(collection, nil, noEmbedding); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("getting/creating collection %s: %w", collection, err)
	}
	s.mu.Lock()
	s.vectorSizes[collection] = vectorSize
	s.mu.Unlock()

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Upsert adds points. chromem replaces documents with an existing ID.
func (s *ChromemStore) Upsert(ctx context.Context, collection string, points []Point) (err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()
	defer observe(chromemBackend, "upsert", time.Now(), &err)

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("point_count", len(points)),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}

	coll := s.db.GetCollection(collection, noEmbedding)
	if coll == nil {
		return fmt.Errorf("upserting into %s: %w", collection, ErrCollectionNotFound)
	}

	size := s.vectorSize(collection)
	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		if size > 0 && len(p.Vector) != size {
			return fmt.Errorf("%w: point %d has %d dimensions, collection expects %d",
				ErrDimensionMismatch, p.ID, len(p.Vector), size)
		}
		meta := toChromemMetadata(p.Payload)
		docs[i] = chromem.Document{
			ID:        strconv.FormatUint(p.ID, 10),
			Metadata:  meta,
			Embedding: p.Vector,
			Content:   meta["embedded_text"],
		}
	}

	if err := coll.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents to %s: %w", collection, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Query returns the k most similar documents, best first.
func (s *ChromemStore) Query(ctx context.Context, collection string, vector []float32, k int, filter *Filter) (_ []ScoredPoint, err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()
	defer observe(chromemBackend, "query", time.Now(), &err)

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("k", k),
		attribute.Bool("filtered", !filter.IsEmpty()),
	)

	if err := validateQuery(collection, vector, k); err != nil {
		return nil, err
	}

	coll := s.db.GetCollection(collection, noEmbedding)
	if coll == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, fmt.Errorf("searching %s: %w", collection, ErrCollectionNotFound)
	}

	// chromem requires nResults <= document count.
	count := coll.Count()
	if count == 0 {
		QueryResults.WithLabelValues(chromemBackend).Observe(0)
		return []ScoredPoint{}, nil
	}
	if k > count {
		k = count
	}
	if k > MaxK {
		k = MaxK
	}

	hits, err := coll.QueryEmbedding(ctx, vector, k, toChromemWhere(filter), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}

	results := make([]ScoredPoint, 0, len(hits))
	for _, hit := range hits {
		id, err := strconv.ParseUint(hit.ID, 10, 64)
		if err != nil {
			s.logger.Warn("skipping chromem document with non-numeric id", zap.String("id", hit.ID))
			continue
		}
		results = append(results, ScoredPoint{
			ID:      id,
			Score:   hit.Similarity,
			Payload: fromChromemMetadata(hit.Metadata),
		})
	}

	QueryResults.WithLabelValues(chromemBackend).Observe(float64(len(results)))
	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("searched chromem collection",
		zap.String("collection", collection),
		zap.Int("k", k),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// CollectionInfo reports the document count of a collection.
func (s *ChromemStore) CollectionInfo(ctx context.Context, collection string) (_ *CollectionInfo, err error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.CollectionInfo")
	defer span.End()
	defer observe(chromemBackend, "collection_info", time.Now(), &err)

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	coll := s.db.GetCollection(collection, noEmbedding)
	if coll == nil {
		return nil, ErrCollectionNotFound
	}
	return &CollectionInfo{
		Name:       collection,
		PointCount: coll.Count(),
		VectorSize: s.vectorSize(collection),
	}, nil
}

// DeleteCollection deletes a collection and all its documents.
func (s *ChromemStore) DeleteCollection(ctx context.Context, collection string) (err error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.DeleteCollection")
	defer span.End()
	defer observe(chromemBackend, "delete_collection", time.Now(), &err)

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if err := s.db.DeleteCollection(collection); err != nil {
		span.RecordError(err)
		return fmt.Errorf("deleting collection %s: %w", collection, err)
	}
	s.mu.Lock()
	delete(s.vectorSizes, collection)
	s.mu.Unlock()
	return nil
}

func (s *ChromemStore) vectorSize(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vectorSizes[collection]
}

// Close is a no-op; chromem persists on every write.
func (s *ChromemStore) Close() error {
	return nil
}

var _ Store = (*ChromemStore)(nil)
