// Package vectorstore stores embedded stock records and answers nearest
// neighbour queries against them.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates the backend could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrDimensionMismatch is returned when a vector does not match the
	// collection's configured size.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// MaxK bounds the number of neighbours a single query may request.
const MaxK = 1000

var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName enforces ^[a-z0-9_]{1,64}$.
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Point is a vector with its payload. IDs are the record's row index.
type Point struct {
	ID      uint64
	Vector  []float32
	Payload map[string]interface{}
}

// ScoredPoint is a search hit. Score is cosine similarity, higher is closer.
type ScoredPoint struct {
	ID      uint64
	Score   float32
	Payload map[string]interface{}
}

// Filter restricts a query to points whose payload matches every condition.
// A nil or empty Filter matches everything.
type Filter struct {
	Must []FieldMatch
}

// FieldMatch is an exact match on a payload key.
type FieldMatch struct {
	Key   string
	Value string
}

// Equals builds a single-condition filter.
func Equals(key, value string) *Filter {
	return &Filter{Must: []FieldMatch{{Key: key, Value: value}}}
}

// IsEmpty reports whether the filter has no conditions.
func (f *Filter) IsEmpty() bool {
	return f == nil || len(f.Must) == 0
}

// CollectionInfo contains metadata about a vector collection.
type CollectionInfo struct {
	Name       string `json:"name"`
	PointCount int    `json:"point_count"`
	VectorSize int    `json:"vector_size"`
}

// Store is a cosine-distance vector store.
//
// Implementations:
//   - QdrantStore: Qdrant over gRPC (production)
//   - ChromemStore: embedded chromem-go, in memory or persisted to disk
//
// Implementations are safe for concurrent use and never retry failed calls.
type Store interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// Upsert inserts or replaces points by ID.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Query returns up to k points nearest to vector, best first. No match
	// yields an empty slice and a nil error.
	Query(ctx context.Context, collection string, vector []float32, k int, filter *Filter) ([]ScoredPoint, error)

	// CollectionInfo returns ErrCollectionNotFound for unknown collections.
	CollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error)

	// DeleteCollection removes a collection and its points.
	DeleteCollection(ctx context.Context, collection string) error

	Close() error
}

func validateQuery(collection string, vector []float32, k int) error {
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if len(vector) == 0 {
		return fmt.Errorf("query vector cannot be empty")
	}
	if k <= 0 {
		return fmt.Errorf("k must be positive, got %d", k)
	}
	return nil
}
