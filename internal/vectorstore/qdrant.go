package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var tracer = otel.Tracer("finsight.vectorstore.qdrant")

const qdrantBackend = "qdrant"

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the gRPC port (6334), not the REST port (6333).
	Port int

	// APIKey authenticates against Qdrant Cloud. Optional.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// Distance is the similarity metric for new collections. Default: Cosine.
	Distance qdrant.Distance

	// MaxMessageSize is the maximum gRPC message size in bytes. Default: 16MB.
	MaxMessageSize int

	// SkipHealthCheck disables the connectivity check in NewQdrantStore.
	SkipHealthCheck bool
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Distance == qdrant.Distance_UnknownDistance {
		c.Distance = qdrant.Distance_Cosine
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 16 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	return nil
}

// QdrantStore is a Store backed by Qdrant's native gRPC client.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger
}

// NewQdrantStore connects to Qdrant and verifies the connection with a
// health check.
func NewQdrantStore(ctx context.Context, config QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if !config.UseTLS {
		logger.Warn("qdrant gRPC using plaintext (TLS disabled)", zap.String("host", config.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &QdrantStore{client: client, config: config, logger: logger}

	if !config.SkipHealthCheck {
		hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if _, err := client.HealthCheck(hctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
		}
	}

	logger.Info("QdrantStore initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.Bool("tls", config.UseTLS),
	)
	return store, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// EnsureCollection creates the collection with the configured distance when
// it is missing.
func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) (err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.EnsureCollection")
	defer span.End()
	defer observe(qdrantBackend, "ensure_collection", time.Now(), &err)

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("vector_size", vectorSize),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if vectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}

	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("checking collection %s: %w", collection, err)
	}
	if exists {
		span.SetStatus(codes.Ok, "exists")
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(vectorSize),
			Distance: s.config.Distance,
		}),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", collection, err)
	}

	s.logger.Info("created qdrant collection",
		zap.String("collection", collection),
		zap.Int("vector_size", vectorSize),
	)
	span.SetStatus(codes.Ok, "created")
	return nil
}

// Upsert writes points and waits for the write to be applied.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) (err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()
	defer observe(qdrantBackend, "upsert", time.Now(), &err)

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

	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		payload, err := toQdrantPayload(p.Payload)
		if err != nil {
			return fmt.Errorf("point %d: %w", p.ID, err)
		}
		structs[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		}
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting points to collection %s: %w", collection, mapQdrantError(err))
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Query runs a nearest-neighbour search with an optional keyword filter.
func (s *QdrantStore) Query(ctx context.Context, collection string, vector []float32, k int, filter *Filter) (_ []ScoredPoint, err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Query")
	defer span.End()
	defer observe(qdrantBackend, "query", time.Now(), &err)

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("k", k),
		attribute.Bool("filtered", !filter.IsEmpty()),
	)

	if err := validateQuery(collection, vector, k); err != nil {
		return nil, err
	}
	if k > MaxK {
		k = MaxK
	}

	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         toQdrantFilter(filter),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching collection %s: %w", collection, mapQdrantError(err))
	}

	results := make([]ScoredPoint, 0, len(hits))
	for _, hit := range hits {
		results = append(results, ScoredPoint{
			ID:      hit.GetId().GetNum(),
			Score:   hit.GetScore(),
			Payload: fromQdrantPayload(hit.GetPayload()),
		})
	}

	QueryResults.WithLabelValues(qdrantBackend).Observe(float64(len(results)))
	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// CollectionInfo returns the point count and vector size of a collection.
func (s *QdrantStore) CollectionInfo(ctx context.Context, collection string) (_ *CollectionInfo, err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.CollectionInfo")
	defer span.End()
	defer observe(qdrantBackend, "collection_info", time.Now(), &err)

	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}

	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		err = mapQdrantError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("getting collection info for %s: %w", collection, err)
	}

	result := &CollectionInfo{Name: collection}
	if info.PointsCount != nil {
		result.PointCount = int(*info.PointsCount)
	}
	if params := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
		result.VectorSize = int(params.GetSize())
	}

	span.SetAttributes(attribute.Int("point_count", result.PointCount))
	span.SetStatus(codes.Ok, "success")
	return result, nil
}

// DeleteCollection deletes a collection and all its points.
func (s *QdrantStore) DeleteCollection(ctx context.Context, collection string) (err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.DeleteCollection")
	defer span.End()
	defer observe(qdrantBackend, "delete_collection", time.Now(), &err)

	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if err := s.client.DeleteCollection(ctx, collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting collection %s: %w", collection, mapQdrantError(err))
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// mapQdrantError turns gRPC NotFound into ErrCollectionNotFound and
// Unavailable into ErrConnectionFailed.
func mapQdrantError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case grpccodes.NotFound:
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, st.Message())
	case grpccodes.Unavailable:
		return fmt.Errorf("%w: %s", ErrConnectionFailed, st.Message())
	default:
		return err
	}
}

var _ Store = (*QdrantStore)(nil)
