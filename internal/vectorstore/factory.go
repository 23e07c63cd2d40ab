package vectorstore

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/finsight/internal/config"
	"go.uber.org/zap"
)

// NewStore creates the Store selected by cfg.VectorStore.Provider.
//
//   - "qdrant": Qdrant over gRPC (default)
//   - "chromem": embedded chromem-go persisted under cfg.VectorStore.ChromemPath
func NewStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.VectorStore.Provider {
	case "qdrant", "":
		return NewQdrantStore(ctx, QdrantConfig{
			Host:   cfg.Qdrant.Host,
			Port:   cfg.Qdrant.Port,
			APIKey: cfg.Qdrant.APIKey.Value(),
			UseTLS: cfg.Qdrant.UseTLS,
		}, logger)

	case "chromem":
		return NewChromemStore(ChromemConfig{
			Path:     config.ExpandHome(cfg.VectorStore.ChromemPath),
			Compress: cfg.VectorStore.ChromemCompress,
		}, logger)

	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider %q (supported: qdrant, chromem)",
			ErrInvalidConfig, cfg.VectorStore.Provider)
	}
}
