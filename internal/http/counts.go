package http

import (
	"context"

	"github.com/fyrsmithlabs/finsight/internal/vectorstore"
)

// PointCount returns the number of indexed records in collection.
//
// Returns -1 if:
//   - store is nil
//   - the collection does not exist yet (nothing ingested)
//   - the store cannot be reached
func PointCount(ctx context.Context, store vectorstore.Store, collection string) int {
	if store == nil {
		return -1
	}

	info, err := store.CollectionInfo(ctx, collection)
	if err != nil || info == nil {
		return -1
	}
	return info.PointCount
}
