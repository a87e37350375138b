package repository

import (
	"context"
	"time"

	"github.com/user/knowledge-service/internal/entity"
)

// QueueRepository defines a FIFO queue of pending ingest requests.
type QueueRepository interface {
	// Push adds a request to the end of the queue.
	Push(ctx context.Context, req *entity.IngestRequest) error
	// Pop removes and returns the oldest request, or ErrQueueEmpty.
	Pop(ctx context.Context) (*entity.IngestRequest, error)
	// Size returns the current number of items in the queue.
	Size(ctx context.Context) (int64, error)
}

// SourceCacheRepository caches canonical URL -> source id lookups with an expiry.
type SourceCacheRepository interface {
	// Get returns the cached id, or ErrNotFound on a miss.
	Get(ctx context.Context, canonicalURL string) (int64, error)
	Set(ctx context.Context, canonicalURL string, sourceID int64, expiry time.Duration) error
	// Remove drops a cached entry, used for forced re-ingestion.
	Remove(ctx context.Context, canonicalURL string) error
}
