package memory

import (
	"context"
	"sync"
	"time"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
)

type QueueRepoImpl struct {
	mu    sync.Mutex
	items []entity.IngestRequest
}

func NewQueueRepo() *QueueRepoImpl {
	return &QueueRepoImpl{}
}

func (q *QueueRepoImpl) Push(_ context.Context, req *entity.IngestRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, *req)
	return nil
}

func (q *QueueRepoImpl) Pop(_ context.Context) (*entity.IngestRequest, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, repository.ErrQueueEmpty
	}
	req := q.items[0]
	q.items = q.items[1:]
	return &req, nil
}

func (q *QueueRepoImpl) Size(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}

type cacheEntry struct {
	sourceID  int64
	expiresAt time.Time
}

type SourceCacheRepoImpl struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]cacheEntry
}

func NewSourceCacheRepo() *SourceCacheRepoImpl {
	return &SourceCacheRepoImpl{now: time.Now, entries: make(map[string]cacheEntry)}
}

func (c *SourceCacheRepoImpl) Get(_ context.Context, canonicalURL string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[canonicalURL]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, canonicalURL)
		return 0, repository.ErrNotFound
	}
	return e.sourceID, nil
}

func (c *SourceCacheRepoImpl) Set(_ context.Context, canonicalURL string, sourceID int64, expiry time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[canonicalURL] = cacheEntry{sourceID: sourceID, expiresAt: c.now().Add(expiry)}
	return nil
}

func (c *SourceCacheRepoImpl) Remove(_ context.Context, canonicalURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, canonicalURL)
	return nil
}
