package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/user/knowledge-service/internal/repository"
	"github.com/user/knowledge-service/pkg/logger"
)

// DedupIndex resolves canonical URLs to existing source ids. The store is the
// source of truth; the cache only short-circuits repeated lookups.
type DedupIndex struct {
	sources repository.SourceRepository
	cache   repository.SourceCacheRepository
	ttl     time.Duration
	logger  *zap.Logger
}

// NewDedupIndex creates an index. cache may be nil.
func NewDedupIndex(sources repository.SourceRepository, cache repository.SourceCacheRepository, ttl time.Duration, log *zap.Logger) *DedupIndex {
	return &DedupIndex{sources: sources, cache: cache, ttl: ttl, logger: logger.OrNop(log)}
}

// Find returns the id of the most recent source whose canonical or raw URL
// equals canonicalURL.
func (d *DedupIndex) Find(ctx context.Context, canonicalURL string) (int64, bool, error) {
	if d.cache != nil {
		id, err := d.cache.Get(ctx, canonicalURL)
		switch {
		case err == nil:
			return id, true, nil
		case !errors.Is(err, repository.ErrNotFound):
			d.logger.Warn("Source cache lookup failed, using store", zap.String("url", canonicalURL), zap.Error(err))
		}
	}

	src, err := d.sources.FindByURL(ctx, canonicalURL)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up source for %s: %w", canonicalURL, err)
	}
	d.Remember(ctx, canonicalURL, src.ID)
	return src.ID, true, nil
}

// Remember caches a resolved id. Cache failures are logged, never returned.
func (d *DedupIndex) Remember(ctx context.Context, canonicalURL string, sourceID int64) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Set(ctx, canonicalURL, sourceID, d.ttl); err != nil {
		d.logger.Warn("Failed to cache source id", zap.String("url", canonicalURL), zap.Error(err))
	}
}

// Forget drops a cached id, used before a forced re-ingest.
func (d *DedupIndex) Forget(ctx context.Context, canonicalURL string) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Remove(ctx, canonicalURL); err != nil {
		d.logger.Warn("Failed to drop cached source id", zap.String("url", canonicalURL), zap.Error(err))
	}
}
