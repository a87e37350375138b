package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/knowledge-service/internal/repository"
	"github.com/user/knowledge-service/pkg/utils"
)

const sourceKeyPrefix = "kb:source:"

// SourceCacheRepoImpl caches canonical URL -> source id in Redis with a TTL.
type SourceCacheRepoImpl struct {
	client *redis.Client
}

func NewSourceCacheRepo(client *redis.Client) *SourceCacheRepoImpl {
	return &SourceCacheRepoImpl{client: client}
}

// generateKey hashes the URL so keys have a fixed length.
func (r *SourceCacheRepoImpl) generateKey(canonicalURL string) string {
	return sourceKeyPrefix + utils.HashURL(canonicalURL)
}

func (r *SourceCacheRepoImpl) Get(ctx context.Context, canonicalURL string) (int64, error) {
	val, err := r.client.Get(ctx, r.generateKey(canonicalURL)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, repository.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read source cache: %w", err)
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt source cache entry %q: %w", val, err)
	}
	return id, nil
}

// Set is a single SETEX, so the entry and its expiry are written atomically.
func (r *SourceCacheRepoImpl) Set(ctx context.Context, canonicalURL string, sourceID int64, expiry time.Duration) error {
	key := r.generateKey(canonicalURL)
	value := strconv.FormatInt(sourceID, 10)
	var err error
	if expiry > 0 {
		err = r.client.SetEx(ctx, key, value, expiry).Err()
	} else {
		// SETEX rejects a zero expiry.
		err = r.client.Set(ctx, key, value, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to write source cache: %w", err)
	}
	return nil
}

func (r *SourceCacheRepoImpl) Remove(ctx context.Context, canonicalURL string) error {
	return r.client.Del(ctx, r.generateKey(canonicalURL)).Err()
}
