package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
)

const ingestQueueKey = "kb:ingest:queue"

// QueueRepoImpl implements QueueRepository on a Redis list.
type QueueRepoImpl struct {
	client *redis.Client
}

func NewQueueRepo(client *redis.Client) *QueueRepoImpl {
	return &QueueRepoImpl{client: client}
}

// Push adds a request to the left side of the list.
func (r *QueueRepoImpl) Push(ctx context.Context, req *entity.IngestRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode ingest request: %w", err)
	}
	if err := r.client.LPush(ctx, ingestQueueKey, string(payload)).Err(); err != nil {
		return fmt.Errorf("failed to push ingest request: %w", err)
	}
	return nil
}

// Pop removes the oldest request from the right side of the list.
// An empty list reports ErrQueueEmpty.
func (r *QueueRepoImpl) Pop(ctx context.Context) (*entity.IngestRequest, error) {
	payload, err := r.client.RPop(ctx, ingestQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrQueueEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop ingest request: %w", err)
	}

	var req entity.IngestRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return nil, fmt.Errorf("failed to decode ingest request: %w", err)
	}
	return &req, nil
}

func (r *QueueRepoImpl) Size(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, ingestQueueKey).Result()
}
