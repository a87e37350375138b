package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
	"github.com/user/knowledge-service/pkg/logger"
)

const failureWindow = 24 * time.Hour

// HealthUseCase reports store reachability, content counts and job outcomes.
type HealthUseCase struct {
	sources repository.SourceRepository
	chunks  repository.ChunkRepository
	jobs    repository.JobRepository
	queue   repository.QueueRepository
	vectors repository.VectorIndex
	logger  *zap.Logger
	now     func() time.Time
}

// NewHealthUseCase creates the use case. queue may be nil when ingestion runs inline.
func NewHealthUseCase(
	sources repository.SourceRepository,
	chunks repository.ChunkRepository,
	jobs repository.JobRepository,
	queue repository.QueueRepository,
	vectors repository.VectorIndex,
	log *zap.Logger,
) *HealthUseCase {
	return &HealthUseCase{
		sources: sources,
		chunks:  chunks,
		jobs:    jobs,
		queue:   queue,
		vectors: vectors,
		logger:  logger.OrNop(log),
		now:     time.Now,
	}
}

// Health returns DBOK false with a nil error when the store is unreachable.
func (uc *HealthUseCase) Health(ctx context.Context) (*entity.HealthStatus, error) {
	status := &entity.HealthStatus{
		Jobs: map[entity.JobStatus]int{
			entity.JobStatusRunning: 0,
			entity.JobStatusDone:    0,
			entity.JobStatusFailed:  0,
		},
	}
	if uc.vectors != nil {
		status.VectorIndex = uc.vectors.Name()
	}
	if err := uc.sources.Ping(ctx); err != nil {
		uc.logger.Warn("Store ping failed", zap.Error(err))
		return status, nil
	}
	status.DBOK = true

	var err error
	if status.Sources, err = uc.sources.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count sources: %w", err)
	}
	if status.Chunks, err = uc.chunks.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	jobs, err := uc.jobs.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	for k, v := range jobs {
		status.Jobs[k] = v
	}
	if status.RecentFailures24h, err = uc.jobs.CountFailedSince(ctx, uc.now().Add(-failureWindow)); err != nil {
		return nil, fmt.Errorf("failed to count recent failures: %w", err)
	}

	if uc.queue != nil {
		if depth, err := uc.queue.Size(ctx); err != nil {
			uc.logger.Warn("Failed to read queue depth", zap.Error(err))
		} else {
			status.QueueDepth = depth
		}
	}
	return status, nil
}
