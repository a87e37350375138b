package repository

import (
	"context"
	"time"

	"github.com/user/knowledge-service/internal/entity"
)

// JobRepository tracks ingestion runs.
type JobRepository interface {
	// Create inserts a running job and returns its id.
	Create(ctx context.Context, job *entity.Job) (int64, error)
	// Complete moves a running job to done and links the resulting source.
	Complete(ctx context.Context, id, sourceID int64) error
	// Fail moves a running job to failed with the error text attached.
	Fail(ctx context.Context, id int64, errText string) error
	GetByID(ctx context.Context, id int64) (*entity.Job, error)
	CountByStatus(ctx context.Context) (map[entity.JobStatus]int, error)
	CountFailedSince(ctx context.Context, since time.Time) (int, error)
}

// SettingsRepository is a small key/value store for JSON settings documents.
type SettingsRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// ObservabilityRepository appends ingest logs and job metrics.
type ObservabilityRepository interface {
	AppendLog(ctx context.Context, log *entity.IngestLog) error
	RecordMetric(ctx context.Context, metric *entity.JobMetric) error
	ListLogs(ctx context.Context, jobID int64) ([]entity.IngestLog, error)
}
