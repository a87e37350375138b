package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
)

// JobRepoImpl implements JobRepository on PostgreSQL.
type JobRepoImpl struct {
	db *pgxpool.Pool
}

func NewJobRepo(db *pgxpool.Pool) *JobRepoImpl {
	return &JobRepoImpl{db: db}
}

func (r *JobRepoImpl) Create(ctx context.Context, job *entity.Job) (int64, error) {
	payload, err := encodeJSON(job.Payload)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.db.QueryRow(ctx,
		`INSERT INTO jobs (job_type, status, payload) VALUES ($1, $2, $3) RETURNING id`,
		job.Type, entity.JobStatusRunning, payload,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create job: %w", err)
	}
	return id, nil
}

// Complete and Fail only touch running jobs, so a terminal state is never revisited.
func (r *JobRepoImpl) Complete(ctx context.Context, id, sourceID int64) error {
	return r.finish(ctx,
		`UPDATE jobs SET status = $2, source_id = $3, updated_at = NOW() WHERE id = $1 AND status = 'running'`,
		id, entity.JobStatusDone, sourceID)
}

func (r *JobRepoImpl) Fail(ctx context.Context, id int64, errText string) error {
	return r.finish(ctx,
		`UPDATE jobs SET status = $2, error_text = $3, updated_at = NOW() WHERE id = $1 AND status = 'running'`,
		id, entity.JobStatusFailed, errText)
}

func (r *JobRepoImpl) finish(ctx context.Context, query string, id int64, args ...any) error {
	tag, err := r.db.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to update job %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %d is not running: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *JobRepoImpl) GetByID(ctx context.Context, id int64) (*entity.Job, error) {
	query := `
		SELECT id, job_type, status, payload, error_text, COALESCE(source_id, 0), created_at, updated_at
		FROM jobs
		WHERE id = $1;
	`
	var job entity.Job
	var payload []byte
	err := r.db.QueryRow(ctx, query, id).Scan(
		&job.ID,
		&job.Type,
		&job.Status,
		&payload,
		&job.ErrorText,
		&job.SourceID,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &job.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode job payload: %w", err)
	}
	return &job, nil
}

func (r *JobRepoImpl) CountByStatus(ctx context.Context) (map[entity.JobStatus]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[entity.JobStatus]int{
		entity.JobStatusRunning: 0,
		entity.JobStatusDone:    0,
		entity.JobStatusFailed:  0,
	}
	for rows.Next() {
		var status entity.JobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (r *JobRepoImpl) CountFailedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM jobs WHERE status = 'failed' AND created_at >= $1`, since,
	).Scan(&n)
	return n, err
}

// SettingsRepoImpl implements SettingsRepository on the settings table.
type SettingsRepoImpl struct {
	db *pgxpool.Pool
}

func NewSettingsRepo(db *pgxpool.Pool) *SettingsRepoImpl {
	return &SettingsRepoImpl{db: db}
}

func (r *SettingsRepoImpl) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return value, err
}

func (r *SettingsRepoImpl) Put(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW();
	`
	_, err := r.db.Exec(ctx, query, key, value)
	return err
}

// ObservabilityRepoImpl appends to ingest_logs and job_metrics.
type ObservabilityRepoImpl struct {
	db *pgxpool.Pool
}

func NewObservabilityRepo(db *pgxpool.Pool) *ObservabilityRepoImpl {
	return &ObservabilityRepoImpl{db: db}
}

func (r *ObservabilityRepoImpl) AppendLog(ctx context.Context, log *entity.IngestLog) error {
	event, err := encodeJSON(metadataOrEmpty(log.Event))
	if err != nil {
		return err
	}
	level := log.Level
	if level == "" {
		level = entity.LogLevelInfo
	}
	query := `
		INSERT INTO ingest_logs (job_id, source_url, source_id, level, event_type, event)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err = r.db.Exec(ctx, query, nullableID(log.JobID), log.SourceURL, nullableID(log.SourceID), level, log.EventType, event)
	return err
}

func (r *ObservabilityRepoImpl) RecordMetric(ctx context.Context, metric *entity.JobMetric) error {
	labels := metric.Labels
	if labels == nil {
		labels = map[string]string{}
	}
	encoded, err := encodeJSON(labels)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO job_metrics (job_id, metric_name, metric_value, labels) VALUES ($1, $2, $3, $4)`,
		nullableID(metric.JobID), metric.Name, metric.Value, encoded,
	)
	return err
}

func (r *ObservabilityRepoImpl) ListLogs(ctx context.Context, jobID int64) ([]entity.IngestLog, error) {
	query := `
		SELECT id, COALESCE(job_id, 0), source_url, COALESCE(source_id, 0), level, event_type, event, created_at
		FROM ingest_logs
		WHERE job_id = $1
		ORDER BY id;
	`
	rows, err := r.db.Query(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.IngestLog
	for rows.Next() {
		var l entity.IngestLog
		var event []byte
		if err := rows.Scan(&l.ID, &l.JobID, &l.SourceURL, &l.SourceID, &l.Level, &l.EventType, &event, &l.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(event, &l.Event); err != nil {
			return nil, fmt.Errorf("failed to decode ingest log event: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// nullableID stores zero ids as NULL.
func nullableID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
