package usecase

import (
	"context"
	"fmt"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
)

// JobReport is a job together with its ingest event trail.
type JobReport struct {
	Job  *entity.Job        `json:"job"`
	Logs []entity.IngestLog `json:"logs"`
}

// JobUseCase looks up ingestion runs.
type JobUseCase struct {
	jobs repository.JobRepository
	logs repository.ObservabilityRepository
}

func NewJobUseCase(jobs repository.JobRepository, logs repository.ObservabilityRepository) *JobUseCase {
	return &JobUseCase{jobs: jobs, logs: logs}
}

// Get returns repository.ErrNotFound for an unknown id.
func (uc *JobUseCase) Get(ctx context.Context, id int64) (*JobReport, error) {
	job, err := uc.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load job %d: %w", id, err)
	}
	report := &JobReport{Job: job, Logs: []entity.IngestLog{}}
	if uc.logs == nil {
		return report, nil
	}
	logs, err := uc.logs.ListLogs(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load logs for job %d: %w", id, err)
	}
	if logs != nil {
		report.Logs = logs
	}
	return report, nil
}
