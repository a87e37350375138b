package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
)

type JobRepoImpl struct {
	store *Store
}

func NewJobRepo(store *Store) *JobRepoImpl {
	return &JobRepoImpl{store: store}
}

func (r *JobRepoImpl) Create(_ context.Context, job *entity.Job) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextJobID++
	row := *job
	row.ID = s.nextJobID
	row.Status = entity.JobStatusRunning
	row.CreatedAt = s.now()
	row.UpdatedAt = row.CreatedAt
	s.jobs[row.ID] = row
	return row.ID, nil
}

func (r *JobRepoImpl) Complete(_ context.Context, id, sourceID int64) error {
	return r.finish(id, func(j *entity.Job) {
		j.Status = entity.JobStatusDone
		j.SourceID = sourceID
	})
}

func (r *JobRepoImpl) Fail(_ context.Context, id int64, errText string) error {
	return r.finish(id, func(j *entity.Job) {
		j.Status = entity.JobStatusFailed
		j.ErrorText = errText
	})
}

// finish applies a terminal transition. Terminal jobs are never revisited.
func (r *JobRepoImpl) finish(id int64, apply func(*entity.Job)) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}
	if job.Status != entity.JobStatusRunning {
		return fmt.Errorf("job %d already %s", id, job.Status)
	}
	apply(&job)
	job.UpdatedAt = s.now()
	s.jobs[id] = job
	return nil
}

func (r *JobRepoImpl) GetByID(_ context.Context, id int64) (*entity.Job, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &job, nil
}

func (r *JobRepoImpl) CountByStatus(_ context.Context) (map[entity.JobStatus]int, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[entity.JobStatus]int{
		entity.JobStatusRunning: 0,
		entity.JobStatusDone:    0,
		entity.JobStatusFailed:  0,
	}
	for _, j := range s.jobs {
		out[j.Status]++
	}
	return out, nil
}

func (r *JobRepoImpl) CountFailedSince(_ context.Context, since time.Time) (int, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, j := range s.jobs {
		if j.Status == entity.JobStatusFailed && !j.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type SettingsRepoImpl struct {
	store *Store
}

func NewSettingsRepo(store *Store) *SettingsRepoImpl {
	return &SettingsRepoImpl{store: store}
}

func (r *SettingsRepoImpl) Get(_ context.Context, key string) ([]byte, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	v, ok := r.store.settings[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (r *SettingsRepoImpl) Put(_ context.Context, key string, value []byte) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.settings[key] = append([]byte(nil), value...)
	return nil
}

type ObservabilityRepoImpl struct {
	store *Store
}

func NewObservabilityRepo(store *Store) *ObservabilityRepoImpl {
	return &ObservabilityRepoImpl{store: store}
}

func (r *ObservabilityRepoImpl) AppendLog(_ context.Context, log *entity.IngestLog) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextLogID++
	row := *log
	row.ID = s.nextLogID
	if row.Level == "" {
		row.Level = entity.LogLevelInfo
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now()
	}
	s.logs = append(s.logs, row)
	return nil
}

func (r *ObservabilityRepoImpl) RecordMetric(_ context.Context, metric *entity.JobMetric) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	row := *metric
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now()
	}
	s.metrics = append(s.metrics, row)
	return nil
}

func (r *ObservabilityRepoImpl) ListLogs(_ context.Context, jobID int64) ([]entity.IngestLog, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entity.IngestLog
	for _, l := range s.logs {
		if l.JobID == jobID {
			out = append(out, l)
		}
	}
	return out, nil
}

// Metrics returns every recorded job metric, for tests and diagnostics.
func (r *ObservabilityRepoImpl) Metrics() []entity.JobMetric {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return append([]entity.JobMetric(nil), r.store.metrics...)
}
