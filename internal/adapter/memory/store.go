// Package memory keeps every repository in process. It backs the CLI when no
// database is configured and the use case tests.
package memory

import (
	"sync"
	"time"

	"github.com/user/knowledge-service/internal/entity"
)

// Store is the shared state behind the memory repositories.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	nextSourceID   int64
	nextChunkID    int64
	nextRelationID int64
	nextJobID      int64
	nextLogID      int64

	sources   map[int64]entity.Source
	chunks    []entity.Chunk
	relations []entity.SourceRelation
	jobs      map[int64]entity.Job
	settings  map[string][]byte
	logs      []entity.IngestLog
	metrics   []entity.JobMetric
}

func NewStore() *Store {
	return &Store{
		now:      time.Now,
		sources:  make(map[int64]entity.Source),
		jobs:     make(map[int64]entity.Job),
		settings: make(map[string][]byte),
	}
}

// SetClock replaces the time source, for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
