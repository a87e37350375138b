package memory

import (
	"context"
	"sort"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
)

type SourceRepoImpl struct {
	store *Store
}

func NewSourceRepo(store *Store) *SourceRepoImpl {
	return &SourceRepoImpl{store: store}
}

func (r *SourceRepoImpl) Create(_ context.Context, src *entity.Source) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSourceID++
	row := *src
	row.ID = s.nextSourceID
	if row.IngestedAt.IsZero() {
		row.IngestedAt = s.now()
	}
	if row.Collection == "" {
		row.Collection = entity.DefaultCollection
	}
	s.sources[row.ID] = row
	return row.ID, nil
}

func (r *SourceRepoImpl) GetByID(_ context.Context, id int64) (*entity.Source, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.sources[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &row, nil
}

func (r *SourceRepoImpl) FindByURL(_ context.Context, url string) (*entity.Source, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *entity.Source
	for _, row := range s.sources {
		if row.CanonicalURL != url && row.URL != url {
			continue
		}
		if best == nil || row.ID > best.ID {
			row := row
			best = &row
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return best, nil
}

func (r *SourceRepoImpl) Delete(_ context.Context, id int64) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.sources, id)

	chunks := s.chunks[:0]
	for _, c := range s.chunks {
		if c.SourceID != id {
			chunks = append(chunks, c)
		}
	}
	s.chunks = chunks

	relations := s.relations[:0]
	for _, rel := range s.relations {
		if rel.ParentSourceID != id && rel.ChildSourceID != id {
			relations = append(relations, rel)
		}
	}
	s.relations = relations
	return nil
}

func (r *SourceRepoImpl) ListCollections(_ context.Context) ([]entity.CollectionStats, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]*entity.CollectionStats)
	for _, src := range s.sources {
		st, ok := stats[src.Collection]
		if !ok {
			st = &entity.CollectionStats{Collection: src.Collection}
			stats[src.Collection] = st
		}
		st.SourceCount++
	}
	for _, c := range s.chunks {
		if src, ok := s.sources[c.SourceID]; ok {
			stats[src.Collection].ChunkCount++
		}
	}

	out := make([]entity.CollectionStats, 0, len(stats))
	for _, st := range stats {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Collection < out[j].Collection })
	return out, nil
}

func (r *SourceRepoImpl) Count(_ context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.sources), nil
}

func (r *SourceRepoImpl) Ping(context.Context) error { return nil }
