package memory

import (
	"context"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
)

type ChunkRepoImpl struct {
	store *Store
}

func NewChunkRepo(store *Store) *ChunkRepoImpl {
	return &ChunkRepoImpl{store: store}
}

func (r *ChunkRepoImpl) Insert(_ context.Context, chunk *entity.Chunk) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[chunk.SourceID]; !ok {
		return 0, repository.ErrNotFound
	}
	s.nextChunkID++
	row := *chunk
	row.ID = s.nextChunkID
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now()
	}
	s.chunks = append(s.chunks, row)
	return row.ID, nil
}

// ListCandidates scans chunks in insertion order.
func (r *ChunkRepoImpl) ListCandidates(_ context.Context, filters entity.SearchFilters) ([]entity.ChunkCandidate, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entity.ChunkCandidate
	for _, c := range s.chunks {
		src, ok := s.sources[c.SourceID]
		if !ok {
			continue
		}
		if filters.Collection != "" && src.Collection != filters.Collection {
			continue
		}
		if filters.SourceType != "" && string(src.Type) != filters.SourceType {
			continue
		}
		if filters.URL != "" && src.URL != filters.URL && src.CanonicalURL != filters.URL {
			continue
		}
		out = append(out, entity.ChunkCandidate{Chunk: c, Source: src})
	}
	return out, nil
}

func (r *ChunkRepoImpl) ListBySource(_ context.Context, sourceID int64) ([]entity.Chunk, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entity.Chunk
	for _, c := range s.chunks {
		if c.SourceID == sourceID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *ChunkRepoImpl) Count(_ context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.chunks), nil
}

type RelationRepoImpl struct {
	store *Store
}

func NewRelationRepo(store *Store) *RelationRepoImpl {
	return &RelationRepoImpl{store: store}
}

func (r *RelationRepoImpl) Link(_ context.Context, parentID, childID int64, relationType entity.RelationType) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rel := range s.relations {
		if rel.ParentSourceID == parentID && rel.ChildSourceID == childID && rel.RelationType == relationType {
			return false, nil
		}
	}
	s.nextRelationID++
	s.relations = append(s.relations, entity.SourceRelation{
		ID:             s.nextRelationID,
		ParentSourceID: parentID,
		ChildSourceID:  childID,
		RelationType:   relationType,
		CreatedAt:      s.now(),
	})
	return true, nil
}

func (r *RelationRepoImpl) ListByParent(_ context.Context, parentID int64) ([]entity.SourceRelation, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entity.SourceRelation
	for _, rel := range s.relations {
		if rel.ParentSourceID == parentID {
			out = append(out, rel)
		}
	}
	return out, nil
}
