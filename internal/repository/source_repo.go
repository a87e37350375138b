package repository

import (
	"context"

	"github.com/user/knowledge-service/internal/entity"
)

// SourceRepository persists sources.
type SourceRepository interface {
	// Create inserts a source and returns its new id.
	Create(ctx context.Context, src *entity.Source) (int64, error)
	GetByID(ctx context.Context, id int64) (*entity.Source, error)
	// FindByURL returns the most recent source whose canonical or raw URL equals url.
	FindByURL(ctx context.Context, url string) (*entity.Source, error)
	// Delete removes a source together with its chunks and relations.
	Delete(ctx context.Context, id int64) error
	ListCollections(ctx context.Context) ([]entity.CollectionStats, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// ChunkRepository persists chunks and serves retrieval scans.
type ChunkRepository interface {
	Insert(ctx context.Context, chunk *entity.Chunk) (int64, error)
	// ListCandidates scans chunks joined with their source, filtered by
	// collection, source type and URL. Domain filtering is left to the caller.
	ListCandidates(ctx context.Context, filters entity.SearchFilters) ([]entity.ChunkCandidate, error)
	ListBySource(ctx context.Context, sourceID int64) ([]entity.Chunk, error)
	Count(ctx context.Context) (int, error)
}

// RelationRepository persists the source graph.
type RelationRepository interface {
	// Link inserts a parent -> child edge. It reports false when the edge already existed.
	Link(ctx context.Context, parentID, childID int64, relationType entity.RelationType) (bool, error)
	ListByParent(ctx context.Context, parentID int64) ([]entity.SourceRelation, error)
}
