package repository

import (
	"context"

	"github.com/user/knowledge-service/internal/entity"
)

// ExtractorRepository defines the contract for turning a URL into normalized content.
type ExtractorRepository interface {
	// Extract fetches a URL and returns its content plus the related URLs it references.
	Extract(ctx context.Context, url string) (*entity.SourceBundle, error)
}

// Embedder turns text into a fixed-length vector. Implementations never fail;
// remote providers fall back to a deterministic local embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) []float64
	Dims() int
}

// VectorIndex scores query/chunk similarity. One strategy is selected at startup.
type VectorIndex interface {
	Name() string
	// Index records a persisted chunk's embedding with the strategy.
	Index(ctx context.Context, chunkID int64, embedding []float64) error
	// Similarities returns one score per candidate, in candidate order.
	Similarities(ctx context.Context, query []float64, candidates []entity.ChunkCandidate) ([]float64, error)
}
