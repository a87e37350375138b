package vector

import (
	"context"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/ranking"
)

const LinearName = "linear"

// Linear scores every candidate in process with cosine similarity over the
// embedding stored on the chunk.
type Linear struct{}

func NewLinear() *Linear { return &Linear{} }

func (Linear) Name() string { return LinearName }

// Index is a no-op: the linear strategy reads embeddings straight off the chunk rows.
func (Linear) Index(context.Context, int64, []float64) error { return nil }

func (Linear) Similarities(_ context.Context, query []float64, candidates []entity.ChunkCandidate) ([]float64, error) {
	out := make([]float64, len(candidates))
	for i, c := range candidates {
		out[i] = ranking.CosineSimilarity(query, c.Chunk.Embedding)
	}
	return out, nil
}
