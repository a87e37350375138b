package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/ranking"
)

const PgVectorName = "pgvector"

// ErrVectorUnavailable reports that the vector extension cannot be installed.
var ErrVectorUnavailable = errors.New("pgvector extension is not available")

// PgVectorIndex scores similarity inside PostgreSQL with the pgvector cosine
// distance operator. Chunks without an indexed vector are scored in process.
type PgVectorIndex struct {
	db *pgxpool.Pool
}

// NewPgVectorIndex probes for the extension once and prepares the vector column.
func NewPgVectorIndex(ctx context.Context, db *pgxpool.Pool) (*PgVectorIndex, error) {
	var available bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_available_extensions WHERE name = 'vector')`,
	).Scan(&available)
	if err != nil {
		return nil, fmt.Errorf("failed to probe vector extension: %w", err)
	}
	if !available {
		return nil, ErrVectorUnavailable
	}

	for _, stmt := range []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`ALTER TABLE chunks ADD COLUMN IF NOT EXISTS embedding_vec vector`,
	} {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrVectorUnavailable, err)
		}
	}
	return &PgVectorIndex{db: db}, nil
}

func (p *PgVectorIndex) Name() string { return PgVectorName }

func (p *PgVectorIndex) Index(ctx context.Context, chunkID int64, embedding []float64) error {
	if len(embedding) == 0 {
		return nil
	}
	_, err := p.db.Exec(ctx, `UPDATE chunks SET embedding_vec = $2::vector WHERE id = $1`, chunkID, vectorLiteral(embedding))
	if err != nil {
		return fmt.Errorf("failed to index chunk %d: %w", chunkID, err)
	}
	return nil
}

func (p *PgVectorIndex) Similarities(ctx context.Context, query []float64, candidates []entity.ChunkCandidate) ([]float64, error) {
	out := make([]float64, len(candidates))
	if len(candidates) == 0 || len(query) == 0 {
		return out, nil
	}

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.Chunk.ID
	}

	// Vectors of another dimension, e.g. written by a previous embedder, cannot
	// be compared by <=> and are left to the in-process path.
	rows, err := p.db.Query(ctx, `
		SELECT id, 1 - (embedding_vec <=> $1::vector)
		FROM chunks
		WHERE id = ANY($2) AND embedding_vec IS NOT NULL AND vector_dims(embedding_vec) = $3;`,
		vectorLiteral(query), ids, len(query),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to score candidates: %w", err)
	}
	defer rows.Close()

	scored := make(map[int64]float64, len(candidates))
	for rows.Next() {
		var id int64
		var sim float64
		if err := rows.Scan(&id, &sim); err != nil {
			return nil, err
		}
		scored[id] = sim
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, c := range candidates {
		if sim, ok := scored[c.Chunk.ID]; ok {
			out[i] = sim
			continue
		}
		out[i] = ranking.CosineSimilarity(query, c.Chunk.Embedding)
	}
	return out, nil
}

// vectorLiteral renders the pgvector text form, e.g. [0.1,0.2].
func vectorLiteral(v []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(x, 'f', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}
