package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/knowledge-service/internal/entity"
)

// ChunkRepoImpl implements ChunkRepository on PostgreSQL.
type ChunkRepoImpl struct {
	db *pgxpool.Pool
}

func NewChunkRepo(db *pgxpool.Pool) *ChunkRepoImpl {
	return &ChunkRepoImpl{db: db}
}

func (r *ChunkRepoImpl) Insert(ctx context.Context, chunk *entity.Chunk) (int64, error) {
	embedding := chunk.Embedding
	if embedding == nil {
		embedding = []float64{}
	}
	query := `
		INSERT INTO chunks (source_id, chunk_index, text, token_count, embedding, section_title)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id;
	`
	var id int64
	err := r.db.QueryRow(ctx, query,
		chunk.SourceID,
		chunk.Index,
		chunk.Text,
		chunk.TokenCount,
		embedding,
		chunk.SectionTitle,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert chunk %d of source %d: %w", chunk.Index, chunk.SourceID, err)
	}
	return id, nil
}

// ListCandidates joins chunks with their source and applies the SQL side filters.
// Rows come back in chunk id order so ties rank in scan order.
func (r *ChunkRepoImpl) ListCandidates(ctx context.Context, filters entity.SearchFilters) ([]entity.ChunkCandidate, error) {
	var conditions []string
	var args []any
	if filters.Collection != "" {
		args = append(args, filters.Collection)
		conditions = append(conditions, fmt.Sprintf("s.collection = $%d", len(args)))
	}
	if filters.SourceType != "" {
		args = append(args, filters.SourceType)
		conditions = append(conditions, fmt.Sprintf("s.type = $%d", len(args)))
	}
	if filters.URL != "" {
		args = append(args, filters.URL)
		conditions = append(conditions, fmt.Sprintf("(s.url = $%d OR s.canonical_url = $%d)", len(args), len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := `
		SELECT c.id, c.source_id, c.chunk_index, c.text, c.token_count, c.embedding, c.section_title, c.created_at,
			s.id, s.type, s.url, s.canonical_url, s.title, s.ingested_at, s.source_weight, s.collection
		FROM chunks c
		JOIN sources s ON c.source_id = s.id
		` + where + `
		ORDER BY c.id;`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunks: %w", err)
	}
	defer rows.Close()

	var out []entity.ChunkCandidate
	for rows.Next() {
		var c entity.ChunkCandidate
		if err := rows.Scan(
			&c.Chunk.ID,
			&c.Chunk.SourceID,
			&c.Chunk.Index,
			&c.Chunk.Text,
			&c.Chunk.TokenCount,
			&c.Chunk.Embedding,
			&c.Chunk.SectionTitle,
			&c.Chunk.CreatedAt,
			&c.Source.ID,
			&c.Source.Type,
			&c.Source.URL,
			&c.Source.CanonicalURL,
			&c.Source.Title,
			&c.Source.IngestedAt,
			&c.Source.SourceWeight,
			&c.Source.Collection,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ChunkRepoImpl) ListBySource(ctx context.Context, sourceID int64) ([]entity.Chunk, error) {
	query := `
		SELECT id, source_id, chunk_index, text, token_count, embedding, section_title, created_at
		FROM chunks
		WHERE source_id = $1
		ORDER BY chunk_index;
	`
	rows, err := r.db.Query(ctx, query, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.Chunk
	for rows.Next() {
		var c entity.Chunk
		if err := rows.Scan(&c.ID, &c.SourceID, &c.Index, &c.Text, &c.TokenCount, &c.Embedding, &c.SectionTitle, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ChunkRepoImpl) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// RelationRepoImpl implements RelationRepository on PostgreSQL.
type RelationRepoImpl struct {
	db *pgxpool.Pool
}

func NewRelationRepo(db *pgxpool.Pool) *RelationRepoImpl {
	return &RelationRepoImpl{db: db}
}

// Link relies on the unique (parent, child, type) constraint. No returned row
// means the edge was already present.
func (r *RelationRepoImpl) Link(ctx context.Context, parentID, childID int64, relationType entity.RelationType) (bool, error) {
	query := `
		INSERT INTO source_relations (parent_source_id, child_source_id, relation_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (parent_source_id, child_source_id, relation_type) DO NOTHING
		RETURNING id;
	`
	var id int64
	err := r.db.QueryRow(ctx, query, parentID, childID, relationType).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to link %d -> %d: %w", parentID, childID, err)
	}
	return true, nil
}

func (r *RelationRepoImpl) ListByParent(ctx context.Context, parentID int64) ([]entity.SourceRelation, error) {
	query := `
		SELECT id, parent_source_id, child_source_id, relation_type, created_at
		FROM source_relations
		WHERE parent_source_id = $1
		ORDER BY id;
	`
	rows, err := r.db.Query(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.SourceRelation
	for rows.Next() {
		var rel entity.SourceRelation
		if err := rows.Scan(&rel.ID, &rel.ParentSourceID, &rel.ChildSourceID, &rel.RelationType, &rel.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

func encodeJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode json column: %w", err)
	}
	return b, nil
}
