package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
)

// SourceRepoImpl implements SourceRepository on PostgreSQL.
type SourceRepoImpl struct {
	db *pgxpool.Pool
}

func NewSourceRepo(db *pgxpool.Pool) *SourceRepoImpl {
	return &SourceRepoImpl{db: db}
}

const sourceColumns = `id, type, url, canonical_url, title, author, published_at, ingested_at,
	metadata, source_weight, collection, extraction_method, extraction_confidence`

func (r *SourceRepoImpl) Create(ctx context.Context, src *entity.Source) (int64, error) {
	metadata, err := json.Marshal(metadataOrEmpty(src.Metadata))
	if err != nil {
		return 0, fmt.Errorf("failed to encode source metadata: %w", err)
	}
	collection := src.Collection
	if collection == "" {
		collection = entity.DefaultCollection
	}

	query := `
		INSERT INTO sources (type, url, canonical_url, title, author, published_at, metadata,
			source_weight, collection, extraction_method, extraction_confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id;
	`
	var id int64
	err = r.db.QueryRow(ctx, query,
		src.Type,
		src.URL,
		src.CanonicalURL,
		src.Title,
		src.Author,
		src.PublishedAt,
		metadata,
		src.SourceWeight,
		collection,
		src.ExtractionMethod,
		src.ExtractionConfidence,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source: %w", err)
	}
	return id, nil
}

func (r *SourceRepoImpl) GetByID(ctx context.Context, id int64) (*entity.Source, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = $1;`, id)
	return scanSource(row)
}

func (r *SourceRepoImpl) FindByURL(ctx context.Context, url string) (*entity.Source, error) {
	query := `SELECT ` + sourceColumns + `
		FROM sources
		WHERE canonical_url = $1 OR url = $1
		ORDER BY id DESC
		LIMIT 1;`
	return scanSource(r.db.QueryRow(ctx, query, url))
}

// Delete removes the source, its chunks and every edge touching it in one transaction.
func (r *SourceRepoImpl) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM source_relations WHERE parent_source_id = $1 OR child_source_id = $1`, id)
	batch.Queue(`DELETE FROM chunks WHERE source_id = $1`, id)
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to delete source children: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return tx.Commit(ctx)
}

func (r *SourceRepoImpl) ListCollections(ctx context.Context) ([]entity.CollectionStats, error) {
	query := `
		SELECT s.collection, COUNT(DISTINCT s.id), COUNT(c.id)
		FROM sources s
		LEFT JOIN chunks c ON c.source_id = s.id
		GROUP BY s.collection
		ORDER BY s.collection;
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []entity.CollectionStats
	for rows.Next() {
		var st entity.CollectionStats
		if err := rows.Scan(&st.Collection, &st.SourceCount, &st.ChunkCount); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (r *SourceRepoImpl) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM sources`).Scan(&n)
	return n, err
}

func (r *SourceRepoImpl) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func scanSource(row pgx.Row) (*entity.Source, error) {
	var src entity.Source
	var metadata []byte
	err := row.Scan(
		&src.ID,
		&src.Type,
		&src.URL,
		&src.CanonicalURL,
		&src.Title,
		&src.Author,
		&src.PublishedAt,
		&src.IngestedAt,
		&metadata,
		&src.SourceWeight,
		&src.Collection,
		&src.ExtractionMethod,
		&src.ExtractionConfidence,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metadata, &src.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode source metadata: %w", err)
	}
	return &src, nil
}

func metadataOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
