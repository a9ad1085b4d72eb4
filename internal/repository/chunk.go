package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/docsage/docsage/internal/domain"
	"github.com/docsage/docsage/internal/pagination"
	"github.com/docsage/docsage/internal/service"
)

// ChunkRepository persists document chunks and runs vector similarity search.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx dbtx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

func (r *ChunkRepository) InsertChunk(ctx context.Context, c *domain.Chunk) error {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO chunks (document_name, content, embedding, chunk_index, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.DocumentName,
		c.Content,
		pgvector.NewVector(c.Embedding),
		c.ChunkIndex,
		createdAt,
	)
	return err
}

// Search returns chunks ranked by descending cosine similarity, excluding
// rows below threshold. A non-empty documentName is applied inside the query
// predicate, so candidate slots are never wasted on other documents.
func (r *ChunkRepository) Search(ctx context.Context, embedding []float32, threshold float64, limit int, documentName string) ([]*domain.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	vec := pgvector.NewVector(embedding)

	rows, err := r.db.Query(ctx,
		`SELECT content, document_name, chunk_index,
		        1 - (embedding <=> $1) AS similarity
		 FROM chunks
		 WHERE ($2 = '' OR document_name = $2)
		   AND 1 - (embedding <=> $1) >= $3
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		vec, documentName, threshold, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*domain.SearchResult, 0)
	for rows.Next() {
		var result domain.SearchResult
		if err := rows.Scan(&result.Content, &result.DocumentName, &result.ChunkIndex, &result.Similarity); err != nil {
			return nil, err
		}
		results = append(results, &result)
	}

	return results, rows.Err()
}

func (r *ChunkRepository) CountByDocument(ctx context.Context, documentName string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_name = $1`,
		documentName,
	).Scan(&count)
	return count, err
}

func (r *ChunkRepository) CountChunks(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

func (r *ChunkRepository) CountDocuments(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(DISTINCT document_name) FROM chunks`).Scan(&count)
	return count, err
}

// ListDocuments groups chunk rows into logical documents, newest first.
// A document's creation time is the creation time of its first chunk.
func (r *ChunkRepository) ListDocuments(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT document_name, MIN(created_at) AS created_at, COUNT(*) AS chunk_count
		 FROM chunks
		 GROUP BY document_name`
	args := []any{limit + 1}
	if cursor != nil {
		query += ` HAVING (MIN(created_at), document_name) < ($2, $3)`
		args = append(args, cursor.Timestamp, cursor.LastID)
	}
	query += ` ORDER BY MIN(created_at) DESC, document_name DESC LIMIT $1`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.DocumentInfo
	for rows.Next() {
		var info domain.DocumentInfo
		if err := rows.Scan(&info.Name, &info.CreatedAt, &info.ChunkCount); err != nil {
			return nil, err
		}
		items = append(items, &info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore {
		nextCursor = pagination.CreateNextCursor(items, limit,
			func(d *domain.DocumentInfo) string { return d.Name },
			func(d *domain.DocumentInfo) time.Time { return d.CreatedAt })
	}

	return &service.DocumentPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// DeleteByDocument removes all chunk rows for a document and returns how
// many were deleted.
func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentName string) (int, error) {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM chunks WHERE document_name = $1`,
		documentName,
	)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}
