package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docsage/docsage/internal/service"
)

// QueryLogRepository stores answered queries for evaluation.
type QueryLogRepository struct {
	pool *pgxpool.Pool
}

func NewQueryLogRepository(pool *pgxpool.Pool) *QueryLogRepository {
	return &QueryLogRepository{pool: pool}
}

func (r *QueryLogRepository) Create(ctx context.Context, entry service.QueryLogEntry) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx,
		`INSERT INTO query_logs (query, document_name, result_count, confidence, duration_ms)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		entry.Query,
		nullableString(entry.DocumentName),
		entry.ResultCount,
		entry.Confidence,
		entry.DurationMs,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *QueryLogRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM query_logs`).Scan(&count)
	return count, err
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
