package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExampleRepository persists cached few-shot example sets, one per document.
type ExampleRepository struct {
	db dbtx
}

func NewExampleRepository(pool *pgxpool.Pool) *ExampleRepository {
	return &ExampleRepository{db: pool}
}

func NewExampleRepositoryWithTx(tx dbtx) *ExampleRepository {
	return &ExampleRepository{db: tx}
}

// Get returns the cached example set for a document, reporting whether one
// exists.
func (r *ExampleRepository) Get(ctx context.Context, documentName string) (string, bool, error) {
	var examples string
	err := r.db.QueryRow(ctx,
		`SELECT examples FROM few_shot_examples WHERE document_name = $1`,
		documentName,
	).Scan(&examples)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return examples, true, nil
}

// Put stores an example set. The table carries a uniqueness constraint on
// document_name; a concurrent duplicate write keeps the existing row, so the
// first generation wins.
func (r *ExampleRepository) Put(ctx context.Context, documentName, examples string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO few_shot_examples (document_name, examples, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (document_name) DO NOTHING`,
		documentName, examples, time.Now().UTC(),
	)
	return err
}

func (r *ExampleRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM few_shot_examples`).Scan(&count)
	return count, err
}

// DeleteByDocument removes a document's example set, reporting whether one
// existed.
func (r *ExampleRepository) DeleteByDocument(ctx context.Context, documentName string) (bool, error) {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM few_shot_examples WHERE document_name = $1`,
		documentName,
	)
	if err != nil {
		return false, err
	}
	return cmdTag.RowsAffected() > 0, nil
}
