//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docsage/docsage/internal/domain"
	"github.com/docsage/docsage/internal/testutil"
)

// setupTestPool starts a pgvector postgres container, runs migrations, and
// registers cleanup.
func setupTestPool(t *testing.T) (context.Context, *pgxpool.Pool) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(ctx) })

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	t.Cleanup(pool.Close)

	return ctx, pool
}

// basisVector returns a 1536-dim unit vector along one axis. Distinct axes
// are orthogonal, which makes cosine similarities exact in assertions.
func basisVector(axis int) []float32 {
	v := make([]float32, 1536)
	v[axis] = 1
	return v
}

// mixedVector returns the normalized sum of two axes; its cosine similarity
// against either axis alone is 1/sqrt(2).
func mixedVector(a, b int) []float32 {
	v := make([]float32, 1536)
	v[a] = 0.70710678
	v[b] = 0.70710678
	return v
}

func storedChunk(document string, index int, content string, embedding []float32, createdAt time.Time) *domain.Chunk {
	return &domain.Chunk{
		DocumentName: document,
		Content:      content,
		Embedding:    embedding,
		ChunkIndex:   index,
		CreatedAt:    createdAt,
	}
}
