package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validChunk() *Chunk {
	return &Chunk{
		DocumentName: "policy.txt",
		Content:      "Refunds are honored within 30 days.",
		Embedding:    make([]float32, 1536),
		ChunkIndex:   0,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestValidateChunk_Valid(t *testing.T) {
	assert.NoError(t, ValidateChunk(validChunk()))
}

func TestValidateChunk_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Chunk)
		wantErr error
	}{
		{
			name:    "missing document name",
			mutate:  func(c *Chunk) { c.DocumentName = "" },
			wantErr: ErrMissingDocumentName,
		},
		{
			name:    "empty content",
			mutate:  func(c *Chunk) { c.Content = "" },
			wantErr: ErrEmptyChunkContent,
		},
		{
			name:    "missing embedding",
			mutate:  func(c *Chunk) { c.Embedding = nil },
			wantErr: ErrMissingEmbedding,
		},
		{
			name:    "negative index",
			mutate:  func(c *Chunk) { c.ChunkIndex = -1 },
			wantErr: ErrNegativeChunkIndex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk := validChunk()
			tt.mutate(chunk)
			assert.ErrorIs(t, ValidateChunk(chunk), tt.wantErr)
		})
	}
}
