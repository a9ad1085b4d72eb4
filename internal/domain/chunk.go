package domain

import "time"

// Chunk is one overlapping window of a document's extracted text together
// with its embedding. ChunkIndex is contiguous per document, starting at 0,
// assigned in chunking order.
type Chunk struct {
	ID           string
	DocumentName string
	Content      string
	Embedding    []float32
	ChunkIndex   int
	CreatedAt    time.Time
}

// SearchResult is a chunk returned from a similarity search.
type SearchResult struct {
	Content      string
	DocumentName string
	ChunkIndex   int
	Similarity   float64
}

// DocumentInfo describes a logical document, derived from its chunk rows.
// A document exists iff at least one chunk row carries its name.
type DocumentInfo struct {
	Name       string
	CreatedAt  time.Time
	ChunkCount int
}

// FewShotExampleSet is the cached question/answer exemplars for a document.
// At most one row exists per document name.
type FewShotExampleSet struct {
	DocumentName string
	Examples     string
	CreatedAt    time.Time
}

// ValidateChunk checks the fields required before a chunk may be persisted.
func ValidateChunk(c *Chunk) error {
	if c.DocumentName == "" {
		return ErrMissingDocumentName
	}
	if c.Content == "" {
		return ErrEmptyChunkContent
	}
	if len(c.Embedding) == 0 {
		return ErrMissingEmbedding
	}
	if c.ChunkIndex < 0 {
		return ErrNegativeChunkIndex
	}
	return nil
}
