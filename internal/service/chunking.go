package service

import (
	"fmt"
	"strings"
)

// ChunkConfig controls the overlapping chunker used for embedding storage.
type ChunkConfig struct {
	ChunkSize int
	Overlap   int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		ChunkSize: 1000,
		Overlap:   200,
	}
}

// SplitOverlapping splits text into overlapping windows. Window i starts at
// i*(chunkSize-overlap) and spans up to chunkSize characters; the last window
// is the one that reaches the end of the text. Overlap must be smaller than
// the chunk size or the window start would never advance.
func SplitOverlapping(text string, chunkSize, overlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("overlap must not be negative, got %d", overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("overlap (%d) must be smaller than chunk size (%d)", overlap, chunkSize)
	}

	if text == "" {
		return nil, nil
	}

	step := chunkSize - overlap
	chunks := make([]string, 0, len(text)/step+1)
	for start := 0; start < len(text); start += step {
		end := start + chunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end >= len(text) {
			break
		}
	}

	return chunks, nil
}

// SplitByTokenBudget slices text into consecutive non-overlapping blocks that
// each fit within maxTokens under the chars-per-token heuristic. It is used
// only to fit oversized content into single LLM requests; the overlapping
// chunker above is the one used for embedding storage.
func SplitByTokenBudget(text string, maxTokens int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	maxChars := maxTokens * charsPerToken
	if maxChars <= 0 || len(text) <= maxChars {
		return []string{text}
	}

	blocks := make([]string, 0, len(text)/maxChars+1)
	for start := 0; start < len(text); start += maxChars {
		end := start + maxChars
		if end > len(text) {
			end = len(text)
		}
		blocks = append(blocks, text[start:end])
	}
	return blocks
}
