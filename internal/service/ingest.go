package service

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/docsage/docsage/internal/domain"
	"github.com/docsage/docsage/internal/telemetry"
)

// ChunkWriterInterface is the insert/count side of the chunk store used by
// ingestion.
type ChunkWriterInterface interface {
	InsertChunk(ctx context.Context, chunk *domain.Chunk) error
	CountByDocument(ctx context.Context, documentName string) (int, error)
}

// FewShotGeneratorInterface produces the cached example set for a document.
type FewShotGeneratorInterface interface {
	Generate(ctx context.Context, documentText, documentName string) (string, error)
}

// IngestResult reports what one ingestion did.
type IngestResult struct {
	ChunksProcessed          int
	FewShotExamplesGenerated bool
}

// IngestService chunks a document, embeds the chunks in throttled batches,
// stores them, and triggers few-shot example generation.
type IngestService struct {
	embedder  *EmbeddingService
	chunks    ChunkWriterInterface
	fewshot   FewShotGeneratorInterface
	chunkCfg  ChunkConfig
	batchOpts BatchOptions
}

func NewIngestService(embedder *EmbeddingService, chunks ChunkWriterInterface, fewshot FewShotGeneratorInterface, chunkCfg ChunkConfig, batchOpts BatchOptions) *IngestService {
	if chunkCfg.ChunkSize <= 0 {
		chunkCfg = DefaultChunkConfig()
	}
	batchOpts.Strict = true
	return &IngestService{
		embedder:  embedder,
		chunks:    chunks,
		fewshot:   fewshot,
		chunkCfg:  chunkCfg,
		batchOpts: batchOpts,
	}
}

// Ingest processes one document. A document that already has chunk rows is
// reported as done without touching the embedding backend. Once chunking
// starts, any non-rate-limit batch failure aborts the ingestion; chunks
// inserted before the failure are not rolled back.
func (s *IngestService) Ingest(ctx context.Context, documentText, documentName string) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.Ingest", telemetry.SpanAttributes{
		Document:  documentName,
		Operation: "ingest",
	})
	defer span.End()

	if documentName == "" {
		return nil, domain.ErrMissingDocumentName
	}
	if strings.TrimSpace(documentText) == "" {
		return nil, domain.ErrNothingToProcess
	}

	existing, err := s.chunks.CountByDocument(ctx, documentName)
	if err != nil {
		return nil, domain.NewStorageError("failed to check existing chunks", err)
	}
	if existing > 0 {
		// Already processed; example generation is assumed to have run with
		// the original ingestion.
		log.Printf("ingest: %q already has %d chunks, skipping", documentName, existing)
		return &IngestResult{
			ChunksProcessed:          existing,
			FewShotExamplesGenerated: true,
		}, nil
	}

	texts, err := SplitOverlapping(documentText, s.chunkCfg.ChunkSize, s.chunkCfg.Overlap)
	if err != nil {
		return nil, err
	}

	createdAt := time.Now().UTC()
	opts := s.batchOpts

	// A rate-limited batch is retried whole, so OnResult can fire again for
	// chunks that already landed. Re-inserting would trip the unique
	// (document_name, chunk_index) constraint and abort the ingestion.
	var insertedMu sync.Mutex
	inserted := make(map[int]bool)

	opts.OnResult = func(ctx context.Context, index int, embedding []float32) error {
		insertedMu.Lock()
		done := inserted[index]
		insertedMu.Unlock()
		if done {
			return nil
		}
		chunk := &domain.Chunk{
			DocumentName: documentName,
			Content:      texts[index],
			Embedding:    embedding,
			ChunkIndex:   index,
			CreatedAt:    createdAt,
		}
		if err := domain.ValidateChunk(chunk); err != nil {
			return err
		}
		if err := s.chunks.InsertChunk(ctx, chunk); err != nil {
			return domain.NewStorageError("failed to insert chunk", err)
		}
		insertedMu.Lock()
		inserted[index] = true
		insertedMu.Unlock()
		return nil
	}

	if _, err := s.embedder.EmbedBatch(ctx, texts, opts); err != nil {
		span.SetError(err)
		return nil, err
	}

	examplesGenerated := false
	if s.fewshot != nil {
		if _, err := s.fewshot.Generate(ctx, documentText, documentName); err != nil {
			// Chunks are stored and searchable at this point; a missing
			// example set only degrades prompts, so the ingestion still
			// counts as a success.
			log.Printf("ingest: few-shot generation failed for %q: %v", documentName, err)
		} else {
			examplesGenerated = true
		}
	}

	return &IngestResult{
		ChunksProcessed:          len(texts),
		FewShotExamplesGenerated: examplesGenerated,
	}, nil
}
