package service

import (
	"context"

	"github.com/docsage/docsage/internal/domain"
	"github.com/docsage/docsage/internal/pagination"
	"github.com/docsage/docsage/internal/telemetry"
)

// ChunkAdminInterface covers the document-level administration of the chunk
// store: listing, counting, and removal.
type ChunkAdminInterface interface {
	ListDocuments(ctx context.Context, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	CountChunks(ctx context.Context) (int, error)
	CountDocuments(ctx context.Context) (int, error)
	DeleteByDocument(ctx context.Context, documentName string) (int, error)
}

// ExampleAdminInterface covers administration of the few-shot example cache.
type ExampleAdminInterface interface {
	Count(ctx context.Context) (int, error)
	DeleteByDocument(ctx context.Context, documentName string) (bool, error)
}

// QueryLogAdminInterface exposes aggregate query-log counts.
type QueryLogAdminInterface interface {
	Count(ctx context.Context) (int, error)
}

// DocumentPageResult is one page of the grouped document listing.
type DocumentPageResult struct {
	Items      []*domain.DocumentInfo
	NextCursor string
	HasMore    bool
}

type ListDocumentsInput struct {
	Cursor string
	Limit  int
}

type ListDocumentsOutput struct {
	Items   []*domain.DocumentInfo
	Cursor  string
	HasMore bool
}

// DeleteDocumentResult reports what a document deletion removed.
type DeleteDocumentResult struct {
	DeletedChunks   int
	DeletedExamples bool
}

// Stats aggregates store-wide counts for the stats endpoint.
type Stats struct {
	Documents   int
	Chunks      int
	ExampleSets int
	Queries     int
}

// DocumentService handles listing, deletion, and stats for ingested documents.
type DocumentService struct {
	chunks    ChunkAdminInterface
	examples  ExampleAdminInterface
	queryLogs QueryLogAdminInterface
	tx        TxRunner
}

func NewDocumentService(chunks ChunkAdminInterface, examples ExampleAdminInterface, queryLogs QueryLogAdminInterface, tx TxRunner) *DocumentService {
	return &DocumentService{
		chunks:    chunks,
		examples:  examples,
		queryLogs: queryLogs,
		tx:        tx,
	}
}

// List returns ingested documents grouped by name, most recently created
// first, cursor-paginated.
func (s *DocumentService) List(ctx context.Context, input ListDocumentsInput) (*ListDocumentsOutput, error) {
	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "invalid cursor")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.chunks.ListDocuments(ctx, cursor, limit)
	if err != nil {
		return nil, domain.NewStorageError("failed to list documents", err)
	}

	return &ListDocumentsOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// Delete removes a document's chunks and its few-shot examples in one
// transaction.
func (s *DocumentService) Delete(ctx context.Context, documentName string) (*DeleteDocumentResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		Document:  documentName,
		Operation: "delete",
	})
	defer span.End()

	if documentName == "" {
		return nil, domain.ErrMissingDocumentName
	}

	var result DeleteDocumentResult
	err := s.tx.WithTx(ctx, func(repos TxRepositories) error {
		deleted, err := repos.Chunks().DeleteByDocument(ctx, documentName)
		if err != nil {
			return err
		}
		result.DeletedChunks = deleted

		hadExamples, err := repos.Examples().DeleteByDocument(ctx, documentName)
		if err != nil {
			return err
		}
		result.DeletedExamples = hadExamples
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("failed to delete document", err)
	}

	if result.DeletedChunks == 0 && !result.DeletedExamples {
		return nil, domain.ErrDocumentNotFound
	}

	return &result, nil
}

// GetStats returns aggregate counts across the store.
func (s *DocumentService) GetStats(ctx context.Context) (*Stats, error) {
	chunks, err := s.chunks.CountChunks(ctx)
	if err != nil {
		return nil, domain.NewStorageError("failed to count chunks", err)
	}
	documents, err := s.chunks.CountDocuments(ctx)
	if err != nil {
		return nil, domain.NewStorageError("failed to count documents", err)
	}
	exampleSets, err := s.examples.Count(ctx)
	if err != nil {
		return nil, domain.NewStorageError("failed to count example sets", err)
	}

	queries := 0
	if s.queryLogs != nil {
		queries, err = s.queryLogs.Count(ctx)
		if err != nil {
			return nil, domain.NewStorageError("failed to count queries", err)
		}
	}

	return &Stats{
		Documents:   documents,
		Chunks:      chunks,
		ExampleSets: exampleSets,
		Queries:     queries,
	}, nil
}
