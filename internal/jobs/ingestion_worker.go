package jobs

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/docsage/docsage/internal/domain"
	"github.com/docsage/docsage/internal/extract"
	"github.com/docsage/docsage/internal/service"
)

const (
	// MaxRetries is the maximum number of retries for a failed job
	MaxRetries = 3

	claimBatchSize = 10
)

// IngestionJobRepository defines the interface for ingestion job persistence
type IngestionJobRepository interface {
	// ClaimPending retrieves and claims pending ingestion jobs
	ClaimPending(ctx context.Context, limit int) ([]*domain.IngestionJob, error)

	// UpdateStatus updates the status of an ingestion job
	UpdateStatus(ctx context.Context, id string, status domain.IngestionJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, id string) error
}

// BlobStore fetches uploaded document objects.
type BlobStore interface {
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
}

// Ingestor defines the interface for ingesting extracted document text
type Ingestor interface {
	Ingest(ctx context.Context, documentText, documentName string) (*service.IngestResult, error)
}

// IngestionWorker processes ingestion jobs
type IngestionWorker struct {
	repo      IngestionJobRepository
	blobs     BlobStore
	extractor extract.Extractor
	ingestor  Ingestor
}

// NewIngestionWorker creates a new IngestionWorker instance
func NewIngestionWorker(repo IngestionJobRepository, blobs BlobStore, extractor extract.Extractor, ingestor Ingestor) *IngestionWorker {
	return &IngestionWorker{
		repo:      repo,
		blobs:     blobs,
		extractor: extractor,
		ingestor:  ingestor,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IngestionWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimPending(ctx, claimBatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending ingestion jobs", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *IngestionWorker) processJob(ctx context.Context, job *domain.IngestionJob) error {
	log.Printf("Processing job %s for document %s", job.ID, job.DocumentName)

	result, err := w.runIngestion(ctx, job)
	if err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("Job %s completed: %d chunks stored for document %s", job.ID, result.ChunksProcessed, job.DocumentName)
	return nil
}

func (w *IngestionWorker) runIngestion(ctx context.Context, job *domain.IngestionJob) (*service.IngestResult, error) {
	body, err := w.blobs.GetObject(ctx, job.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch object %s: %w", job.ObjectKey, err)
	}
	defer body.Close()

	text, err := w.extractor.Extract(ctx, body, job.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	result, err := w.ingestor.Ingest(ctx, text, job.DocumentName)
	if err != nil {
		return nil, fmt.Errorf("failed to ingest document: %w", err)
	}

	return result, nil
}

// handleJobFailure handles a failed job with retry logic
func (w *IngestionWorker) handleJobFailure(ctx context.Context, job *domain.IngestionJob, jobErr error) error {
	log.Printf("Job %s failed: %v", job.ID, jobErr)

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		log.Printf("Job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("Job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}
