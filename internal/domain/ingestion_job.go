package domain

import "time"

// IngestionJobStatus represents the lifecycle state of a queued ingestion.
type IngestionJobStatus string

const (
	IngestionJobStatusPending    IngestionJobStatus = "pending"
	IngestionJobStatusProcessing IngestionJobStatus = "processing"
	IngestionJobStatusCompleted  IngestionJobStatus = "completed"
	IngestionJobStatusFailed     IngestionJobStatus = "failed"
)

// IngestionJob is a queued request to extract and ingest an uploaded file.
// ObjectKey points at the raw upload in blob storage.
type IngestionJob struct {
	ID           string
	DocumentName string
	ObjectKey    string
	ContentType  string
	Status       IngestionJobStatus
	Retries      int
	Error        string
	CreatedAt    time.Time
	ProcessedAt  *time.Time
}

// ValidateIngestionJobStatus reports whether s is a known status.
func ValidateIngestionJobStatus(s IngestionJobStatus) error {
	switch s {
	case IngestionJobStatusPending, IngestionJobStatusProcessing,
		IngestionJobStatusCompleted, IngestionJobStatusFailed:
		return nil
	}
	return ErrInvalidIngestionJobStatus
}

// ErrInvalidIngestionJobStatus is returned for unknown job statuses.
var ErrInvalidIngestionJobStatus = NewDomainError(ErrCodeValidation, "invalid ingestion job status")
