package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation  = "VALIDATION_ERROR"
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeExtraction  = "EXTRACTION_FAILED"
	ErrCodeRateLimited = "RATE_LIMITED"
	ErrCodeStorage     = "STORAGE_ERROR"
	ErrCodeGeneration  = "GENERATION_FAILED"
	ErrCodeInternal    = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrMissingDocumentName = NewDomainError(ErrCodeValidation, "document name is required")
	ErrEmptyChunkContent   = NewDomainError(ErrCodeValidation, "chunk content is empty")
	ErrMissingEmbedding    = NewDomainError(ErrCodeValidation, "chunk embedding is missing")
	ErrNegativeChunkIndex  = NewDomainError(ErrCodeValidation, "chunk index must not be negative")
	ErrEmptyQuery          = NewDomainError(ErrCodeValidation, "query is required")
)

// Not found errors
var (
	ErrDocumentNotFound     = NewDomainError(ErrCodeNotFound, "document not found")
	ErrIngestionJobNotFound = NewDomainError(ErrCodeNotFound, "ingestion job not found")
)

// Pipeline errors
var (
	// ErrNothingToProcess is returned when extraction yields no text. It fails
	// the ingestion request; it never crashes the pipeline.
	ErrNothingToProcess = NewDomainError(ErrCodeExtraction, "extracted text is empty, nothing to process")

	// ErrRateLimited marks a transient provider rate limit. Callers cool down
	// and repeat the same unit of work; rate-limited work is never skipped.
	ErrRateLimited = NewDomainError(ErrCodeRateLimited, "provider rate limit exceeded")
)

// NewStorageError wraps a backend persistence failure.
func NewStorageError(op string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeStorage, op, err)
}

// NewGenerationError wraps a completion-call failure.
func NewGenerationError(op string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeGeneration, op, err)
}
