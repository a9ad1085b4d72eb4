package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_Error(t *testing.T) {
	plain := NewDomainError(ErrCodeValidation, "field is required")
	assert.Equal(t, "[VALIDATION_ERROR] field is required", plain.Error())

	wrapped := NewDomainErrorWithCause(ErrCodeStorage, "insert failed", errors.New("connection reset"))
	assert.Equal(t, "[STORAGE_ERROR] insert failed: connection reset", wrapped.Error())
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewStorageError("insert failed", cause)

	assert.ErrorIs(t, err, cause)

	var domainErr *DomainError
	require.ErrorAs(t, error(err), &domainErr)
	assert.Equal(t, ErrCodeStorage, domainErr.Code)
}

func TestNewGenerationError(t *testing.T) {
	cause := errors.New("upstream 500")
	err := NewGenerationError("completion failed", cause)

	assert.Equal(t, ErrCodeGeneration, err.Code)
	assert.ErrorIs(t, err, cause)
}

func TestValidateIngestionJobStatus(t *testing.T) {
	for _, s := range []IngestionJobStatus{
		IngestionJobStatusPending,
		IngestionJobStatusProcessing,
		IngestionJobStatusCompleted,
		IngestionJobStatusFailed,
	} {
		assert.NoError(t, ValidateIngestionJobStatus(s))
	}

	assert.ErrorIs(t, ValidateIngestionJobStatus("archived"), ErrInvalidIngestionJobStatus)
	assert.ErrorIs(t, ValidateIngestionJobStatus(""), ErrInvalidIngestionJobStatus)
}
