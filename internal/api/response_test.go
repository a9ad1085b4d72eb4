package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsage/docsage/internal/domain"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, map[string]string{"answer": "42"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "42", body["answer"])
}

func TestJSON_NilData(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusNoContent, nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Body.String())
}

func TestSuccess_WrapsDataEnvelope(t *testing.T) {
	w := httptest.NewRecorder()

	Success(w, http.StatusCreated, map[string]int{"chunks_processed": 3})

	assert.Equal(t, http.StatusCreated, w.Code)

	var envelope SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 3, data["chunks_processed"])
}

func TestError_WrapsErrorEnvelope(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusBadRequest, "document name is required")

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var envelope ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "document name is required", envelope.Error)
}

func TestDomainErrorToHTTP(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, http.StatusOK},
		{"validation error", domain.ErrEmptyQuery, http.StatusBadRequest},
		{"not found error", domain.ErrDocumentNotFound, http.StatusNotFound},
		{"extraction error", domain.ErrNothingToProcess, http.StatusBadRequest},
		{"rate limited error", domain.ErrRateLimited, http.StatusTooManyRequests},
		{"storage error", domain.NewStorageError("insert chunk", assert.AnError), http.StatusInternalServerError},
		{"generation error", domain.NewGenerationError("complete", assert.AnError), http.StatusInternalServerError},
		{"internal error", domain.NewDomainError(domain.ErrCodeInternal, "internal"), http.StatusInternalServerError},
		{"unknown domain error", domain.NewDomainError("UNKNOWN", "unknown"), http.StatusInternalServerError},
		{"non-domain error", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DomainErrorToHTTP(tt.err))
		})
	}
}

func TestDomainErrorToHTTP_WrappedError(t *testing.T) {
	wrapped := domain.NewStorageError("delete document", domain.ErrDocumentNotFound)
	// A storage wrapper around a not-found sentinel still reports storage.
	assert.Equal(t, http.StatusInternalServerError, DomainErrorToHTTP(wrapped))
}

func TestHandleError(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, domain.ErrDocumentNotFound)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var envelope ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Contains(t, envelope.Error, "not found")
}
