package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docsage/docsage/internal/api"
	"github.com/docsage/docsage/internal/domain"
	"github.com/docsage/docsage/internal/service"
)

const uploadMemoryLimit = 32 << 20

type DocumentService interface {
	List(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error)
	Delete(ctx context.Context, documentName string) (*service.DeleteDocumentResult, error)
	GetStats(ctx context.Context) (*service.Stats, error)
}

type IngestService interface {
	Ingest(ctx context.Context, documentText, documentName string) (*service.IngestResult, error)
}

type BlobStore interface {
	PutObject(ctx context.Context, key string, contentType string, body io.Reader) error
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
}

type Extractor interface {
	Extract(ctx context.Context, r io.Reader, filename string) (string, error)
}

type IngestionJobCreator interface {
	Create(ctx context.Context, job *domain.IngestionJob) error
}

type DocumentHandler struct {
	docs      DocumentService
	ingest    IngestService
	blobs     BlobStore
	extractor Extractor
	jobs      IngestionJobCreator
}

func NewDocumentHandler(docs DocumentService, ingest IngestService, blobs BlobStore, extractor Extractor, jobs IngestionJobCreator) *DocumentHandler {
	return &DocumentHandler{
		docs:      docs,
		ingest:    ingest,
		blobs:     blobs,
		extractor: extractor,
		jobs:      jobs,
	}
}

type UploadResponse struct {
	JobID        string `json:"job_id"`
	DocumentName string `json:"document_name"`
	ObjectKey    string `json:"object_key"`
	Status       string `json:"status"`
}

// Upload accepts a multipart file, stores the raw bytes, and queues an
// ingestion job. The actual chunking and embedding happen asynchronously.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.blobs == nil || h.jobs == nil {
		api.Error(w, http.StatusNotImplemented, "uploads are not configured")
		return
	}

	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	documentName := r.FormValue("document_name")
	if documentName == "" {
		documentName = strings.TrimSuffix(header.Filename, path.Ext(header.Filename))
	}
	if documentName == "" {
		api.Error(w, http.StatusBadRequest, "document_name is required")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	jobID := uuid.NewString()
	objectKey := "uploads/" + jobID + path.Ext(header.Filename)

	if err := h.blobs.PutObject(r.Context(), objectKey, contentType, file); err != nil {
		api.HandleError(w, domain.NewStorageError("failed to store upload", err))
		return
	}

	job := &domain.IngestionJob{
		ID:           jobID,
		DocumentName: documentName,
		ObjectKey:    objectKey,
		ContentType:  contentType,
		Status:       domain.IngestionJobStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.jobs.Create(r.Context(), job); err != nil {
		api.HandleError(w, domain.NewStorageError("failed to queue ingestion job", err))
		return
	}

	api.Success(w, http.StatusAccepted, UploadResponse{
		JobID:        job.ID,
		DocumentName: job.DocumentName,
		ObjectKey:    job.ObjectKey,
		Status:       string(job.Status),
	})
}

type ProcessRequest struct {
	FileName     string `json:"file_name"`
	DocumentName string `json:"document_name"`
}

type ProcessResponse struct {
	DocumentName             string `json:"document_name"`
	ChunksProcessed          int    `json:"chunks_processed"`
	FewShotExamplesGenerated bool   `json:"few_shot_examples_generated"`
}

// Process ingests an already-uploaded object synchronously.
func (h *DocumentHandler) Process(w http.ResponseWriter, r *http.Request) {
	if h.blobs == nil {
		api.Error(w, http.StatusNotImplemented, "blob storage is not configured")
		return
	}

	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FileName == "" {
		api.Error(w, http.StatusBadRequest, "file_name is required")
		return
	}

	documentName := req.DocumentName
	if documentName == "" {
		documentName = strings.TrimSuffix(path.Base(req.FileName), path.Ext(req.FileName))
	}

	body, err := h.blobs.GetObject(r.Context(), req.FileName)
	if err != nil {
		api.HandleError(w, domain.NewStorageError("failed to fetch object", err))
		return
	}
	defer body.Close()

	text, err := h.extractor.Extract(r.Context(), body, req.FileName)
	if err != nil {
		api.HandleError(w, domain.NewDomainErrorWithCause(domain.ErrCodeExtraction, "failed to extract text", err))
		return
	}

	result, err := h.ingest.Ingest(r.Context(), text, documentName)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ProcessResponse{
		DocumentName:             documentName,
		ChunksProcessed:          result.ChunksProcessed,
		FewShotExamplesGenerated: result.FewShotExamplesGenerated,
	})
}

type DocumentResponse struct {
	Name       string `json:"name"`
	ChunkCount int    `json:"chunk_count"`
	CreatedAt  string `json:"created_at"`
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limitStr := r.URL.Query().Get("limit")
	limit := 20
	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	output, err := h.docs.List(r.Context(), service.ListDocumentsInput{
		Cursor: cursor,
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, len(output.Items))
	for i, d := range output.Items {
		responses[i] = &DocumentResponse{
			Name:       d.Name,
			ChunkCount: d.ChunkCount,
			CreatedAt:  d.CreatedAt.Format(time.RFC3339),
		}
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

type DeleteDocumentResponse struct {
	Name            string `json:"name"`
	DeletedChunks   int    `json:"deleted_chunks"`
	DeletedExamples bool   `json:"deleted_examples"`
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	result, err := h.docs.Delete(r.Context(), name)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DeleteDocumentResponse{
		Name:            name,
		DeletedChunks:   result.DeletedChunks,
		DeletedExamples: result.DeletedExamples,
	})
}

type StatsResponse struct {
	Documents   int `json:"documents"`
	Chunks      int `json:"chunks"`
	ExampleSets int `json:"example_sets"`
	Queries     int `json:"queries"`
}

func (h *DocumentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.docs.GetStats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, StatsResponse{
		Documents:   stats.Documents,
		Chunks:      stats.Chunks,
		ExampleSets: stats.ExampleSets,
		Queries:     stats.Queries,
	})
}
