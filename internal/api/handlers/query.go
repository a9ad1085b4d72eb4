package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/docsage/docsage/internal/api"
	"github.com/docsage/docsage/internal/domain"
	"github.com/docsage/docsage/internal/service"
)

type QueryService interface {
	Answer(ctx context.Context, input service.AnswerInput) (*service.AnswerOutput, error)
	Search(ctx context.Context, input service.SearchInput) ([]*domain.SearchResult, error)
}

type QueryHandler struct {
	svc QueryService
}

func NewQueryHandler(svc QueryService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

type QueryRequest struct {
	Query        string `json:"query"`
	DocumentName string `json:"document_name"`
}

type SourceResponse struct {
	Content      string  `json:"content"`
	DocumentName string  `json:"document_name"`
	ChunkIndex   int     `json:"chunk_index"`
	Similarity   float64 `json:"similarity"`
}

type QueryResponse struct {
	Answer     string           `json:"answer"`
	Sources    []SourceResponse `json:"sources"`
	Confidence float64          `json:"confidence"`
}

func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	output, err := h.svc.Answer(r.Context(), service.AnswerInput{
		Query:        req.Query,
		DocumentName: req.DocumentName,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	sources := make([]SourceResponse, len(output.Sources))
	for i, s := range output.Sources {
		sources[i] = SourceResponse{
			Content:      s.Content,
			DocumentName: s.DocumentName,
			ChunkIndex:   s.ChunkIndex,
			Similarity:   s.Similarity,
		}
	}

	api.Success(w, http.StatusOK, QueryResponse{
		Answer:     output.Answer,
		Sources:    sources,
		Confidence: output.Confidence,
	})
}

type SearchRequest struct {
	Query        string `json:"query"`
	DocumentName string `json:"document_name"`
	Limit        int    `json:"limit"`
}

type SearchResultResponse struct {
	Content      string  `json:"content"`
	DocumentName string  `json:"document_name"`
	ChunkIndex   int     `json:"chunk_index"`
	Similarity   float64 `json:"similarity"`
}

type SearchResponse struct {
	Results []SearchResultResponse `json:"results"`
}

func (h *QueryHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	results, err := h.svc.Search(r.Context(), service.SearchInput{
		Query:        req.Query,
		DocumentName: req.DocumentName,
		Limit:        req.Limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]SearchResultResponse, len(results))
	for i, res := range results {
		responses[i] = SearchResultResponse{
			Content:      res.Content,
			DocumentName: res.DocumentName,
			ChunkIndex:   res.ChunkIndex,
			Similarity:   res.Similarity,
		}
	}

	api.Success(w, http.StatusOK, SearchResponse{Results: responses})
}
