package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/docsage/docsage/internal/api/handlers"
	"github.com/docsage/docsage/internal/domain"
	"github.com/docsage/docsage/internal/service"
)

type MockQueryService struct {
	mock.Mock
}

func (m *MockQueryService) Answer(ctx context.Context, input service.AnswerInput) (*service.AnswerOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AnswerOutput), args.Error(1)
}

func (m *MockQueryService) Search(ctx context.Context, input service.SearchInput) ([]*domain.SearchResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SearchResult), args.Error(1)
}

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) List(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListDocumentsOutput), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, documentName string) (*service.DeleteDocumentResult, error) {
	args := m.Called(ctx, documentName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DeleteDocumentResult), args.Error(1)
}

func (m *MockDocumentService) GetStats(ctx context.Context) (*service.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Stats), args.Error(1)
}

func setupRouter() (http.Handler, *MockDocumentService, *MockQueryService) {
	docSvc := new(MockDocumentService)
	querySvc := new(MockQueryService)

	cfg := RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(docSvc, nil, nil, nil, nil),
		QueryHandler:    handlers.NewQueryHandler(querySvc),
	}

	router := NewRouter(cfg)
	return router, docSvc, querySvc
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_QueryRoute(t *testing.T) {
	router, _, querySvc := setupRouter()

	querySvc.On("Answer", mock.Anything, service.AnswerInput{Query: "hello"}).
		Return(&service.AnswerOutput{Answer: "hi", Sources: []service.Source{}, Confidence: 0}, nil)

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	querySvc.AssertExpectations(t)
}

func TestRouter_SearchRoute(t *testing.T) {
	router, _, querySvc := setupRouter()

	querySvc.On("Search", mock.Anything, service.SearchInput{Query: "topic"}).
		Return([]*domain.SearchResult{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"topic"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	querySvc.AssertExpectations(t)
}

func TestRouter_DocumentRoutes(t *testing.T) {
	router, docSvc, _ := setupRouter()

	docSvc.On("List", mock.Anything, service.ListDocumentsInput{Limit: 20}).
		Return(&service.ListDocumentsOutput{Items: []*domain.DocumentInfo{}}, nil)
	docSvc.On("Delete", mock.Anything, "handbook").
		Return(&service.DeleteDocumentResult{DeletedChunks: 2}, nil)
	docSvc.On("GetStats", mock.Anything).Return(&service.Stats{}, nil)

	listReq := httptest.NewRequest(http.MethodGet, "/documents", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, listReq)
	assert.Equal(t, http.StatusOK, w.Code)

	deleteReq := httptest.NewRequest(http.MethodDelete, "/documents/handbook", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, deleteReq)
	assert.Equal(t, http.StatusOK, w.Code)

	statsReq := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, statsReq)
	assert.Equal(t, http.StatusOK, w.Code)

	docSvc.AssertExpectations(t)
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_UploadNotConfigured(t *testing.T) {
	router, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}
