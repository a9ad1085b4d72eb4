package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/docsage/docsage/internal/domain"
)

// MockChunkWriter mocks the insert/count side of the chunk store
type MockChunkWriter struct {
	mock.Mock

	mu       sync.Mutex
	inserted []*domain.Chunk
}

func (m *MockChunkWriter) InsertChunk(ctx context.Context, chunk *domain.Chunk) error {
	args := m.Called(ctx, chunk)
	if args.Error(0) == nil {
		m.mu.Lock()
		m.inserted = append(m.inserted, chunk)
		m.mu.Unlock()
	}
	return args.Error(0)
}

func (m *MockChunkWriter) CountByDocument(ctx context.Context, documentName string) (int, error) {
	args := m.Called(ctx, documentName)
	return args.Int(0), args.Error(1)
}

func (m *MockChunkWriter) insertedByIndex() map[int]*domain.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	byIndex := make(map[int]*domain.Chunk, len(m.inserted))
	for _, c := range m.inserted {
		byIndex[c.ChunkIndex] = c
	}
	return byIndex
}

// MockFewShotGenerator mocks the example generator
type MockFewShotGenerator struct {
	mock.Mock
}

func (m *MockFewShotGenerator) Generate(ctx context.Context, documentText, documentName string) (string, error) {
	args := m.Called(ctx, documentText, documentName)
	return args.String(0), args.Error(1)
}

type ingestServiceMocks struct {
	client  *MockEmbeddingClient
	chunks  *MockChunkWriter
	fewshot *MockFewShotGenerator
}

func newIngestService(chunkCfg ChunkConfig) (*IngestService, *ingestServiceMocks) {
	m := &ingestServiceMocks{
		client:  new(MockEmbeddingClient),
		chunks:  new(MockChunkWriter),
		fewshot: new(MockFewShotGenerator),
	}
	embedder := NewEmbeddingService(m.client, nil)
	return NewIngestService(embedder, m.chunks, m.fewshot, chunkCfg, BatchOptions{BatchSize: 5}), m
}

func TestIngestService_Ingest_MissingName(t *testing.T) {
	service, _ := newIngestService(ChunkConfig{ChunkSize: 4})

	result, err := service.Ingest(context.Background(), "some text", "")

	assert.ErrorIs(t, err, domain.ErrMissingDocumentName)
	assert.Nil(t, result)
}

func TestIngestService_Ingest_BlankText(t *testing.T) {
	service, _ := newIngestService(ChunkConfig{ChunkSize: 4})

	result, err := service.Ingest(context.Background(), "   \n ", "policy.txt")

	assert.ErrorIs(t, err, domain.ErrNothingToProcess)
	assert.Nil(t, result)
}

func TestIngestService_Ingest_AlreadyProcessed(t *testing.T) {
	service, m := newIngestService(ChunkConfig{ChunkSize: 4})

	m.chunks.On("CountByDocument", mock.Anything, "policy.txt").Return(7, nil)

	result, err := service.Ingest(context.Background(), "AAAABBBBCCCC", "policy.txt")

	require.NoError(t, err)
	assert.Equal(t, 7, result.ChunksProcessed)
	assert.True(t, result.FewShotExamplesGenerated)
	m.client.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
	m.chunks.AssertNotCalled(t, "InsertChunk", mock.Anything, mock.Anything)
	m.fewshot.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestService_Ingest_ChunksEmbedsAndStores(t *testing.T) {
	service, m := newIngestService(ChunkConfig{ChunkSize: 4})

	doc := "AAAABBBBCCCC"
	m.chunks.On("CountByDocument", mock.Anything, "policy.txt").Return(0, nil)
	m.client.On("GenerateEmbedding", mock.Anything, "AAAA").Return(testVector(1), nil)
	m.client.On("GenerateEmbedding", mock.Anything, "BBBB").Return(testVector(2), nil)
	m.client.On("GenerateEmbedding", mock.Anything, "CCCC").Return(testVector(3), nil)
	m.chunks.On("InsertChunk", mock.Anything, mock.Anything).Return(nil)
	m.fewshot.On("Generate", mock.Anything, doc, "policy.txt").Return(sampleExamples, nil)

	result, err := service.Ingest(context.Background(), doc, "policy.txt")

	require.NoError(t, err)
	assert.Equal(t, 3, result.ChunksProcessed)
	assert.True(t, result.FewShotExamplesGenerated)

	byIndex := m.chunks.insertedByIndex()
	require.Len(t, byIndex, 3)
	assert.Equal(t, "AAAA", byIndex[0].Content)
	assert.Equal(t, "BBBB", byIndex[1].Content)
	assert.Equal(t, "CCCC", byIndex[2].Content)
	for i := 0; i < 3; i++ {
		assert.Equal(t, "policy.txt", byIndex[i].DocumentName)
		assert.Equal(t, testVector(float32(i+1)), byIndex[i].Embedding)
		assert.False(t, byIndex[i].CreatedAt.IsZero())
	}
	m.fewshot.AssertExpectations(t)
}

func TestIngestService_Ingest_FewShotFailureIsNonFatal(t *testing.T) {
	service, m := newIngestService(ChunkConfig{ChunkSize: 100})

	m.chunks.On("CountByDocument", mock.Anything, "policy.txt").Return(0, nil)
	m.client.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testVector(1), nil)
	m.chunks.On("InsertChunk", mock.Anything, mock.Anything).Return(nil)
	m.fewshot.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("backend exploded"))

	result, err := service.Ingest(context.Background(), "short document", "policy.txt")

	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunksProcessed)
	assert.False(t, result.FewShotExamplesGenerated)
}

func TestIngestService_Ingest_RateLimitedBatchRetriesWithoutReinserting(t *testing.T) {
	service, m := newIngestService(ChunkConfig{ChunkSize: 4})

	chunkWithIndex := func(index int) interface{} {
		return mock.MatchedBy(func(c *domain.Chunk) bool { return c.ChunkIndex == index })
	}

	m.chunks.On("CountByDocument", mock.Anything, "policy.txt").Return(0, nil)
	m.client.On("GenerateEmbedding", mock.Anything, "AAAA").Return(testVector(1), nil)
	// The second chunk is rate limited once, so the whole batch runs again
	// after the first chunk's row already landed.
	m.client.On("GenerateEmbedding", mock.Anything, "BBBB").Return(nil, domain.ErrRateLimited).Once()
	m.client.On("GenerateEmbedding", mock.Anything, "BBBB").Return(testVector(2), nil)
	m.chunks.On("InsertChunk", mock.Anything, chunkWithIndex(0)).Return(nil).Once()
	m.chunks.On("InsertChunk", mock.Anything, chunkWithIndex(0)).Return(errors.New(`duplicate key value violates unique constraint "chunks_document_name_chunk_index_key"`))
	m.chunks.On("InsertChunk", mock.Anything, chunkWithIndex(1)).Return(nil)
	m.fewshot.On("Generate", mock.Anything, mock.Anything, "policy.txt").Return(sampleExamples, nil)

	result, err := service.Ingest(context.Background(), "AAAABBBB", "policy.txt")

	require.NoError(t, err)
	assert.Equal(t, 2, result.ChunksProcessed)

	byIndex := m.chunks.insertedByIndex()
	require.Len(t, byIndex, 2)
	assert.Equal(t, "AAAA", byIndex[0].Content)
	assert.Equal(t, "BBBB", byIndex[1].Content)
	m.chunks.mu.Lock()
	assert.Len(t, m.chunks.inserted, 2)
	m.chunks.mu.Unlock()
}

func TestIngestService_Ingest_CountError(t *testing.T) {
	service, m := newIngestService(ChunkConfig{ChunkSize: 4})

	m.chunks.On("CountByDocument", mock.Anything, "policy.txt").Return(0, errors.New("connection reset"))

	result, err := service.Ingest(context.Background(), "AAAABBBB", "policy.txt")

	require.Error(t, err)
	assert.Nil(t, result)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeStorage, domainErr.Code)
}

func TestIngestService_Ingest_InsertFailureAborts(t *testing.T) {
	service, m := newIngestService(ChunkConfig{ChunkSize: 100})

	m.chunks.On("CountByDocument", mock.Anything, "policy.txt").Return(0, nil)
	m.client.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(testVector(1), nil)
	m.chunks.On("InsertChunk", mock.Anything, mock.Anything).Return(errors.New("insert failed"))

	result, err := service.Ingest(context.Background(), "short document", "policy.txt")

	require.Error(t, err)
	assert.Nil(t, result)
	m.fewshot.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestService_Ingest_EmbeddingFailureAborts(t *testing.T) {
	service, m := newIngestService(ChunkConfig{ChunkSize: 100})

	m.chunks.On("CountByDocument", mock.Anything, "policy.txt").Return(0, nil)
	m.client.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, errors.New("backend exploded"))

	result, err := service.Ingest(context.Background(), "short document", "policy.txt")

	require.Error(t, err)
	assert.Nil(t, result)
	m.chunks.AssertNotCalled(t, "InsertChunk", mock.Anything, mock.Anything)
	m.fewshot.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}
