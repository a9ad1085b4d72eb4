//go:build e2e

package e2e

import (
	"context"
	"hash/fnv"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docsage/docsage/internal/api/handlers"
	"github.com/docsage/docsage/internal/extract"
	"github.com/docsage/docsage/internal/jobs"
	"github.com/docsage/docsage/internal/repository"
	"github.com/docsage/docsage/internal/server"
	"github.com/docsage/docsage/internal/service"
	"github.com/docsage/docsage/internal/storage"
	"github.com/docsage/docsage/internal/testutil"
)

const embeddingDims = 1536

// stubAI is a deterministic stand-in for the OpenAI backend. Embeddings are
// bag-of-words vectors, so texts sharing words produce high cosine similarity.
type stubAI struct{}

func (s *stubAI) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, embeddingDims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		v[h.Sum32()%embeddingDims]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v, nil
}

func (s *stubAI) Complete(ctx context.Context, systemPrompt, userMessage string, maxTokens int, temperature float32) (string, error) {
	if strings.Contains(systemPrompt, "Sample Query:") {
		return "Sample Query: What does the document cover?\nSample Answer: It covers the test material.", nil
	}
	return "The documents state the refund window is 30 days.", nil
}

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T         *testing.T
	Ctx       context.Context
	PostgresC *testutil.PostgresContainer
	RustFSC   *testutil.RustFSContainer
	Pool      *pgxpool.Pool
	Server    *httptest.Server
	S3Client  *storage.S3Client
	Worker    *jobs.Worker
}

// SetupE2EEnv creates a full E2E test environment with containers and server
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-uploads",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	ai := &stubAI{}

	chunkRepo := repository.NewChunkRepository(pool)
	exampleRepo := repository.NewExampleRepository(pool)
	queryLogRepo := repository.NewQueryLogRepository(pool)
	jobRepo := repository.NewIngestionJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	embeddingSvc := service.NewEmbeddingService(ai, nil)
	fewshotSvc := service.NewFewShotService(ai, exampleRepo, service.DefaultFewShotConfig(), nil)
	ingestSvc := service.NewIngestService(embeddingSvc, chunkRepo, fewshotSvc, service.ChunkConfig{
		ChunkSize: 200,
		Overlap:   40,
	}, service.BatchOptions{BatchSize: 5})
	querySvc := service.NewQueryService(ai, ai, chunkRepo, exampleRepo, queryLogRepo, service.DefaultQuerySettings())
	docSvc := service.NewDocumentService(chunkRepo, exampleRepo, queryLogRepo, txRunner)

	extractor := extract.NewAutoExtractor()

	documentHandler := handlers.NewDocumentHandler(docSvc, ingestSvc, s3Client, extractor, jobRepo)
	queryHandler := handlers.NewQueryHandler(querySvc)

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: documentHandler,
		QueryHandler:    queryHandler,
	})

	srv := httptest.NewServer(router)

	processor := jobs.NewIngestionWorker(jobRepo, s3Client, extractor, ingestSvc)
	worker := jobs.NewWorker(processor, 200*time.Millisecond)
	go worker.Start(ctx)

	env := &E2ETestEnv{
		T:         t,
		Ctx:       ctx,
		PostgresC: pgC,
		RustFSC:   s3C,
		Pool:      pool,
		Server:    srv,
		S3Client:  s3Client,
		Worker:    worker,
	}

	t.Cleanup(func() {
		worker.Stop()
		srv.Close()
		pool.Close()
		_ = s3C.Terminate(ctx)
		_ = pgC.Terminate(ctx)
	})

	return env
}
