package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/docsage/docsage/internal/domain"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// RateLimitClassifier reports whether an error is a transient provider
// rate limit. Rate-limited work is retried after a cooldown, never skipped.
type RateLimitClassifier func(error) bool

// BatchOptions control pacing and failure policy for EmbedBatch.
type BatchOptions struct {
	BatchSize   int
	Delay       time.Duration
	Cooldown    time.Duration
	MaxAttempts int

	// Strict propagates the first non-rate-limit batch failure. When false
	// a failed batch is logged and skipped and its vectors stay nil.
	Strict bool

	// OnResult, when set, runs in the same fan-out goroutine right after a
	// text is embedded. The ingestion path uses it to insert the chunk while
	// the rest of the batch is still in flight. An OnResult error counts as
	// a batch failure.
	OnResult func(ctx context.Context, index int, embedding []float32) error
}

// EmbeddingService wraps an embedding backend with batched, rate-limited
// access. The backend handle is constructed once at startup and reused for
// the lifetime of the process.
type EmbeddingService struct {
	client      EmbeddingClient
	isRateLimit RateLimitClassifier
}

func NewEmbeddingService(client EmbeddingClient, isRateLimit RateLimitClassifier) *EmbeddingService {
	if isRateLimit == nil {
		isRateLimit = func(err error) bool {
			return errors.Is(err, domain.ErrRateLimited)
		}
	}
	return &EmbeddingService{
		client:      client,
		isRateLimit: isRateLimit,
	}
}

// Embed generates the embedding for a single text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.client.GenerateEmbedding(ctx, text)
}

// EmbedBatch embeds texts in fixed-size batches. Texts within one batch are
// embedded concurrently; batches run strictly sequentially with a delay
// between them (no delay before the first batch). A rate-limited batch is
// retried whole after a cooldown, up to MaxAttempts. The returned slice has
// one entry per input text; in non-strict mode entries of failed batches are
// nil.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string, opts BatchOptions) ([][]float32, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}

	results := make([][]float32, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	// A burst-1 limiter paces batches: the first reservation is immediate,
	// every following one waits out the configured delay.
	limiter := rate.NewLimiter(rate.Every(opts.Delay), 1)
	if opts.Delay <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}

	for start := 0; start < len(texts); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		if err := limiter.Wait(ctx); err != nil {
			return results, err
		}

		if err := s.embedBatchWithRetry(ctx, texts, results, start, end, opts); err != nil {
			if opts.Strict {
				return results, err
			}
			log.Printf("embedding: batch %d-%d failed, skipping: %v", start, end-1, err)
		}
	}

	return results, nil
}

// embedBatchWithRetry repeats one batch until it succeeds, the attempt budget
// runs out, or a non-rate-limit error occurs.
func (s *EmbeddingService) embedBatchWithRetry(ctx context.Context, texts []string, results [][]float32, start, end int, opts BatchOptions) error {
	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err := s.embedBatchOnce(ctx, texts, results, start, end, opts)
		if err == nil {
			return nil
		}
		lastErr = err

		if !s.isRateLimit(err) {
			return err
		}

		log.Printf("embedding: rate limited on batch %d-%d (attempt %d/%d), cooling down %s", start, end-1, attempt, opts.MaxAttempts, opts.Cooldown)
		if err := sleepContext(ctx, opts.Cooldown); err != nil {
			return err
		}
	}
	return fmt.Errorf("batch %d-%d still rate limited after %d attempts: %w", start, end-1, opts.MaxAttempts, lastErr)
}

func (s *EmbeddingService) embedBatchOnce(ctx context.Context, texts []string, results [][]float32, start, end int, opts BatchOptions) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := start; i < end; i++ {
		g.Go(func() error {
			embedding, err := s.client.GenerateEmbedding(gctx, texts[i])
			if err != nil {
				return err
			}
			results[i] = embedding
			if opts.OnResult != nil {
				return opts.OnResult(gctx, i, embedding)
			}
			return nil
		})
	}
	return g.Wait()
}

// sleepContext sleeps for d unless the context ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
