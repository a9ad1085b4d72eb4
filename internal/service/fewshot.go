package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/docsage/docsage/internal/domain"
)

// CompletionClient defines the interface for language-model completions
type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt, userMessage string, maxTokens int, temperature float32) (string, error)
}

// ExampleRepositoryInterface defines the repository interface for the
// few-shot example cache
type ExampleRepositoryInterface interface {
	Get(ctx context.Context, documentName string) (string, bool, error)
	Put(ctx context.Context, documentName, examples string) error
}

const fewShotSystemPrompt = `You generate realistic sample questions and answers from a document so users know what they can ask.
Produce 3 to 5 question/answer pairs grounded strictly in the supplied text.
Cover a spread of: definitions, procedures, requirements, limits, timelines, eligibility, costs, and conditional scenarios, as far as the text supports them.
Answers must be accurate and specific; keep any numbers, dates, and percentages exactly as written.
Use exactly this format for every pair, separated by blank lines:

Sample Query: <question a real user would ask>
Sample Answer: <answer drawn from the text>`

// FewShotConfig carries the tunables for example generation.
type FewShotConfig struct {
	TokenBudget     int
	MaxAnswerTokens int
	RequestDelay    time.Duration
	Cooldown        time.Duration
	MaxAttempts     int
	Temperature     float32
}

// DefaultFewShotConfig provides the deployment defaults.
func DefaultFewShotConfig() FewShotConfig {
	return FewShotConfig{
		TokenBudget:     40000,
		MaxAnswerTokens: 900,
		RequestDelay:    2 * time.Second,
		Cooldown:        20 * time.Second,
		MaxAttempts:     3,
		Temperature:     0.4,
	}
}

// FewShotService generates cached question/answer exemplars per document.
type FewShotService struct {
	completer   CompletionClient
	examples    ExampleRepositoryInterface
	cfg         FewShotConfig
	isRateLimit RateLimitClassifier
}

func NewFewShotService(completer CompletionClient, examples ExampleRepositoryInterface, cfg FewShotConfig, isRateLimit RateLimitClassifier) *FewShotService {
	if cfg.TokenBudget <= 0 {
		cfg = DefaultFewShotConfig()
	}
	if isRateLimit == nil {
		isRateLimit = func(err error) bool {
			return errors.Is(err, domain.ErrRateLimited)
		}
	}
	return &FewShotService{
		completer:   completer,
		examples:    examples,
		cfg:         cfg,
		isRateLimit: isRateLimit,
	}
}

// Generate returns the few-shot example set for a document, producing and
// caching it on first use. Documents over the token budget are generated in
// parts; a failed part is skipped, so a partial example set is possible.
func (s *FewShotService) Generate(ctx context.Context, documentText, documentName string) (string, error) {
	cached, ok, err := s.examples.Get(ctx, documentName)
	if err != nil {
		log.Printf("fewshot: cache lookup failed for %q, regenerating: %v", documentName, err)
	}
	if ok {
		return cached, nil
	}

	var text string
	if EstimateTokens(documentText) <= s.cfg.TokenBudget {
		text, err = s.generateWhole(ctx, documentText)
		if err != nil {
			return "", domain.NewGenerationError("few-shot example generation failed", err)
		}
	} else {
		text = s.generateChunked(ctx, documentText, documentName)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.NewGenerationError("few-shot example generation produced no output", nil)
	}

	// Cache write is best effort: the generated set is still returned to the
	// caller when persistence fails.
	if err := s.examples.Put(ctx, documentName, text); err != nil {
		log.Printf("fewshot: failed to cache examples for %q: %v", documentName, err)
	}

	return text, nil
}

func (s *FewShotService) generateWhole(ctx context.Context, documentText string) (string, error) {
	return s.completer.Complete(ctx, fewShotSystemPrompt, documentText, s.cfg.MaxAnswerTokens, s.cfg.Temperature)
}

// generateChunked splits the document under the token budget and generates
// per part, pacing requests and retrying rate-limited parts in place.
func (s *FewShotService) generateChunked(ctx context.Context, documentText, documentName string) string {
	parts := SplitByTokenBudget(documentText, s.cfg.TokenBudget)
	limiter := rate.NewLimiter(rate.Every(s.cfg.RequestDelay), 1)
	if s.cfg.RequestDelay <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}

	outputs := make([]string, 0, len(parts))
	for i, part := range parts {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		// The model only sees a slice of the document; the label keeps it
		// from inventing a conclusion for a partial view.
		message := fmt.Sprintf("This is part %d of %d of the document %q.\n\n%s", i+1, len(parts), documentName, part)

		out, err := s.completeWithRetry(ctx, message)
		if err != nil {
			log.Printf("fewshot: part %d/%d of %q failed, skipping: %v", i+1, len(parts), documentName, err)
			continue
		}
		if strings.TrimSpace(out) != "" {
			outputs = append(outputs, strings.TrimSpace(out))
		}
	}

	return strings.Join(outputs, "\n\n")
}

func (s *FewShotService) completeWithRetry(ctx context.Context, message string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		out, err := s.completer.Complete(ctx, fewShotSystemPrompt, message, s.cfg.MaxAnswerTokens, s.cfg.Temperature)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !s.isRateLimit(err) {
			return "", err
		}
		if err := sleepContext(ctx, s.cfg.Cooldown); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("still rate limited after %d attempts: %w", s.cfg.MaxAttempts, lastErr)
}
