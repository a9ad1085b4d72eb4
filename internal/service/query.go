package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/docsage/docsage/internal/domain"
	"github.com/docsage/docsage/internal/telemetry"
)

// Similarity-search profiles. Thresholds and candidate counts are policy of
// this service, not of the store: the unfiltered answer path searches broadly
// with few candidates, the document-filtered path asks for more candidates,
// and the discovery search endpoint sits in between.
const (
	broadSearchThreshold = 0.2
	broadSearchLimit     = 5

	filteredSearchThreshold = 0.3
	filteredSearchLimit     = 8

	discoverySearchThreshold = 0.3
	discoverySearchLimit     = 10
)

const (
	answerTemperature = 0.2

	fallbackAnswer  = "I was unable to generate an answer for this question. Please try rephrasing it."
	noContextAnswer = "I could not find any relevant context for this question. The ingested documents may not cover this topic."

	exampleTruncationMarker = "\n\n[examples truncated to fit the token budget]"
)

const answerGuidelines = `You answer questions strictly from the supplied context.
Rules:
- Use only the context below; never rely on outside knowledge.
- If the context does not contain the answer, say so explicitly.
- Be concise and direct.
- Preserve numbers, dates, and percentages exactly as they appear.
- When several sources cover the question, synthesize them into one answer.`

// SearchRepositoryInterface defines the similarity-search capability of the
// vector store. A non-empty documentName is pushed into the search predicate.
type SearchRepositoryInterface interface {
	Search(ctx context.Context, embedding []float32, threshold float64, limit int, documentName string) ([]*domain.SearchResult, error)
}

// ExampleReader is the cache-lookup side of the few-shot store.
type ExampleReader interface {
	Get(ctx context.Context, documentName string) (string, bool, error)
}

// QueryLogEntry records one answered query for evaluation.
type QueryLogEntry struct {
	Query        string
	DocumentName string
	ResultCount  int
	Confidence   float64
	DurationMs   int64
}

// QueryLogRepositoryInterface persists query logs, best effort.
type QueryLogRepositoryInterface interface {
	Create(ctx context.Context, entry QueryLogEntry) (string, error)
}

// QuerySettings carries the token budgets for context assembly.
type QuerySettings struct {
	ContextTokenBudget  int
	ExampleTokenBudget  int
	RequestTokenCeiling int
	FallbackTokenBudget int
	AnswerMaxTokens     int
	SourcePreviewChars  int
	MinUsefulTailTokens int
}

// DefaultQuerySettings provides the deployment defaults.
func DefaultQuerySettings() QuerySettings {
	return QuerySettings{
		ContextTokenBudget:  6000,
		ExampleTokenBudget:  1500,
		RequestTokenCeiling: 8000,
		FallbackTokenBudget: 3000,
		AnswerMaxTokens:     700,
		SourcePreviewChars:  200,
		MinUsefulTailTokens: 50,
	}
}

// AnswerInput is a natural-language question, optionally pinned to one document.
type AnswerInput struct {
	Query        string
	DocumentName string
}

// Source is one context chunk cited by an answer. Content is a preview, not
// the full chunk.
type Source struct {
	Content      string
	DocumentName string
	ChunkIndex   int
	Similarity   float64
}

// AnswerOutput is the result of one answered question.
type AnswerOutput struct {
	Answer     string
	Sources    []Source
	Confidence float64
}

// SearchInput drives the discovery search endpoint.
type SearchInput struct {
	Query        string
	DocumentName string
	Limit        int
}

// QueryService embeds a query, retrieves context, budgets it, and asks the
// completion backend for an answer.
type QueryService struct {
	embedder  EmbeddingClient
	completer CompletionClient
	chunks    SearchRepositoryInterface
	examples  ExampleReader
	queryLog  QueryLogRepositoryInterface
	settings  QuerySettings
}

func NewQueryService(
	embedder EmbeddingClient,
	completer CompletionClient,
	chunks SearchRepositoryInterface,
	examples ExampleReader,
	queryLog QueryLogRepositoryInterface,
	settings QuerySettings,
) *QueryService {
	if settings.ContextTokenBudget <= 0 {
		settings = DefaultQuerySettings()
	}
	return &QueryService{
		embedder:  embedder,
		completer: completer,
		chunks:    chunks,
		examples:  examples,
		queryLog:  queryLog,
		settings:  settings,
	}
}

// Answer runs the retrieval-augmented query pipeline.
func (s *QueryService) Answer(ctx context.Context, input AnswerInput) (*AnswerOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "QueryService.Answer", telemetry.SpanAttributes{
		Document:  input.DocumentName,
		Operation: "answer",
	})
	defer span.End()

	started := time.Now()

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	threshold, limit := broadSearchThreshold, broadSearchLimit
	if input.DocumentName != "" {
		threshold, limit = filteredSearchThreshold, filteredSearchLimit
	}

	results, err := s.chunks.Search(ctx, embedding, threshold, limit, input.DocumentName)
	if err != nil {
		return nil, domain.NewStorageError("similarity search failed", err)
	}

	// Retrieval emptiness is not an error: the caller still gets an answer
	// object, just one that says there was nothing to work from.
	if len(results) == 0 {
		out := &AnswerOutput{
			Answer:     noContextAnswer,
			Sources:    []Source{},
			Confidence: 0,
		}
		s.recordQuery(ctx, input, 0, 0, started)
		return out, nil
	}

	examples := s.fetchExamples(ctx, input.DocumentName)
	systemPrompt := buildSystemPrompt(examples)

	used := assembleContext(results, s.settings.ContextTokenBudget, s.settings.MinUsefulTailTokens)
	userMessage := buildUserMessage(query, used)

	// One bounded fallback pass: if the assembled request would blow past the
	// hard ceiling, re-trim against the smaller budget and rebuild.
	if EstimateTokens(systemPrompt)+EstimateTokens(userMessage) > s.settings.RequestTokenCeiling {
		used = assembleContext(results, s.settings.FallbackTokenBudget, s.settings.MinUsefulTailTokens)
		userMessage = buildUserMessage(query, used)
	}

	answer, err := s.completer.Complete(ctx, systemPrompt, userMessage, s.settings.AnswerMaxTokens, answerTemperature)
	if err != nil {
		genErr := domain.NewGenerationError("answer generation failed", err)
		span.SetError(genErr)
		return nil, genErr
	}
	if strings.TrimSpace(answer) == "" {
		answer = fallbackAnswer
	}

	confidence := ConfidenceScore(used)

	sources := make([]Source, 0, len(used))
	for _, r := range used {
		sources = append(sources, Source{
			Content:      previewContent(r.Content, s.settings.SourcePreviewChars),
			DocumentName: r.DocumentName,
			ChunkIndex:   r.ChunkIndex,
			Similarity:   r.Similarity,
		})
	}

	s.recordQuery(ctx, input, len(used), confidence, started)

	return &AnswerOutput{
		Answer:     answer,
		Sources:    sources,
		Confidence: confidence,
	}, nil
}

// Search is the discovery endpoint: ranked raw chunks, no generation.
func (s *QueryService) Search(ctx context.Context, input SearchInput) ([]*domain.SearchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "QueryService.Search", telemetry.SpanAttributes{
		Document:  input.DocumentName,
		Operation: "search",
	})
	defer span.End()

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	limit := input.Limit
	if limit <= 0 {
		limit = discoverySearchLimit
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.chunks.Search(ctx, embedding, discoverySearchThreshold, limit, input.DocumentName)
	if err != nil {
		return nil, domain.NewStorageError("similarity search failed", err)
	}
	return results, nil
}

// fetchExamples returns the cached few-shot examples for the document,
// trimmed to their own budget. No document filter or cache miss yields "".
func (s *QueryService) fetchExamples(ctx context.Context, documentName string) string {
	if documentName == "" || s.examples == nil {
		return ""
	}

	examples, ok, err := s.examples.Get(ctx, documentName)
	if err != nil {
		log.Printf("query: example lookup failed for %q: %v", documentName, err)
		return ""
	}
	if !ok {
		return ""
	}

	if EstimateTokens(examples) > s.settings.ExampleTokenBudget {
		examples = TruncateToTokens(examples, s.settings.ExampleTokenBudget) + exampleTruncationMarker
	}
	return examples
}

func (s *QueryService) recordQuery(ctx context.Context, input AnswerInput, resultCount int, confidence float64, started time.Time) {
	if s.queryLog == nil {
		return
	}
	_, err := s.queryLog.Create(ctx, QueryLogEntry{
		Query:        input.Query,
		DocumentName: input.DocumentName,
		ResultCount:  resultCount,
		Confidence:   confidence,
		DurationMs:   time.Since(started).Milliseconds(),
	})
	if err != nil {
		log.Printf("query: failed to record query log: %v", err)
	}
}

// assembleContext greedily accumulates results under the token budget. When
// the next item would overflow, a truncated prefix is kept only if the
// remaining budget is still a useful size, and accumulation stops either way.
func assembleContext(results []*domain.SearchResult, budgetTokens, minUsefulTokens int) []*domain.SearchResult {
	used := make([]*domain.SearchResult, 0, len(results))
	remaining := budgetTokens

	for _, r := range results {
		cost := EstimateTokens(r.Content)
		if cost <= remaining {
			used = append(used, r)
			remaining -= cost
			continue
		}

		if remaining >= minUsefulTokens {
			trimmed := *r
			trimmed.Content = TruncateToTokens(r.Content, remaining)
			used = append(used, &trimmed)
		}
		break
	}

	return used
}

func buildSystemPrompt(examples string) string {
	if examples == "" {
		return answerGuidelines
	}
	return fmt.Sprintf("%s\n\nExample questions and answers for this document:\n\n%s", answerGuidelines, examples)
}

func buildUserMessage(query string, used []*domain.SearchResult) string {
	var b strings.Builder
	b.WriteString("Context:\n\n")
	for i, r := range used {
		fmt.Fprintf(&b, "Source %d (%s, chunk %d):\n%s\n\n", i+1, r.DocumentName, r.ChunkIndex, r.Content)
	}
	fmt.Fprintf(&b, "Question: %s", query)
	return b.String()
}

func previewContent(content string, maxChars int) string {
	if maxChars <= 0 || len(content) <= maxChars {
		return content
	}
	return content[:maxChars] + "..."
}
