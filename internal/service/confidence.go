package service

import (
	"math"

	"github.com/docsage/docsage/internal/domain"
)

const (
	similarityWeight = 0.5
	coverageWeight   = 0.3
	richnessWeight   = 0.2

	// coverageTarget is the chunk count at which the source-count term
	// saturates; richnessTarget does the same for mean chunk length.
	coverageTarget = 5
	richnessTarget = 1000

	// defaultSimilarity stands in for results that carry no score.
	defaultSimilarity = 0.5
)

// ConfidenceScore computes the heuristic answer confidence over the context
// chunks that were actually sent to the model. It is a weighted average of
// mean similarity, source-count adequacy, and content richness, rounded to
// two decimals. No sources means zero confidence.
func ConfidenceScore(used []*domain.SearchResult) float64 {
	if len(used) == 0 {
		return 0
	}

	var simSum, lenSum float64
	for _, r := range used {
		sim := r.Similarity
		if sim <= 0 {
			sim = defaultSimilarity
		}
		simSum += sim
		lenSum += float64(len(r.Content))
	}

	meanSim := simSum / float64(len(used))
	coverage := math.Min(float64(len(used))/coverageTarget, 1)
	richness := math.Min(lenSum/float64(len(used))/richnessTarget, 1)

	score := similarityWeight*meanSim + coverageWeight*coverage + richnessWeight*richness
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	return math.Round(score*100) / 100
}
