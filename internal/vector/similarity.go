package vector

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paperforge/paperforge/internal/graph"
)

var (
	// ErrEmptyVector is returned when a similarity input has no components.
	ErrEmptyVector = errors.New("empty vector")
	// ErrDimensionMismatch is returned when the two vectors differ in length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Cosine computes the cosine similarity of two vectors. Two zero vectors
// compare as 0 rather than NaN.
func Cosine(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrEmptyVector
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// ScoredConcept is a concept annotated with its similarity to a query.
type ScoredConcept struct {
	Concept    graph.Concept `json:"concept"`
	Similarity float64       `json:"similarity"`
}

// Rank scores candidates against the query vector, keeps those at or above
// threshold, and returns up to topK ordered by descending similarity. Ties
// preserve candidate order. Candidates with empty vectors (unembeddable
// concepts) are skipped; a dimension mismatch means the cache holds vectors
// from a different embedding model and is an error.
func Rank(query []float32, candidates []Candidate, threshold float64, topK int) ([]ScoredConcept, error) {
	scored := make([]ScoredConcept, 0, len(candidates))
	for _, cand := range candidates {
		if len(cand.Vector) == 0 {
			continue
		}
		sim, err := Cosine(query, cand.Vector)
		if err != nil {
			return nil, fmt.Errorf("scoring %q: %w", cand.Concept.Name, err)
		}
		if sim >= threshold {
			scored = append(scored, ScoredConcept{Concept: cand.Concept, Similarity: sim})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Suggestion is a candidate implicit relation between two concepts whose
// embeddings are similar but which no stored relation connects.
type Suggestion struct {
	SourceID     string  `json:"source_id"`
	Source       string  `json:"source"`
	TargetID     string  `json:"target_id"`
	Target       string  `json:"target"`
	RelationType string  `json:"relation_type"`
	Confidence   float64 `json:"confidence"`
	Suggested    bool    `json:"suggested"`
}

// InferRelations compares every unordered concept pair once and suggests a
// semantically-related edge for pairs at or above threshold that have no
// existing relation in either direction. Results are ordered by descending
// confidence. Unembeddable concepts are skipped; mismatched dimensions are
// an error, as in Rank.
func InferRelations(candidates []Candidate, existing []graph.Relation, threshold float64) ([]Suggestion, error) {
	connected := make(map[[2]string]bool, len(existing)*2)
	for _, r := range existing {
		connected[[2]string{r.Source, r.Target}] = true
		connected[[2]string{r.Target, r.Source}] = true
	}

	var suggestions []Suggestion
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			a, b := candidates[i], candidates[j]
			if len(a.Vector) == 0 || len(b.Vector) == 0 {
				continue
			}
			if connected[[2]string{a.Concept.Name, b.Concept.Name}] {
				continue
			}
			sim, err := Cosine(a.Vector, b.Vector)
			if err != nil {
				return nil, fmt.Errorf("comparing %q and %q: %w", a.Concept.Name, b.Concept.Name, err)
			}
			if sim < threshold {
				continue
			}
			suggestions = append(suggestions, Suggestion{
				SourceID:     a.Concept.ID,
				Source:       a.Concept.Name,
				TargetID:     b.Concept.ID,
				Target:       b.Concept.Name,
				RelationType: graph.RelationSemantic,
				Confidence:   math.Round(sim*1000) / 1000,
				Suggested:    true,
			})
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	return suggestions, nil
}
