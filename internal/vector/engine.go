// Package vector ranks knowledge-graph concepts by embedding similarity:
// semantic search over a text query, nearest neighbors of a stored concept,
// and discovery of implicit relations between unconnected concept pairs.
package vector

import (
	"context"
	"fmt"

	"github.com/paperforge/paperforge/internal/graph"
)

// Defaults applied when a caller passes zero values.
const (
	DefaultTopK             = 5
	DefaultSearchThreshold  = 0.5
	DefaultSuggestThreshold = 0.7
)

// Engine combines the graph service with an embedder to answer similarity
// queries. Comparison is O(n^2) over the user's concepts after O(n)
// embedding calls, which is fine for graphs of a few hundred concepts.
type Engine struct {
	graph    *graph.Service
	embedder *Embedder
}

// NewEngine creates an Engine over the given graph service and embedder.
func NewEngine(g *graph.Service, e *Embedder) *Engine {
	return &Engine{graph: g, embedder: e}
}

// SemanticSearch embeds the query text and returns the user's concepts
// ranked by similarity. An unembeddable query yields an empty result, not
// an error; the caller cannot do better than an empty list either way.
func (e *Engine) SemanticSearch(ctx context.Context, userID, query string, topK int, threshold float64) ([]ScoredConcept, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if threshold <= 0 {
		threshold = DefaultSearchThreshold
	}

	queryVec := e.embedder.Embed(ctx, query)
	if queryVec == nil {
		return []ScoredConcept{}, nil
	}

	concepts, err := e.graph.Store().AllConcepts(userID)
	if err != nil {
		return nil, fmt.Errorf("loading concepts: %w", err)
	}

	candidates := e.embedder.EmbedConcepts(ctx, concepts)
	ranked, err := Rank(queryVec, candidates, threshold, topK)
	if err != nil {
		return nil, fmt.Errorf("ranking concepts: %w", err)
	}
	return ranked, nil
}

// SimilarConcepts returns the concepts most similar to the given stored
// concept, excluding the concept itself. Unknown IDs surface
// graph.ErrNotFound.
func (e *Engine) SimilarConcepts(ctx context.Context, userID, conceptID string, topK int, threshold float64) ([]ScoredConcept, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if threshold <= 0 {
		threshold = DefaultSearchThreshold
	}

	origin, err := e.graph.Store().GetConcept(userID, conceptID)
	if err != nil {
		return nil, err
	}

	originVec := e.embedder.Embed(ctx, ConceptText(origin))
	if originVec == nil {
		return []ScoredConcept{}, nil
	}

	concepts, err := e.graph.Store().AllConcepts(userID)
	if err != nil {
		return nil, fmt.Errorf("loading concepts: %w", err)
	}
	others := concepts[:0:0]
	for _, c := range concepts {
		if c.ID != origin.ID {
			others = append(others, c)
		}
	}

	candidates := e.embedder.EmbedConcepts(ctx, others)
	ranked, err := Rank(originVec, candidates, threshold, topK)
	if err != nil {
		return nil, fmt.Errorf("ranking concepts: %w", err)
	}
	return ranked, nil
}

// SuggestRelations embeds every concept of the user and proposes
// semantically-related edges for similar pairs that no stored relation
// already connects.
func (e *Engine) SuggestRelations(ctx context.Context, userID string, threshold float64) ([]Suggestion, error) {
	if threshold <= 0 {
		threshold = DefaultSuggestThreshold
	}

	concepts, err := e.graph.Store().AllConcepts(userID)
	if err != nil {
		return nil, fmt.Errorf("loading concepts: %w", err)
	}
	relations, err := e.graph.Store().AllRelations(userID)
	if err != nil {
		return nil, fmt.Errorf("loading relations: %w", err)
	}

	candidates := e.embedder.EmbedConcepts(ctx, concepts)
	suggestions, err := InferRelations(candidates, relations, threshold)
	if err != nil {
		return nil, fmt.Errorf("comparing concepts: %w", err)
	}
	return suggestions, nil
}
