package vector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/paperforge/paperforge/internal/graph"
)

// Provider generates embeddings for text. *genai.Client satisfies this.
type Provider interface {
	EmbedContent(ctx context.Context, model, text string) ([]float32, error)
}

// Embedder wraps a Provider and memoizes results by exact text. The cache
// lives for the process lifetime and has no eviction; the same text always
// maps to the same vector, so concurrent duplicate inserts are harmless.
type Embedder struct {
	provider Provider
	model    string

	mu    sync.RWMutex
	cache map[string][]float32
}

// NewEmbedder creates an Embedder using the given Provider and model name.
func NewEmbedder(provider Provider, model string) *Embedder {
	return &Embedder{
		provider: provider,
		model:    model,
		cache:    make(map[string][]float32),
	}
}

// Embed returns the embedding vector for the given text, or nil when the
// provider is unavailable or fails. Callers degrade (skip ranking) rather
// than fail; retrying is the caller's choice, not this layer's.
func (e *Embedder) Embed(ctx context.Context, text string) []float32 {
	e.mu.RLock()
	vec, ok := e.cache[text]
	e.mu.RUnlock()
	if ok {
		return vec
	}

	if e.provider == nil {
		return nil
	}

	vec, err := e.provider.EmbedContent(ctx, e.model, text)
	if err != nil {
		slog.Debug("embedding unavailable", "error", err)
		return nil
	}

	e.mu.Lock()
	e.cache[text] = vec
	e.mu.Unlock()
	return vec
}

// CacheSize returns the number of memoized texts.
func (e *Embedder) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

// ConceptText builds the embedding input for a concept: name, alternate
// names, type, and definition concatenated into one string to enrich the
// signal.
func ConceptText(c graph.Concept) string {
	name := c.NameJa
	if name == "" {
		name = c.Name
	}
	definition := c.DefinitionJa
	if definition == "" {
		definition = c.Definition
	}
	conceptType := c.ConceptType
	if conceptType == "" {
		conceptType = graph.TypeConcept
	}

	parts := []string{fmt.Sprintf("Concept: %s", name)}
	if c.NameEn != "" && c.NameEn != name {
		parts = append(parts, fmt.Sprintf("(%s)", c.NameEn))
	}
	parts = append(parts,
		fmt.Sprintf("\nType: %s", conceptType),
		fmt.Sprintf("\nDefinition: %s", definition),
	)
	return strings.Join(parts, " ")
}

// Candidate pairs a concept with its (possibly nil) embedding.
type Candidate struct {
	Concept graph.Concept
	Vector  []float32
}

// EmbedConcepts embeds every concept with bounded concurrency and returns
// candidates in input order. Concepts that cannot be embedded carry a nil
// vector; ranking filters them out later.
func (e *Embedder) EmbedConcepts(ctx context.Context, concepts []graph.Concept) []Candidate {
	candidates := make([]Candidate, len(concepts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the provider.

	for i, c := range concepts {
		i, c := i, c
		g.Go(func() error {
			candidates[i] = Candidate{Concept: c, Vector: e.Embed(gCtx, ConceptText(c))}
			return nil
		})
	}

	// Workers never return errors; Wait only joins them.
	_ = g.Wait()
	return candidates
}
