package vector

import (
	"errors"
	"math"
	"testing"

	"github.com/paperforge/paperforge/internal/graph"
)

func TestCosine_SelfSimilarity(t *testing.T) {
	vecs := [][]float32{
		{1},
		{0.5, -0.25, 3},
		{1e-3, 2e-3, -5e-3, 4},
	}
	for _, v := range vecs {
		sim, err := Cosine(v, v)
		if err != nil {
			t.Fatalf("Cosine(v, v): %v", err)
		}
		if math.Abs(sim-1.0) > 1e-9 {
			t.Errorf("Cosine(v, v) = %v, want 1.0", sim)
		}
	}
}

func TestCosine_Orthogonal(t *testing.T) {
	sim, err := Cosine([]float32{1, 0}, []float32{0, 1})
	if err != nil {
		t.Fatalf("Cosine: %v", err)
	}
	if sim != 0 {
		t.Errorf("orthogonal similarity = %v, want 0", sim)
	}

	sim, err = Cosine([]float32{1, 0}, []float32{-1, 0})
	if err != nil {
		t.Fatalf("Cosine: %v", err)
	}
	if math.Abs(sim+1.0) > 1e-9 {
		t.Errorf("opposite similarity = %v, want -1", sim)
	}
}

func TestCosine_DomainErrors(t *testing.T) {
	if _, err := Cosine(nil, []float32{1}); !errors.Is(err, ErrEmptyVector) {
		t.Errorf("empty a: err = %v, want ErrEmptyVector", err)
	}
	if _, err := Cosine([]float32{1}, nil); !errors.Is(err, ErrEmptyVector) {
		t.Errorf("empty b: err = %v, want ErrEmptyVector", err)
	}
	if _, err := Cosine([]float32{1, 2}, []float32{1}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("mismatched dims: err = %v, want ErrDimensionMismatch", err)
	}
}

func TestCosine_ZeroVector(t *testing.T) {
	sim, err := Cosine([]float32{0, 0}, []float32{1, 2})
	if err != nil {
		t.Fatalf("Cosine: %v", err)
	}
	if sim != 0 {
		t.Errorf("zero-magnitude similarity = %v, want 0", sim)
	}
}

func TestRank(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{
		{Concept: graph.Concept{ID: "far"}, Vector: []float32{0, 1}},     // sim 0
		{Concept: graph.Concept{ID: "close"}, Vector: []float32{1, 0.1}}, // sim ~0.995
		{Concept: graph.Concept{ID: "exact"}, Vector: []float32{2, 0}},   // sim 1
		{Concept: graph.Concept{ID: "skipped"}, Vector: nil},             // unembeddable
		{Concept: graph.Concept{ID: "mid"}, Vector: []float32{1, 1}},     // sim ~0.707
	}

	got, err := Rank(query, candidates, 0.5, 10)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3: %+v", len(got), got)
	}
	wantOrder := []string{"exact", "close", "mid"}
	for i, id := range wantOrder {
		if got[i].Concept.ID != id {
			t.Errorf("result[%d] = %s, want %s", i, got[i].Concept.ID, id)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Similarity > got[i-1].Similarity {
			t.Errorf("results not sorted descending at %d", i)
		}
	}
	for _, r := range got {
		if r.Similarity < 0.5 {
			t.Errorf("result %s below threshold: %v", r.Concept.ID, r.Similarity)
		}
	}

	if got, err := Rank(query, candidates, 0.5, 2); err != nil || len(got) != 2 {
		t.Errorf("topK not applied: got %d, err %v", len(got), err)
	}
}

func TestRank_DimensionMismatch(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{
		{Concept: graph.Concept{ID: "ok", Name: "ok"}, Vector: []float32{1, 0}},
		{Concept: graph.Concept{ID: "bad", Name: "bad"}, Vector: []float32{1, 0, 0}},
	}

	if _, err := Rank(query, candidates, 0, 10); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestRank_StableTies(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{
		{Concept: graph.Concept{ID: "first"}, Vector: []float32{1, 0}},
		{Concept: graph.Concept{ID: "second"}, Vector: []float32{3, 0}},
	}

	got, err := Rank(query, candidates, 0, 10)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(got) != 2 || got[0].Concept.ID != "first" || got[1].Concept.ID != "second" {
		t.Errorf("tie order not preserved: %+v", got)
	}
}

func TestInferRelations(t *testing.T) {
	candidates := []Candidate{
		{Concept: graph.Concept{ID: "1", Name: "A"}, Vector: []float32{1, 0}},
		{Concept: graph.Concept{ID: "2", Name: "B"}, Vector: []float32{1, 0.05}},
		{Concept: graph.Concept{ID: "3", Name: "C"}, Vector: []float32{0, 1}},
	}

	got, err := InferRelations(candidates, nil, 0.9)
	if err != nil {
		t.Fatalf("InferRelations: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d suggestions, want 1: %+v", len(got), got)
	}
	s := got[0]
	if s.Source != "A" || s.Target != "B" {
		t.Errorf("suggestion pair = %s/%s, want A/B", s.Source, s.Target)
	}
	if s.RelationType != graph.RelationSemantic || !s.Suggested {
		t.Errorf("suggestion metadata = %+v", s)
	}
	if s.Confidence < 0.9 || s.Confidence > 1 {
		t.Errorf("confidence = %v", s.Confidence)
	}
}

func TestInferRelations_ExcludesExisting(t *testing.T) {
	candidates := []Candidate{
		{Concept: graph.Concept{ID: "1", Name: "A"}, Vector: []float32{1, 0}},
		{Concept: graph.Concept{ID: "2", Name: "B"}, Vector: []float32{1, 0}},
	}

	// Existing edge in the reverse direction still blocks the pair.
	existing := []graph.Relation{{ID: "r1", Source: "B", Target: "A", RelationType: graph.RelationUses}}
	if got, err := InferRelations(candidates, existing, 0.5); err != nil || len(got) != 0 {
		t.Errorf("suggested an already-connected pair: %+v (err %v)", got, err)
	}
}

func TestInferRelations_NoSelfPairs(t *testing.T) {
	candidates := []Candidate{
		{Concept: graph.Concept{ID: "1", Name: "A"}, Vector: []float32{1, 0}},
		{Concept: graph.Concept{ID: "2", Name: "B"}, Vector: []float32{1, 0}},
		{Concept: graph.Concept{ID: "3", Name: "C"}, Vector: []float32{1, 0}},
	}

	got, err := InferRelations(candidates, nil, 0.5)
	if err != nil {
		t.Fatalf("InferRelations: %v", err)
	}
	seen := make(map[[2]string]bool)
	for _, s := range got {
		if s.Source == s.Target {
			t.Errorf("self pair suggested: %+v", s)
		}
		if seen[[2]string{s.Target, s.Source}] {
			t.Errorf("symmetric duplicate suggested: %+v", s)
		}
		seen[[2]string{s.Source, s.Target}] = true
	}
	if len(got) != 3 {
		t.Errorf("got %d suggestions for 3 mutually similar concepts, want 3", len(got))
	}
}

func TestInferRelations_SortedByConfidence(t *testing.T) {
	candidates := []Candidate{
		{Concept: graph.Concept{ID: "1", Name: "A"}, Vector: []float32{1, 0}},
		{Concept: graph.Concept{ID: "2", Name: "B"}, Vector: []float32{1, 0.5}},
		{Concept: graph.Concept{ID: "3", Name: "C"}, Vector: []float32{1, 0.05}},
	}

	got, err := InferRelations(candidates, nil, 0.5)
	if err != nil {
		t.Fatalf("InferRelations: %v", err)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Confidence > got[i-1].Confidence {
			t.Errorf("suggestions not sorted by confidence: %+v", got)
		}
	}
}

func TestInferRelations_DimensionMismatch(t *testing.T) {
	candidates := []Candidate{
		{Concept: graph.Concept{ID: "1", Name: "A"}, Vector: []float32{1, 0}},
		{Concept: graph.Concept{ID: "2", Name: "B"}, Vector: []float32{1, 0, 0}},
	}

	if _, err := InferRelations(candidates, nil, 0.5); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}
