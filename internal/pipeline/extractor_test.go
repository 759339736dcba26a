package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paperforge/paperforge/internal/genai"
)

// fakeGen scripts one response per call: a non-empty string succeeds, a nil
// error entry is a success, anything else fails.
type fakeGen struct {
	mu         sync.Mutex
	outputs    []string
	errs       []error
	calls      int
	configured bool
}

func (f *fakeGen) GenerateContent(_ context.Context, _, _ string, _ bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.outputs) {
		return f.outputs[i], nil
	}
	return "", errors.New("unscripted call")
}

func (f *fakeGen) Configured() bool { return f.configured }

func (f *fakeGen) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func noSleep(time.Duration) {}

func newTestExtractor(gen Generator) *Extractor {
	x := NewExtractor(gen, "test-model")
	x.sleep = noSleep
	return x
}

const validExtractionJSON = `{
	"summary": {"title": "Attention Is All You Need"},
	"concepts": [
		{"name": "Transformer", "definition": "attention-based model", "concept_type": "model"},
		{"name": "attention", "definition": "weighted context lookup"}
	],
	"relations": [
		{"source": "Transformer", "target": "attention", "relation_type": "uses"}
	]
}`

func TestExtract(t *testing.T) {
	gen := &fakeGen{configured: true, outputs: []string{validExtractionJSON}}
	got, err := newTestExtractor(gen).Extract(context.Background(), "some paper text")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Status != ExtractionSuccess {
		t.Errorf("Status = %q, want %q", got.Status, ExtractionSuccess)
	}
	if len(got.Concepts) != 2 || len(got.Relations) != 1 {
		t.Fatalf("got %d concepts / %d relations, want 2/1", len(got.Concepts), len(got.Relations))
	}
	for _, c := range got.Concepts {
		if c.ID == "" {
			t.Errorf("concept %q missing generated id", c.Name)
		}
	}
	if got.Concepts[1].ConceptType == "" {
		t.Error("untyped concept not defaulted")
	}
	if got.Relations[0].ID == "" {
		t.Error("relation missing generated id")
	}
}

func TestExtract_Unconfigured(t *testing.T) {
	gen := &fakeGen{configured: false}
	got, err := newTestExtractor(gen).Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Status != ExtractionMock {
		t.Errorf("Status = %q, want %q", got.Status, ExtractionMock)
	}
	if len(got.Concepts) == 0 {
		t.Error("mock extraction returned no concepts")
	}
	if gen.callCount() != 0 {
		t.Errorf("unconfigured provider was called %d times", gen.callCount())
	}
}

func TestExtract_ParseErrorDegrades(t *testing.T) {
	gen := &fakeGen{configured: true, outputs: []string{"this is not json"}}
	got, err := newTestExtractor(gen).Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("Extract returned error for malformed payload: %v", err)
	}
	if got.Status != ExtractionParseError {
		t.Errorf("Status = %q, want %q", got.Status, ExtractionParseError)
	}
	if len(got.Concepts) != 0 || len(got.Relations) != 0 {
		t.Errorf("degraded result not empty: %+v", got)
	}
}

func TestExtract_RetriesRateLimit(t *testing.T) {
	gen := &fakeGen{
		configured: true,
		errs:       []error{genai.ErrRateLimited, genai.ErrRateLimited, nil},
		outputs:    []string{"", "", validExtractionJSON},
	}
	got, err := newTestExtractor(gen).Extract(context.Background(), "text")
	if err != nil {
		t.Fatalf("Extract after retries: %v", err)
	}
	if got.Status != ExtractionSuccess {
		t.Errorf("Status = %q, want %q", got.Status, ExtractionSuccess)
	}
	if gen.callCount() != 3 {
		t.Errorf("provider called %d times, want 3", gen.callCount())
	}
}

func TestExtract_RateLimitExhausted(t *testing.T) {
	gen := &fakeGen{
		configured: true,
		errs:       []error{genai.ErrRateLimited, genai.ErrRateLimited, genai.ErrRateLimited},
	}
	_, err := newTestExtractor(gen).Extract(context.Background(), "text")
	if !errors.Is(err, genai.ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited after exhausted retries", err)
	}
	if gen.callCount() != 3 {
		t.Errorf("provider called %d times, want 3", gen.callCount())
	}
}

func TestExtract_NonRateLimitNotRetried(t *testing.T) {
	gen := &fakeGen{configured: true, errs: []error{errors.New("boom")}}
	_, err := newTestExtractor(gen).Extract(context.Background(), "text")
	if err == nil {
		t.Fatal("expected error")
	}
	if gen.callCount() != 1 {
		t.Errorf("provider called %d times, want 1 (no retry on non-rate-limit)", gen.callCount())
	}
}

func TestStripFence(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"leading only", "```json\n{\"a\":1}", `{"a":1}`},
		{"trailing only", "{\"a\":1}\n```", `{"a":1}`},
		{"prose before fence", "Here you go:\n```json\n{\"a\":1}\n```", `{"a":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := stripFence(tc.in); got != tc.want {
				t.Errorf("stripFence(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestExplain_Unconfigured(t *testing.T) {
	e := NewExplainer(&fakeGen{configured: false}, "test-model")
	e.sleep = noSleep

	out, err := e.Explain(context.Background(), "dropout", "random unit masking")
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if out == "" {
		t.Error("unconfigured Explain returned empty text")
	}
}

func TestExplain_RateLimitSurfaces(t *testing.T) {
	gen := &fakeGen{
		configured: true,
		errs:       []error{genai.ErrRateLimited, genai.ErrRateLimited, genai.ErrRateLimited},
	}
	e := NewExplainer(gen, "test-model")
	e.sleep = noSleep

	if _, err := e.Explain(context.Background(), "x", "y"); !errors.Is(err, genai.ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
}
