package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/paperforge/paperforge/internal/genai"
	"github.com/paperforge/paperforge/internal/graph"
)

// Extraction statuses. parse_error and mock are degraded but valid outcomes;
// the run still completes.
const (
	ExtractionSuccess    = "success"
	ExtractionMock       = "mock"
	ExtractionParseError = "parse_error"
	ExtractionEmpty      = "empty_response"
)

// maxExtractionChars bounds how much of the document is sent upstream.
const maxExtractionChars = 10000

// Generator is the upstream text-generation call. *genai.Client satisfies
// this.
type Generator interface {
	GenerateContent(ctx context.Context, model, prompt string, jsonOutput bool) (string, error)
	Configured() bool
}

const extractionPrompt = `Extract the key concepts and their relations from the paper text below.

Concept types: method, model, dataset, task, metric, domain, theory, application.
Relation types: is-a, part-of, uses, improves, evaluates-on, applied-to, produces, requires.

Respond with JSON only, in this shape:
{
  "summary": {"title": "...", "title_en": "...", "title_ja": "...", "abstract": "..."},
  "concepts": [{"name": "...", "name_en": "...", "name_ja": "...", "definition": "...", "definition_ja": "...", "concept_type": "..."}],
  "relations": [{"source": "concept name", "target": "concept name", "relation_type": "..."}]
}

Paper text:
---
%s
---`

// Extraction is the outcome of the extraction stage.
type Extraction struct {
	Concepts  []graph.Concept  `json:"concepts"`
	Relations []graph.Relation `json:"relations"`
	Summary   map[string]any   `json:"summary"`
	Status    string           `json:"status"`
	Message   string           `json:"message,omitempty"`
}

// Extractor turns raw document text into candidate concepts and relations
// via the upstream generation call.
type Extractor struct {
	gen   Generator
	model string
	sleep func(time.Duration)
}

// NewExtractor creates an Extractor calling the given model.
func NewExtractor(gen Generator, model string) *Extractor {
	return &Extractor{gen: gen, model: model, sleep: time.Sleep}
}

// Extract runs the extraction stage. Without a configured provider it
// returns deterministic mock data so the rest of the pipeline can be
// exercised. Malformed upstream output degrades to an empty set with the
// parse_error status instead of an error. Rate limits are retried with
// backoff and then surface as an error wrapping genai.ErrRateLimited.
func (x *Extractor) Extract(ctx context.Context, text string) (Extraction, error) {
	if x.gen == nil || !x.gen.Configured() {
		return mockExtraction(), nil
	}

	runes := []rune(text)
	if len(runes) > maxExtractionChars {
		runes = runes[:maxExtractionChars]
	}
	prompt := fmt.Sprintf(extractionPrompt, string(runes))

	raw, err := generateWithRetry(ctx, x.gen, x.model, prompt, true, x.sleep)
	if err != nil {
		return Extraction{}, fmt.Errorf("extraction: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return Extraction{Concepts: []graph.Concept{}, Relations: []graph.Relation{}, Status: ExtractionEmpty}, nil
	}

	var parsed Extraction
	if err := json.Unmarshal([]byte(stripFence(raw)), &parsed); err != nil {
		return Extraction{
			Concepts:  []graph.Concept{},
			Relations: []graph.Relation{},
			Status:    ExtractionParseError,
			Message:   fmt.Sprintf("parsing extraction output: %v", err),
		}, nil
	}

	normalize(&parsed)
	parsed.Status = ExtractionSuccess
	parsed.Message = fmt.Sprintf("extracted %d concepts and %d relations", len(parsed.Concepts), len(parsed.Relations))
	return parsed, nil
}

// normalize fills in the fields the upstream model routinely omits.
func normalize(e *Extraction) {
	if e.Concepts == nil {
		e.Concepts = []graph.Concept{}
	}
	if e.Relations == nil {
		e.Relations = []graph.Relation{}
	}
	for i := range e.Concepts {
		if e.Concepts[i].ID == "" {
			e.Concepts[i].ID = uuid.NewString()
		}
		if e.Concepts[i].ConceptType == "" {
			e.Concepts[i].ConceptType = graph.TypeConcept
		}
	}
	for i := range e.Relations {
		if e.Relations[i].ID == "" {
			e.Relations[i].ID = uuid.NewString()
		}
	}
}

func mockExtraction() Extraction {
	concepts := []graph.Concept{
		{
			ID:          uuid.NewString(),
			Name:        "machine learning",
			NameEn:      "machine learning",
			Definition:  "sample concept returned because no API key is configured",
			ConceptType: graph.TypeConcept,
		},
		{
			ID:          uuid.NewString(),
			Name:        "neural network",
			NameEn:      "neural network",
			Definition:  "sample concept returned because no API key is configured",
			ConceptType: graph.TypeConcept,
		},
	}
	relations := []graph.Relation{
		{ID: uuid.NewString(), Source: "neural network", Target: "machine learning", RelationType: graph.RelationIsA},
	}
	return Extraction{
		Concepts:  concepts,
		Relations: relations,
		Summary:   map[string]any{"title": "sample paper"},
		Status:    ExtractionMock,
		Message:   "no API key configured, returning sample data",
	}
}

// stripFence removes an optional leading ```json or ``` fence and an
// optional trailing fence. Partially present markers are tolerated.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// Explainer produces a short explanation of a concept for the tutor stage.
type Explainer struct {
	gen   Generator
	model string
	sleep func(time.Duration)
}

// NewExplainer creates an Explainer calling the given model.
func NewExplainer(gen Generator, model string) *Explainer {
	return &Explainer{gen: gen, model: model, sleep: time.Sleep}
}

// Explain returns a plain-language explanation of the concept. Without a
// configured provider it falls back to the stored definition.
func (e *Explainer) Explain(ctx context.Context, name, definition string) (string, error) {
	if e.gen == nil || !e.gen.Configured() {
		if definition == "" {
			return fmt.Sprintf("%s: no definition available", name), nil
		}
		return fmt.Sprintf("%s: %s", name, definition), nil
	}

	prompt := fmt.Sprintf(
		"Explain the concept %q to a student in 3-5 plain sentences.\nStored definition: %s",
		name, definition,
	)
	out, err := generateWithRetry(ctx, e.gen, e.model, prompt, false, e.sleep)
	if err != nil {
		return "", fmt.Errorf("explaining %q: %w", name, err)
	}
	return strings.TrimSpace(out), nil
}

// generateWithRetry retries rate-limited generation calls up to 2 extra
// times with exponential backoff (1s, 2s). Other failures are returned
// immediately.
func generateWithRetry(ctx context.Context, gen Generator, model, prompt string, jsonOutput bool, sleep func(time.Duration)) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			sleep(time.Duration(1<<(attempt-1)) * time.Second)
		}
		out, err := gen.GenerateContent(ctx, model, prompt, jsonOutput)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, genai.ErrRateLimited) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}
