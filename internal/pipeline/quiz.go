package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/paperforge/paperforge/internal/graph"
)

// maxQuizConcepts bounds how many concepts seed the quiz prompt.
const maxQuizConcepts = 10

const quizPrompt = `Write a comprehension quiz of 3 multiple-choice questions about the concepts below.

Concepts:
%s
Respond with JSON only, in this shape:
{
  "questions": [
    {"question": "...", "options": ["...", "...", "...", "..."], "correct": 0}
  ]
}`

// Question is a single multiple-choice quiz item. Correct indexes into
// Options.
type Question struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Correct  int      `json:"correct"`
}

// Quiz is the outcome of the quiz stage. Statuses reuse the extraction
// vocabulary: mock and parse_error are degraded but valid outcomes.
type Quiz struct {
	Questions []Question `json:"questions"`
	Status    string     `json:"status"`
	Message   string     `json:"message,omitempty"`
}

// Quizzer generates comprehension quizzes from stored concepts.
type Quizzer struct {
	gen   Generator
	model string
	sleep func(time.Duration)
}

// NewQuizzer creates a Quizzer calling the given model.
func NewQuizzer(gen Generator, model string) *Quizzer {
	return &Quizzer{gen: gen, model: model, sleep: time.Sleep}
}

// Generate builds a quiz from up to maxQuizConcepts concepts. An empty graph
// yields an empty quiz with a hint, not an error. Without a configured
// provider a single sample question is returned. Malformed upstream output
// degrades to parse_error like extraction does; rate limits are retried with
// backoff and then surface as an error wrapping genai.ErrRateLimited.
func (q *Quizzer) Generate(ctx context.Context, concepts []graph.Concept) (Quiz, error) {
	if len(concepts) == 0 {
		return Quiz{
			Questions: []Question{},
			Status:    ExtractionEmpty,
			Message:   "add concepts to the graph before generating a quiz",
		}, nil
	}
	if q.gen == nil || !q.gen.Configured() {
		return mockQuiz(concepts[0]), nil
	}

	if len(concepts) > maxQuizConcepts {
		concepts = concepts[:maxQuizConcepts]
	}
	var b strings.Builder
	for _, c := range concepts {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Definition)
	}

	raw, err := generateWithRetry(ctx, q.gen, q.model, fmt.Sprintf(quizPrompt, b.String()), true, q.sleep)
	if err != nil {
		return Quiz{}, fmt.Errorf("quiz generation: %w", err)
	}

	var parsed Quiz
	if err := json.Unmarshal([]byte(stripFence(raw)), &parsed); err != nil {
		return Quiz{
			Questions: []Question{},
			Status:    ExtractionParseError,
			Message:   fmt.Sprintf("parsing quiz output: %v", err),
		}, nil
	}
	if parsed.Questions == nil {
		parsed.Questions = []Question{}
	}
	parsed.Status = ExtractionSuccess
	return parsed, nil
}

func mockQuiz(c graph.Concept) Quiz {
	def := c.Definition
	if def == "" {
		def = "no definition available"
	}
	return Quiz{
		Questions: []Question{{
			Question: fmt.Sprintf("What is %s?", c.Name),
			Options:  []string{def, "An unrelated option A", "An unrelated option B", "An unrelated option C"},
			Correct:  0,
		}},
		Status:  ExtractionMock,
		Message: "no API key configured, returning a sample question",
	}
}
