// Package pipeline runs background agent tasks per session: the extract,
// persist, explain sequence and quiz generation. Progress is recorded in an
// append-only activity log that consumers poll or stream.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/paperforge/paperforge/internal/genai"
	"github.com/paperforge/paperforge/internal/graph"
)

// Run outcomes, carried in the terminal result's "status" field.
const (
	OutcomeCompleted   = "completed"
	OutcomeParseError  = "parse_error"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// Orchestrator drives pipeline runs. Sessions are independent and fully
// concurrent; the only shared mutable state between them is the graph
// store, which serializes same-key writes itself.
type Orchestrator struct {
	graph     *graph.Service
	extractor *Extractor
	explainer *Explainer
	quizzer   *Quizzer
	log       *Log
	logger    *slog.Logger
}

// New creates an Orchestrator.
func New(g *graph.Service, extractor *Extractor, explainer *Explainer, quizzer *Quizzer, log *Log, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{graph: g, extractor: extractor, explainer: explainer, quizzer: quizzer, log: log, logger: logger}
}

// Log exposes the activity log for polling and streaming consumers.
func (o *Orchestrator) Log() *Log {
	return o.log
}

// Start launches a pipeline run for the given document text and returns its
// session id immediately. The run proceeds in the background; its progress
// is observable through the activity log. Runs outlive the request context
// that started them.
func (o *Orchestrator) Start(text, filename, userID string) string {
	sessionID := uuid.NewString()
	o.log.Create(sessionID)
	go o.run(context.Background(), sessionID, text, filename, userID)
	return sessionID
}

// StartQuiz launches a quiz run over the user's stored concepts and returns
// its session id immediately, like Start.
func (o *Orchestrator) StartQuiz(userID string) string {
	sessionID := uuid.NewString()
	o.log.Create(sessionID)
	go o.runQuiz(context.Background(), sessionID, userID)
	return sessionID
}

func (o *Orchestrator) runQuiz(ctx context.Context, sessionID, userID string) {
	o.log.Append(sessionID, newActivity(AgentOrchestrator, "analyze", StatusStarted, "Processing the quiz request", nil))
	o.log.Append(sessionID, newActivity(AgentOrchestrator, "delegate", StatusDelegating, "Delegating to the quiz stage", nil))
	o.log.Append(sessionID, newActivity(AgentQuiz, "generate", StatusThinking, "Generating questions from stored concepts", nil))

	concepts, err := o.graph.Store().AllConcepts(userID)
	if err != nil {
		o.fail(sessionID, userID, "quiz", err)
		return
	}

	quiz, err := o.quizzer.Generate(ctx, concepts)
	if err != nil {
		o.fail(sessionID, userID, "quiz", err)
		return
	}

	o.log.Append(sessionID, newActivity(AgentQuiz, "generate", StatusCompleted,
		fmt.Sprintf("Generated %d questions", len(quiz.Questions)),
		map[string]any{"questions_count": len(quiz.Questions), "status": quiz.Status}))

	outcome := OutcomeCompleted
	if quiz.Status == ExtractionParseError {
		outcome = OutcomeParseError
	}
	result := map[string]any{
		"status":      outcome,
		"quiz_status": quiz.Status,
		"questions":   quiz.Questions,
	}
	if quiz.Message != "" {
		result["message"] = quiz.Message
	}
	o.log.Finish(sessionID, "Quiz ready", result)
	o.logger.Info("quiz finished",
		"session_id", sessionID,
		"user_id", userID,
		"status", outcome,
		"questions", len(quiz.Questions))
}

func (o *Orchestrator) run(ctx context.Context, sessionID, text, filename, userID string) {
	o.log.Append(sessionID, newActivity(AgentOrchestrator, "analyze", StatusStarted, "Analyzing the request", nil))
	o.log.Append(sessionID, newActivity(AgentOrchestrator, "delegate", StatusDelegating, "Delegating to the extraction stage", nil))
	o.log.Append(sessionID, newActivity(AgentExtraction, "extract", StatusThinking, "Extracting concepts and relations from the text", nil))

	extraction, err := o.extractor.Extract(ctx, text)
	if err != nil {
		o.fail(sessionID, userID, "extraction", err)
		return
	}

	o.log.Append(sessionID, newActivity(AgentExtraction, "extract", StatusCompleted,
		fmt.Sprintf("Extracted %d concepts and %d relations", len(extraction.Concepts), len(extraction.Relations)),
		map[string]any{
			"concepts_count":  len(extraction.Concepts),
			"relations_count": len(extraction.Relations),
			"status":          extraction.Status,
		}))

	o.log.Append(sessionID, newActivity(AgentOrchestrator, "delegate", StatusDelegating, "Delegating to the graph stage", nil))
	o.log.Append(sessionID, newActivity(AgentGraph, "update", StatusThinking, "Updating the knowledge graph", nil))

	sync, err := o.graph.SyncGraph(userID, extraction.Concepts, extraction.Relations)
	if err != nil {
		o.fail(sessionID, userID, "graph update", err)
		return
	}

	o.log.Append(sessionID, newActivity(AgentGraph, "update", StatusCompleted,
		fmt.Sprintf("Stored %d concepts and %d relations", sync.ConceptsSynced, sync.RelationsSynced),
		map[string]any{"concepts_synced": sync.ConceptsSynced, "relations_synced": sync.RelationsSynced}))

	if filename != "" {
		paper := graph.Paper{
			ID:       uuid.NewString(),
			Filename: filename,
			Title:    summaryTitle(extraction.Summary, filename),
			Status:   "processed",
		}
		if err := o.graph.Store().PutPaper(userID, paper); err != nil {
			o.logger.Warn("storing paper record", "session_id", sessionID, "error", err)
		}
	}

	explanation := ""
	if len(extraction.Concepts) > 0 {
		o.log.Append(sessionID, newActivity(AgentOrchestrator, "delegate", StatusDelegating, "Delegating to the tutor stage", nil))
		o.log.Append(sessionID, newActivity(AgentTutor, "explain", StatusThinking, "Explaining a key concept", nil))

		key := extraction.Concepts[0]
		explanation, err = o.explainer.Explain(ctx, key.Name, key.Definition)
		if err != nil {
			o.fail(sessionID, userID, "explanation", err)
			return
		}
		o.log.Append(sessionID, newActivity(AgentTutor, "explain", StatusCompleted,
			fmt.Sprintf("Explained %q", key.Name), nil))
	}

	outcome := OutcomeCompleted
	if extraction.Status == ExtractionParseError {
		outcome = OutcomeParseError
	}
	result := map[string]any{
		"status":            outcome,
		"extraction_status": extraction.Status,
		"concepts":          extraction.Concepts,
		"relations":         extraction.Relations,
		"summary":           extraction.Summary,
		"concepts_synced":   sync.ConceptsSynced,
		"relations_synced":  sync.RelationsSynced,
	}
	if explanation != "" {
		result["explanation"] = explanation
	}
	o.log.Finish(sessionID, "Pipeline finished", result)
	o.logger.Info("pipeline finished",
		"session_id", sessionID,
		"user_id", userID,
		"status", outcome,
		"concepts", sync.ConceptsSynced,
		"relations", sync.RelationsSynced)
}

// fail terminates the run with a rate_limited or error outcome. The stream
// still ends with the orchestrator's completed marker; the outcome travels
// in the result payload.
func (o *Orchestrator) fail(sessionID, userID, stage string, err error) {
	outcome := OutcomeError
	message := fmt.Sprintf("Pipeline failed during %s", stage)
	if errors.Is(err, genai.ErrRateLimited) {
		outcome = OutcomeRateLimited
		message = "The upstream provider is rate limited, try again later"
	}
	o.log.Finish(sessionID, message, map[string]any{
		"status":  outcome,
		"stage":   stage,
		"message": err.Error(),
	})
	o.logger.Warn("pipeline failed", "session_id", sessionID, "user_id", userID, "stage", stage, "status", outcome, "error", err)
}

func summaryTitle(summary map[string]any, fallback string) string {
	if summary != nil {
		if t, ok := summary["title"].(string); ok && t != "" {
			return t
		}
	}
	return fallback
}
