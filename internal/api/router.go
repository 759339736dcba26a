// Package api exposes the knowledge-graph engine over HTTP and MCP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/paperforge/paperforge/internal/graph"
	"github.com/paperforge/paperforge/internal/pipeline"
	"github.com/paperforge/paperforge/internal/vector"
)

// Deps holds the collaborators the HTTP layer serves. Token is optional;
// when set, every route except /health requires a matching bearer token.
type Deps struct {
	Graph        *graph.Service
	Vector       *vector.Engine
	Orchestrator *pipeline.Orchestrator
	Token        string
	Logger       *slog.Logger
}

// NewHandler builds the HTTP API.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		r.Route("/graph", routeGraph(deps))
		r.Route("/agents", routeAgents(deps))
		r.Route("/papers", routePapers(deps))
	})

	return r
}

func routeGraph(deps Deps) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", handleGetGraph(deps))
		r.Delete("/", handleClearGraph(deps))
		r.Post("/sync", handleSyncGraph(deps))
		r.Get("/stats", handleGraphStats(deps))
		r.Post("/semantic-search", handleSemanticSearch(deps))
		r.Post("/suggest-relations", handleSuggestRelations(deps))

		r.Route("/concepts", func(r chi.Router) {
			r.Get("/", handleListConcepts(deps))
			r.Post("/", handleAddConcept(deps))
			r.Get("/{id}", handleGetConcept(deps))
			r.Delete("/{id}", handleDeleteConcept(deps))
			r.Get("/{id}/related", handleRelatedConcepts(deps))
			r.Get("/{id}/similar", handleSimilarConcepts(deps))
		})
	}
}

func routeAgents(deps Deps) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", handleListAgents)
		r.Post("/run", handleRunAgent(deps))
		r.Get("/{session_id}/activities", handlePollActivities(deps))
		r.Get("/{session_id}/stream", handleStreamActivities(deps))
	}
}

func routePapers(deps Deps) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/", handleUploadPaper(deps))
		r.Get("/", handleListPapers(deps))
		r.Get("/{id}", handleGetPaper(deps))
		r.Delete("/{id}", handleDeletePaper(deps))
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
