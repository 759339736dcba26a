package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/paperforge/paperforge/internal/graph"
	"github.com/paperforge/paperforge/internal/vector"
)

func handleGetGraph(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := deps.Graph.GetGraph(userID(r))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load graph: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, data)
	}
}

type syncRequest struct {
	Concepts  []graph.Concept  `json:"concepts"`
	Relations []graph.Relation `json:"relations"`
}

func handleSyncGraph(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req syncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		res, err := deps.Graph.SyncGraph(userID(r), req.Concepts, req.Relations)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to sync graph: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleClearGraph(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := deps.Graph.ClearGraph(userID(r))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to clear graph: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleGraphStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Graph.GraphStats(userID(r))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to compute stats: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleListConcepts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 500)
		query := r.URL.Query().Get("query")

		concepts, err := deps.Graph.SearchConcepts(userID(r), query, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list concepts: %v", err)
			return
		}
		if concepts == nil {
			concepts = []graph.Concept{}
		}
		writeJSON(w, http.StatusOK, concepts)
	}
}

func handleAddConcept(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var c graph.Concept
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if c.Name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.ConceptType == "" {
			c.ConceptType = graph.TypeConcept
		}

		if err := deps.Graph.Store().PutConcept(userID(r), c); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to store concept: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func handleGetConcept(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := deps.Graph.Store().GetConcept(userID(r), chi.URLParam(r, "id"))
		if errors.Is(err, graph.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "concept not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get concept: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func handleDeleteConcept(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Graph.Store().DeleteConcept(userID(r), chi.URLParam(r, "id"))
		if errors.Is(err, graph.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "concept not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete concept: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleRelatedConcepts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		depth := parseIntParam(r, "depth", 1, 10)

		related, err := deps.Graph.RelatedConcepts(userID(r), chi.URLParam(r, "id"), depth)
		if errors.Is(err, graph.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "concept not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to traverse graph: %v", err)
			return
		}
		if related == nil {
			related = []graph.Concept{}
		}
		writeJSON(w, http.StatusOK, related)
	}
}

func handleSimilarConcepts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topK := parseIntParam(r, "top_k", 0, 50)
		threshold := parseFloatParam(r, "threshold", 0)

		similar, err := deps.Vector.SimilarConcepts(r.Context(), userID(r), chi.URLParam(r, "id"), topK, threshold)
		if errors.Is(err, graph.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "concept not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "similarity search failed: %v", err)
			return
		}
		if similar == nil {
			similar = []vector.ScoredConcept{}
		}
		writeJSON(w, http.StatusOK, similar)
	}
}

type semanticSearchRequest struct {
	Query     string  `json:"query"`
	TopK      int     `json:"top_k"`
	Threshold float64 `json:"threshold"`
}

func handleSemanticSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req semanticSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		results, err := deps.Vector.SemanticSearch(r.Context(), userID(r), req.Query, req.TopK, req.Threshold)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "semantic search failed: %v", err)
			return
		}
		if results == nil {
			results = []vector.ScoredConcept{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
	}
}

type suggestRelationsRequest struct {
	Threshold float64 `json:"threshold"`
}

func handleSuggestRelations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req suggestRelationsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		suggestions, err := deps.Vector.SuggestRelations(r.Context(), userID(r), req.Threshold)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "relation discovery failed: %v", err)
			return
		}
		if suggestions == nil {
			suggestions = []vector.Suggestion{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
	}
}
