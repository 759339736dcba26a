package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/paperforge/paperforge/internal/pipeline"
)

func handleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": pipeline.Agents()})
}

type runAgentRequest struct {
	Task     string `json:"task"`
	Input    string `json:"input"`
	Filename string `json:"filename"`
}

func handleRunAgent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		defer r.Body.Close()

		var req runAgentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		var sessionID string
		switch req.Task {
		case "extract":
			if req.Input == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "input is required")
				return
			}
			sessionID = deps.Orchestrator.Start(req.Input, req.Filename, userID(r))
		case "quiz":
			sessionID = deps.Orchestrator.StartQuiz(userID(r))
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown task %q", req.Task)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"session_id": sessionID})
	}
}

func handlePollActivities(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "session_id")
		cursor := parseIntParam(r, "cursor", 0, 0)

		activities, next, done, result, err := deps.Orchestrator.Log().Wait(r.Context(), sessionID, cursor)
		if errors.Is(err, pipeline.ErrNoSession) {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Client went away; nothing useful to write.
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to poll activities: %v", err)
			return
		}

		if activities == nil {
			activities = []pipeline.Activity{}
		}
		resp := map[string]any{
			"activities": activities,
			"cursor":     next,
			"done":       done,
		}
		if done && result != nil {
			resp["result"] = result
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleStreamActivities(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
			return
		}

		sessionID := chi.URLParam(r, "session_id")
		log := deps.Orchestrator.Log()

		// Check existence before committing to the event stream.
		if _, _, _, _, err := log.Poll(sessionID, 0); errors.Is(err, pipeline.ErrNoSession) {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		cursor := 0
		for {
			activities, next, done, _, err := log.Wait(r.Context(), sessionID, cursor)
			if err != nil {
				return
			}
			for _, a := range activities {
				payload, err := json.Marshal(a)
				if err != nil {
					deps.Logger.Error("marshaling activity", "session_id", sessionID, "error", err)
					continue
				}
				w.Write([]byte("data: "))
				w.Write(payload)
				w.Write([]byte("\n\n"))
			}
			flusher.Flush()
			cursor = next
			if done {
				return
			}
		}
	}
}
