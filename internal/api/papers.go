package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/paperforge/paperforge/internal/graph"
	"github.com/paperforge/paperforge/internal/ingest"
)

// handleUploadPaper accepts a multipart upload (field "file", PDF or plain
// text), extracts its text, and starts an extraction pipeline run. The
// paper record itself is stored by the pipeline once extraction finishes.
func handleUploadPaper(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		defer r.Body.Close()

		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart form: %v", err)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "file field is required")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading upload: %v", err)
			return
		}

		text, err := ingest.ExtractText(data)
		if err != nil {
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "extracting text: %v", err)
			return
		}

		sessionID := deps.Orchestrator.Start(text, header.Filename, userID(r))
		writeJSON(w, http.StatusAccepted, map[string]string{
			"session_id": sessionID,
			"filename":   header.Filename,
			"status":     "processing",
		})
	}
}

func handleListPapers(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		papers, err := deps.Graph.Store().AllPapers(userID(r))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list papers: %v", err)
			return
		}
		if papers == nil {
			papers = []graph.Paper{}
		}
		writeJSON(w, http.StatusOK, papers)
	}
}

func handleGetPaper(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Graph.Store().GetPaper(userID(r), chi.URLParam(r, "id"))
		if errors.Is(err, graph.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "paper not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get paper: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleDeletePaper(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Graph.Store().DeletePaper(userID(r), chi.URLParam(r, "id"))
		if errors.Is(err, graph.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "paper not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete paper: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
