package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prismrag/ragjobs/pkg/core"
	"github.com/prismrag/ragjobs/pkg/registry"
)

type submitFileRequest struct {
	Filename  string `json:"filename"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
}

type submitPromptRequest struct {
	Prompt string `json:"prompt"`
}

type submitResponse struct {
	JobID string `json:"jobId"`
}

func (s *Server) submitFile(w http.ResponseWriter, r *http.Request) {
	var req submitFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}

	id, err := s.registry.Submit(r.Context(), core.FilePayload{
		Filename:  req.Filename,
		MimeType:  req.MimeType,
		SizeBytes: req.SizeBytes,
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{JobID: id})
}

func (s *Server) submitPrompt(w http.ResponseWriter, r *http.Request) {
	var req submitPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}

	id, err := s.registry.Submit(r.Context(), core.PromptPayload{Prompt: req.Prompt})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{JobID: id})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	f := registry.Filter{
		Status: core.JobStatus(r.URL.Query().Get("status")),
		Kind:   core.JobKind(r.URL.Query().Get("kind")),
	}

	snaps := s.registry.List(f)
	views := make([]jobView, 0, len(snaps))
	for _, snap := range snaps {
		views = append(views, toJobView(snap))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": views})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	snap, err := s.registry.Get(chi.URLParam(r, "jobID"))
	if errors.Is(err, core.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "job not found")
		return
	}
	writeJSON(w, http.StatusOK, toJobView(snap))
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	err := s.registry.Cancel(chi.URLParam(r, "jobID"))
	if errors.Is(err, core.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "job not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// streamJob serves the job's snapshot stream as server-sent events, one
// event per observable mutation, ending after the terminal snapshot.
func (s *Server) streamJob(w http.ResponseWriter, r *http.Request) {
	sub, err := s.registry.Subscribe(chi.URLParam(r, "jobID"))
	if errors.Is(err, core.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "job not found")
		return
	}
	defer sub.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, open := <-sub.Snapshots():
			if !open {
				return
			}
			data, err := json.Marshal(toJobView(snap))
			if err != nil {
				s.logger.Error("marshal snapshot", "job_id", snap.ID, "error", err)
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotImplemented, "NOT_CONFIGURED", "archive not configured")
		return
	}

	recs, err := s.archive.List(r.Context(), core.JobKind(r.URL.Query().Get("kind")), 200)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to list archive")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": recs})
}
