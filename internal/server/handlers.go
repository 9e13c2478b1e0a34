package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/tender-ingest/internal/db"
	"github.com/jonathan/tender-ingest/internal/types"
)

const maxRunsLimit = 500

var taskKinds = []string{types.TaskKindTenderDoc, types.TaskKindAgencyDoc, types.TaskKindContract}

// StatusResponse reports download task counts per kind and state.
type StatusResponse struct {
	Tasks map[string]map[types.TaskState]int `json:"tasks"`
}

// handleReady reports whether the store answers within the request context
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleStatus returns queue counters for every task kind
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	kinds := taskKinds
	if k := r.URL.Query().Get("kind"); k != "" {
		if !knownKind(k) {
			s.errorResponse(w, &ErrValidation{Field: "kind", Message: "unknown task kind " + strconv.Quote(k)})
			return
		}
		kinds = []string{k}
	}

	resp := StatusResponse{Tasks: make(map[string]map[types.TaskState]int, len(kinds))}
	for _, k := range kinds {
		counts, err := s.store.TaskCounts(r.Context(), k)
		if err != nil {
			s.errorResponse(w, err)
			return
		}
		resp.Tasks[k] = counts
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleListRuns returns recent runs, optionally filtered by stage
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stage := q.Get("stage")
	switch stage {
	case "", db.StageParse, db.StageCapture, db.StageDownload:
	default:
		s.errorResponse(w, &ErrValidation{Field: "stage", Message: "unknown stage " + strconv.Quote(stage)})
		return
	}

	limit := 50
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxRunsLimit {
			s.errorResponse(w, &ErrValidation{Field: "limit", Message: "must be between 1 and 500"})
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), stage, limit)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

// handleGetRun returns one run with its counters
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.errorResponse(w, &ErrValidation{Field: "id", Message: "invalid run ID"})
		return
	}
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	if run == nil {
		s.errorResponse(w, &ErrRunNotFound{RunID: id})
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

func knownKind(kind string) bool {
	for _, k := range taskKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("Error encoding JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response with the status matching err
func (s *Server) errorResponse(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
	}
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}
