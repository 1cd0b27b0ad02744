package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"linkdrain/internal/controller"
	"linkdrain/internal/queue"
	"linkdrain/internal/types"
)

// ArtifactReader serves persisted artifact bytes. Satisfied by *queue.Store.
type ArtifactReader interface {
	ReadRaw(ctx context.Context, key string) ([]byte, error)
}

// Server holds the gateway's dependencies.
type Server struct {
	Controller *controller.Controller
	Jobs       types.JobRepository
	Artifacts  ArtifactReader
	Log        *slog.Logger
}

// Router builds the chi router for the ops gateway.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/jobs", s.handleCreateJob)
	r.Get("/jobs/{jobID}", s.handleGetJob)
	r.Get("/jobs/{jobID}/artifact", s.handleGetArtifact)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateJob accepts a create-job request and runs the full creation
// sequence. Required-parameter validation happens inside the controller
// before any state mutation.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req controller.CreateJobRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		Error(w, types.NewAppError(types.ErrCodeValidationBadPayload,
			"request body is not valid JSON", err))
		return
	}

	resp, err := s.Controller.CreateJob(r.Context(), req)
	if err != nil {
		s.Log.ErrorContext(r.Context(), "create job failed", "error", err)
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// handleGetJob serves the registry row for a job.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := s.Jobs.Get(r.Context(), jobID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, job)
}

// handleGetArtifact streams the finalized artifact. Absent artifacts report
// not found, which before finalization is the expected answer.
func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	body, err := s.Artifacts.ReadRaw(r.Context(), queue.ResultsKey(jobID))
	if err != nil {
		Error(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
