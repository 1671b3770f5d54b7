// Package api exposes the OCR orchestrator over HTTP: start a run, poll its
// progress, cancel it.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/yomitext/pdfocr/internal/domain"
)

// Runner is the orchestrator surface the API needs. Tests substitute a stub.
type Runner interface {
	StartRun(ctx context.Context, req domain.RunRequest) (string, error)
	Cancel(runID string) error
	Snapshot(runID string) (domain.RunSnapshot, bool)
}

// Server wires the runner into HTTP handlers.
type Server struct {
	runner Runner
	logger zerolog.Logger

	// runCtx bounds the lifetime of runs started over HTTP. Runs outlive
	// the request that started them, so the request context cannot be used.
	runCtx context.Context
}

// NewServer creates an API server. Runs started through it live until they
// finish or runCtx is cancelled.
func NewServer(runCtx context.Context, runner Runner, logger zerolog.Logger) *Server {
	return &Server{
		runner: runner,
		logger: logger,
		runCtx: runCtx,
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"pdfocr"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.startRun)
			r.Get("/{runID}", s.getRun)
			r.Delete("/{runID}", s.cancelRun)
		})
	})

	return r
}

// StartRunDTO represents the API request for starting a run.
type StartRunDTO struct {
	DocumentPath       string   `json:"documentPath"`
	OutputPath         string   `json:"outputPath"`
	Mode               string   `json:"mode"`
	Bucket             string   `json:"bucket,omitempty"`
	ResultPrefix       string   `json:"resultPrefix,omitempty"`
	LanguageHints      []string `json:"languageHints,omitempty"`
	DPI                int      `json:"dpi,omitempty"`
	Workers            int      `json:"workers,omitempty"`
	PollTimeoutSeconds int      `json:"pollTimeoutSeconds,omitempty"`
	CleanupInput       bool     `json:"cleanupInput,omitempty"`
}

// RunDTO represents the API view of a run.
type RunDTO struct {
	ID           string `json:"id"`
	DocumentPath string `json:"documentPath"`
	OutputPath   string `json:"outputPath"`
	Mode         string `json:"mode"`
	Status       string `json:"status"`
	Percent      int    `json:"percent"`
	Message      string `json:"message,omitempty"`
	TotalPages   int    `json:"totalPages,omitempty"`
	PagesDone    int    `json:"pagesDone,omitempty"`
	Error        string `json:"error,omitempty"`
	StartedAt    string `json:"startedAt,omitempty"`
	FinishedAt   string `json:"finishedAt,omitempty"`
}

func runDTO(snap domain.RunSnapshot) RunDTO {
	dto := RunDTO{
		ID:           snap.ID,
		DocumentPath: snap.DocumentPath,
		OutputPath:   snap.OutputPath,
		Mode:         string(snap.Mode),
		Status:       string(snap.Status),
		Percent:      snap.Percent,
		Message:      snap.Message,
		TotalPages:   snap.TotalPages,
		PagesDone:    snap.PagesDone,
	}
	if snap.Err != nil {
		dto.Error = snap.Err.Error()
	}
	if !snap.StartedAt.IsZero() {
		dto.StartedAt = snap.StartedAt.Format(time.RFC3339)
	}
	if !snap.FinishedAt.IsZero() {
		dto.FinishedAt = snap.FinishedAt.Format(time.RFC3339)
	}
	return dto
}

// startRun handles POST /api/v1/runs.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var dto StartRunDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if dto.DocumentPath == "" {
		s.writeError(w, http.StatusBadRequest, "documentPath is required", "")
		return
	}
	if dto.OutputPath == "" {
		s.writeError(w, http.StatusBadRequest, "outputPath is required", "")
		return
	}

	mode, err := domain.ParseMode(dto.Mode)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid mode", err.Error())
		return
	}

	req := domain.RunRequest{
		DocumentPath:  dto.DocumentPath,
		OutputPath:    dto.OutputPath,
		Mode:          mode,
		Bucket:        dto.Bucket,
		ResultPrefix:  dto.ResultPrefix,
		LanguageHints: dto.LanguageHints,
		DPI:           dto.DPI,
		Workers:       dto.Workers,
		CleanupInput:  dto.CleanupInput,
	}
	if dto.PollTimeoutSeconds > 0 {
		req.PollTimeout = time.Duration(dto.PollTimeoutSeconds) * time.Second
	}

	runID, err := s.runner.StartRun(s.runCtx, req)
	if err != nil {
		s.writeRunnerError(w, err)
		return
	}

	s.logger.Info().
		Str("run_id", runID).
		Str("document", dto.DocumentPath).
		Str("mode", dto.Mode).
		Msg("run started over HTTP")

	snap, _ := s.runner.Snapshot(runID)
	snap.ID = runID

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(runDTO(snap))
}

// getRun handles GET /api/v1/runs/{runID}.
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	snap, ok := s.runner.Snapshot(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown run", runID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runDTO(snap))
}

// cancelRun handles DELETE /api/v1/runs/{runID}.
func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := s.runner.Cancel(runID); err != nil {
		s.writeError(w, http.StatusNotFound, "unknown run", runID)
		return
	}

	s.logger.Info().Str("run_id", runID).Msg("run cancelled over HTTP")
	w.WriteHeader(http.StatusNoContent)
}

// writeRunnerError maps orchestrator errors onto HTTP statuses.
func (s *Server) writeRunnerError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrRunActive):
		status = http.StatusConflict
	case domain.IsInputError(err), domain.IsConfigError(err):
		status = http.StatusBadRequest
	}
	s.writeError(w, status, "failed to start run", err.Error())
}

func (s *Server) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{"error": message}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}
