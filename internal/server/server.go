package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/escolab/pi-pipeline/internal/dispatch"
	"github.com/escolab/pi-pipeline/internal/notify"
	"github.com/escolab/pi-pipeline/internal/repository"
)

// Server is the client-facing HTTP surface: job submission, job lookup and
// the push-notification socket.
type Server struct {
	jobs       repository.JobRepository
	dispatcher *dispatch.Dispatcher
	hub        *notify.Hub
	uploadDir  string
	health     func(ctx context.Context) error
	logger     *slog.Logger
}

func New(jobs repository.JobRepository, dispatcher *dispatch.Dispatcher, hub *notify.Hub, uploadDir string, health func(ctx context.Context) error, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		jobs:       jobs,
		dispatcher: dispatcher,
		hub:        hub,
		uploadDir:  uploadDir,
		health:     health,
		logger:     logger,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestLogger)
	r.HandleFunc("/api/jobs", s.handleSubmitJob).Methods(http.MethodPost)
	r.HandleFunc("/api/jobs", s.handleListJobs).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs/{id}", s.handleGetJob).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.Error("healthz failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
