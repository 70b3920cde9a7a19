package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/domain"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/delivery/queue"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/delivery/recovery"
)

// Service is the delivery control surface the HTTP server exposes.
type Service interface {
	Enqueue(spec domain.JobSpec) (*domain.Job, error)
	Job(id string) (*domain.Job, error)
	Jobs(f queue.Filter) []*domain.Job
	Cancel(jobID, reason string) (*domain.Job, error)
	Stats() queue.Stats
	EstimatedWait(p domain.Priority) time.Duration
	Session(id string) (*domain.RecoverySession, error)
	Decide(sessionID string, decision recovery.HumanDecision) (*domain.Job, error)
}

// Server provides HTTP endpoints for health monitoring and job control.
type Server struct {
	monitor *Monitor
	service Service
	server  *http.Server
	log     *slog.Logger
}

// NewServer creates a new health server.
func NewServer(monitor *Monitor, service Service, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor: monitor,
		service: service,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: slog.Default().With("component", "http"),
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /estimate", s.handleEstimate)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("POST /jobs", s.handleEnqueue)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("POST /jobs/{id}/cancel", s.handleCancel)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /sessions/{id}/decision", s.handleDecision)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())
	code := http.StatusOK
	if report.SystemStatus == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": string(report.SystemStatus)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.CheckHealth(r.Context()))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Stats())
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	p := domain.Priority(r.URL.Query().Get("priority"))
	if p == "" {
		p = domain.PriorityNormal
	}
	if !p.Valid() {
		s.writeError(w, fmt.Errorf("%w: %q", queue.ErrInvalidPriority, p))
		return
	}
	wait := s.service.EstimatedWait(p)
	writeJSON(w, http.StatusOK, map[string]any{
		"priority":     p,
		"wait_seconds": int64(wait.Seconds()),
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := queue.Filter{
		Priority:  domain.Priority(q.Get("priority")),
		WorkType:  q.Get("work_type"),
		ProjectID: q.Get("project_id"),
	}
	for _, st := range q["status"] {
		f.Statuses = append(f.Statuses, domain.JobStatus(st))
	}
	writeJSON(w, http.StatusOK, s.service.Jobs(f))
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var spec domain.JobSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body: " + err.Error()})
		return
	}
	job, err := s.service.Enqueue(spec)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.service.Job(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body: " + err.Error()})
			return
		}
	}
	if body.Reason == "" {
		body.Reason = "cancelled via api"
	}
	job, err := s.service.Cancel(r.PathValue("id"), body.Reason)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	var d recovery.HumanDecision
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body: " + err.Error()})
		return
	}
	job, err := s.service.Decide(r.PathValue("id"), d)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.log.Error("Request failed", "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, queue.ErrJobNotFound), errors.Is(err, recovery.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, queue.ErrInvalidJob), errors.Is(err, queue.ErrInvalidPriority):
		return http.StatusBadRequest
	case errors.Is(err, queue.ErrInvalidTransition),
		errors.Is(err, recovery.ErrSessionNotEscalated),
		errors.Is(err, recovery.ErrSessionClosed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
