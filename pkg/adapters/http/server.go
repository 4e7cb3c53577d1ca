// Package http exposes the scheduler to operators over HTTP.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/cadence/internal/logging"
	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/procedure"
	"github.com/aretw0/cadence/pkg/telemetry"
)

// Scheduler is the control surface of the running station.
type Scheduler interface {
	CurrentProgress() domain.Progress
	Subscribe(buffer int) (<-chan domain.Progress, func())
	StartByName(name string) error
	SwitchByName(name string) error
	RequestStop()
}

// Catalog lists the registered procedures.
type Catalog interface {
	Names() []string
	Get(name string) (*procedure.State, error)
}

// Server serves the operator API.
type Server struct {
	Scheduler Scheduler
	Catalog   Catalog
	Telemetry telemetry.Source
	Metrics   http.Handler
	Version   string
	Logger    *slog.Logger
}

type Option func(*Server)

// WithTelemetry serves the latest snapshot of src on /telemetry/latest.
func WithTelemetry(src telemetry.Source) Option {
	return func(s *Server) {
		s.Telemetry = src
	}
}

// WithMetrics serves h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.Metrics = h
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.Version = v
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// NewHandler creates a new HTTP handler for the scheduler.
func NewHandler(sched Scheduler, catalog Catalog, opts ...Option) http.Handler {
	s := &Server{
		Scheduler: sched,
		Catalog:   catalog,
		Version:   "dev",
		Logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/procedures", s.ListProcedures)
	r.Get("/procedures/{name}", s.GetProcedure)
	r.Post("/procedures/{name}/start", s.StartProcedure)
	r.Post("/switch", s.Switch)
	r.Post("/stop", s.Stop)
	r.Get("/progress", s.GetProgress)
	r.Get("/events", s.SubscribeEvents)
	r.Get("/telemetry/latest", s.GetLatestTelemetry)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ProcedureInfo describes a registered procedure.
type ProcedureInfo struct {
	Name      string   `json:"name"`
	Exits     []string `json:"exits"`
	StepCount int      `json:"step_count"`
	Source    string   `json:"source,omitempty"`
}

func describe(s *procedure.State, withSource bool) ProcedureInfo {
	info := ProcedureInfo{Name: s.Name(), Exits: s.Exits(), StepCount: s.StepCount()}
	if withSource {
		info.Source = s.Source()
	}
	return info
}

// SwitchRequest is the body of POST /switch.
type SwitchRequest struct {
	Procedure string `json:"procedure"`
}

// GetHealth handles the GET /healthz request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "cadence-http",
		"version": s.Version,
	})
}

// ListProcedures handles the GET /procedures request.
func (s *Server) ListProcedures(w http.ResponseWriter, r *http.Request) {
	names := s.Catalog.Names()
	out := make([]ProcedureInfo, 0, len(names))
	for _, name := range names {
		st, err := s.Catalog.Get(name)
		if err != nil {
			continue
		}
		out = append(out, describe(st, false))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// GetProcedure handles the GET /procedures/{name} request.
func (s *Server) GetProcedure(w http.ResponseWriter, r *http.Request) {
	st, err := s.Catalog.Get(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, describe(st, true))
}

// StartProcedure handles the POST /procedures/{name}/start request.
func (s *Server) StartProcedure(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.Scheduler.StartByName(name); err != nil {
		s.writeError(w, err)
		return
	}
	s.Logger.Info("start requested", "procedure", name, "remote", r.RemoteAddr)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"requested": name})
}

// Switch handles the POST /switch request.
func (s *Server) Switch(w http.ResponseWriter, r *http.Request) {
	var body SwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Procedure == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.Logger.Warn("Switch: Invalid request body", "error", err)
		return
	}
	if err := s.Scheduler.SwitchByName(body.Procedure); err != nil {
		s.writeError(w, err)
		return
	}
	s.Logger.Info("switch requested", "procedure", body.Procedure, "remote", r.RemoteAddr)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"requested": body.Procedure})
}

// Stop handles the POST /stop request.
func (s *Server) Stop(w http.ResponseWriter, r *http.Request) {
	s.Scheduler.RequestStop()
	s.Logger.Info("stop requested", "remote", r.RemoteAddr)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"requested": "stop"})
}

// GetProgress handles the GET /progress request.
func (s *Server) GetProgress(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Scheduler.CurrentProgress())
}

// GetLatestTelemetry handles the GET /telemetry/latest request.
func (s *Server) GetLatestTelemetry(w http.ResponseWriter, r *http.Request) {
	if s.Telemetry == nil {
		http.Error(w, "Telemetry not configured", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, s.Telemetry.Latest())
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrUnknownProcedure) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, fmt.Sprintf("Request failed: %v", err), http.StatusInternalServerError)
	s.Logger.Error("request failed", "error", err)
}
