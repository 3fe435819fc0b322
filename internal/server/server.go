// Package server exposes the diagnosis pipeline over HTTP: a REST surface for
// running and querying diagnoses and a websocket for live stage updates.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mediflow/internal/coordinator"
	"mediflow/internal/diagnosis"
	"mediflow/internal/orchestrator"
	"mediflow/internal/store/metrics"
	"mediflow/internal/store/session"
	"mediflow/internal/watch"
)

const defaultHistoryLimit = 20

// Server holds the handler dependencies. All fields except the coordinator
// and session store are optional.
type Server struct {
	Coordinator *coordinator.Coordinator
	Sessions    session.Store
	Metrics     metrics.Store
	Orch        *orchestrator.Orchestrator
	Hub         *watch.Hub
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/diagnose", s.handleDiagnose)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Get("/sessions/{id}/watch", s.handleWatchSession)
		r.Get("/patients/{userID}/history", s.handleHistory)
		r.Get("/analytics", s.handleAnalytics)
		r.Get("/agents/active", s.handleActiveAgents)
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	var in diagnosis.PatientInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(in.Symptoms) == "" {
		writeError(w, http.StatusBadRequest, "symptoms are required")
		return
	}

	sess, err := s.Coordinator.Diagnose(r.Context(), in)
	if err != nil {
		log.Printf("server: diagnose: %v", err)
		writeError(w, http.StatusInternalServerError, "diagnosis could not be started")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}
	sess, err := s.Sessions.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		log.Printf("server: get session %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}
	limit := defaultHistoryLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	summaries, err := s.Sessions.History(r.Context(), userID, limit)
	if err != nil {
		log.Printf("server: history for %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "history lookup failed")
		return
	}
	if summaries == nil {
		summaries = []diagnosis.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"userId":   userID,
		"sessions": summaries,
	})
}

// analyticsWindows maps the window query parameter to a duration.
var analyticsWindows = map[string]time.Duration{
	"hour": time.Hour,
	"day":  24 * time.Hour,
	"week": 7 * 24 * time.Hour,
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	window := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("window")))
	if window == "" {
		window = "day"
	}
	span, ok := analyticsWindows[window]
	if !ok {
		writeError(w, http.StatusBadRequest, "window must be one of hour, day, week")
		return
	}
	since := time.Now().Add(-span)

	agg, err := s.Metrics.Aggregate(r.Context(), since)
	if err != nil {
		log.Printf("server: aggregate metrics: %v", err)
		writeError(w, http.StatusInternalServerError, "metrics aggregation failed")
		return
	}
	if agg == nil {
		agg = []diagnosis.AgentAggregate{}
	}
	counts, err := s.Sessions.StatusCounts(r.Context(), since)
	if err != nil {
		log.Printf("server: session status counts: %v", err)
		writeError(w, http.StatusInternalServerError, "metrics aggregation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"window":   window,
		"since":    since,
		"agents":   agg,
		"sessions": counts,
	})
}

func (s *Server) handleActiveAgents(w http.ResponseWriter, _ *http.Request) {
	agents := s.Orch.ActiveAgents()
	if agents == nil {
		agents = []orchestrator.ActiveAgent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents})
}

// Run serves until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
