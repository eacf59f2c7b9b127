// Package gateway exposes the orchestration engine over HTTP with SSE
// streaming responses.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orbit-agents/orbit/internal/agent"
	"github.com/orbit-agents/orbit/internal/sessions"
	"github.com/orbit-agents/orbit/pkg/models"
)

// Server serves the session API. A session runs at most one loop at a time;
// concurrent messages to the same session are rejected rather than queued.
type Server struct {
	loop   *agent.Loop
	store  sessions.Store
	logger *slog.Logger

	mu      sync.Mutex
	running map[string]bool

	httpServer    *http.Server
	metricsServer *http.Server
}

// Options configures the server's listen addresses.
type Options struct {
	Addr        string
	MetricsAddr string
}

// NewServer wires the HTTP surface over the loop and store.
func NewServer(loop *agent.Loop, store sessions.Store, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		loop:    loop,
		store:   store,
		logger:  logger,
		running: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", s.handleStartSession)
	mux.HandleFunc("POST /v1/sessions/{id}/messages", s.handleContinueSession)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	s.metricsServer = &http.Server{
		Addr:              opts.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start runs both listeners until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		s.logger.Info("metrics server listening", "addr", s.metricsServer.Addr)
		if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.metricsServer.Shutdown(shutdownCtx)
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type startSessionRequest struct {
	OwnerID string `json:"owner_id"`
	Message string `json:"message"`
}

type continueSessionRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	session := &models.Session{
		OwnerID: req.OwnerID,
		State:   models.StateIdle,
	}
	if err := s.store.Create(r.Context(), session); err != nil {
		s.logger.Error("create session failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	s.streamRun(w, r, session, req.Message)
}

func (s *Server) handleContinueSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req continueSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	session, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sessions.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("load session failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if session.State.Terminal() {
		writeError(w, http.StatusConflict, fmt.Sprintf("session is %s", session.State))
		return
	}

	s.streamRun(w, r, session, req.Message)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, sessions.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// streamRun drives one loop run, relaying events as SSE until the terminal
// event. The request context closes the sink on client disconnect so the loop
// stops spending budget on an unwatched session.
func (s *Server) streamRun(w http.ResponseWriter, r *http.Request, session *models.Session, message string) {
	if !s.acquire(session.ID) {
		writeError(w, http.StatusConflict, "session is already processing a message")
		return
	}
	defer s.release(session.ID)

	sink, err := NewSSESink(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx := r.Context()
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			sink.Close()
		case <-watchDone:
		}
	}()

	// The loop runs on a background context: a disconnect aborts the session
	// through the sink, not by cancelling tools midway.
	if _, err := s.loop.Run(context.WithoutCancel(ctx), session, message, sink); err != nil {
		s.logger.Warn("session run ended with error", "session_id", session.ID, "error", err)
	}
}

func (s *Server) acquire(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[sessionID] {
		return false
	}
	s.running[sessionID] = true
	return true
}

func (s *Server) release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, sessionID)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
