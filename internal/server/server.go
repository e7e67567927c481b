// Package server exposes the HTTP API for the layout editor: project and
// layout CRUD, block operations, media uploads, agent runs, and the live
// reload WebSocket.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fiona/folio/internal/config"
	"github.com/fiona/folio/pkg/agent"
	"github.com/fiona/folio/pkg/live"
	"github.com/fiona/folio/pkg/project"
	"github.com/fiona/folio/pkg/snapshot"
)

// Options configures the HTTP server
type Options struct {
	Host string
	Port int
}

// Server is the editor HTTP server
type Server struct {
	options        Options
	server         *http.Server
	store          *project.Store
	provider       agent.ChatProvider
	agentCfg       config.AgentConfig
	renderer       snapshot.Renderer
	broadcaster    *live.Broadcaster
	logger         zerolog.Logger
	startTime      time.Time
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a new editor server
func NewServer(options Options, store *project.Store, provider agent.ChatProvider, agentCfg config.AgentConfig, renderer snapshot.Renderer, broadcaster *live.Broadcaster, logger zerolog.Logger) (*Server, error) {
	if options.Port == 0 {
		options.Port = 5001
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if store == nil {
		return nil, fmt.Errorf("project store is required")
	}

	return &Server{
		options:     options,
		store:       store,
		provider:    provider,
		agentCfg:    agentCfg,
		renderer:    renderer,
		broadcaster: broadcaster,
		logger:      logger,
		startTime:   time.Now(),
	}, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: s.Handler(),
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting editor server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start editor server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down editor server")

	// Wait for in-flight requests with timeout
	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown editor server: %w", err)
		}
	}

	s.logger.Info().Msg("Editor server stopped")
	return nil
}

// Handler returns the route table without starting a listener
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/projects", s.track(s.handleProjects))
	mux.HandleFunc("/api/layout", s.track(s.handleLayout))
	mux.HandleFunc("/api/block", s.track(s.handleBlock))
	mux.HandleFunc("/api/upload", s.track(s.handleUpload))
	mux.HandleFunc("/api/agent/run", s.track(s.handleAgentRun))
	mux.HandleFunc("/project-assets/", s.track(s.handleProjectAsset))
	if s.broadcaster != nil {
		mux.HandleFunc("/ws", s.broadcaster.HandleWS)
	}
	return mux
}

// track wraps a handler with shutdown and in-flight accounting
func (s *Server) track(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.shutdownMu.RLock()
		if s.isShuttingDown {
			s.shutdownMu.RUnlock()
			http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
			return
		}
		s.shutdownMu.RUnlock()

		s.inFlightReqs.Add(1)
		defer s.inFlightReqs.Done()

		next(w, r)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).Seconds(),
		"timestamp": time.Now().UnixMilli(),
	}

	writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
