package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/ReclaimHQ/ReclaimBot/internal/flowconfig"
)

// DefaultAddr is the default listen address for the API server.
const DefaultAddr = ":8080"

// shutdownTimeout bounds graceful shutdown on context cancellation.
const shutdownTimeout = 10 * time.Second

// Server exposes health and flow inspection endpoints, and mounts the Twilio
// inbound webhook when one is configured.
type Server struct {
	addr           string
	flows          *flowconfig.Store
	webhookHandler http.HandlerFunc
	httpServer     *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// WithTwilioWebhook mounts handler at /webhook/twilio.
func WithTwilioWebhook(handler http.HandlerFunc) ServerOption {
	return func(s *Server) {
		s.webhookHandler = handler
	}
}

// NewServer creates the API server over the loaded flow store.
func NewServer(flows *flowconfig.Store, opts ...ServerOption) *Server {
	s := &Server{
		addr:  DefaultAddr,
		flows: flows,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/flows", s.flowsHandler)
	if s.webhookHandler != nil {
		mux.HandleFunc("/webhook/twilio", s.webhookHandler)
	}

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("API server shutting down")
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, Success(map[string]string{"status": "healthy"}))
}

// flowSummary is the inspection view of a loaded flow definition.
type flowSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     int    `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	Steps       int    `json:"steps"`
}

// flowsHandler lists the loaded flow definitions.
func (s *Server) flowsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var summaries []flowSummary
	for _, flow := range s.flows.Flows() {
		summaries = append(summaries, flowSummary{
			ID:          flow.ID,
			Name:        flow.Name,
			Version:     flow.Version,
			Description: flow.Description,
			Steps:       len(flow.Steps),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	writeJSONResponse(w, http.StatusOK, Success(summaries))
}
