package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/aretw0/diagram/internal/logging"
	"github.com/aretw0/diagram/internal/presentation/graph"
	"github.com/aretw0/diagram/pkg/domain"
	"github.com/aretw0/diagram/pkg/registry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TopicDiagrams is the SSE topic carrying the names of changed diagram types.
const TopicDiagrams = "diagrams"

// Server serves the administrative API next to the WebSocket endpoint.
type Server struct {
	Registry *registry.Registry
	Streams  *StreamManager

	websocket http.Handler
	gatherer  prometheus.Gatherer
	version   string
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithWebSocket mounts the WebSocket handler at /ws.
func WithWebSocket(h http.Handler) Option {
	return func(s *Server) {
		s.websocket = h
	}
}

// WithGatherer serves the metrics of g at /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithStreams shares a stream manager, so that other components can broadcast.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler for a session registry.
func NewHandler(reg *registry.Registry, opts ...Option) http.Handler {
	s := &Server{
		Registry: reg,
		version:  "dev",
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/events", s.SubscribeEvents)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Get("/{clientID}", s.GetSession)
		r.Get("/{clientID}/mermaid", s.GetSessionMermaid)
		r.Delete("/{clientID}", s.DeleteSession)
	})

	if s.websocket != nil {
		r.Handle("/ws", s.websocket)
	}
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionInfo is the administrative view of one live session.
type SessionInfo struct {
	ClientID        string            `json:"client_id"`
	Revision        int64             `json:"revision"`
	ModelID         string            `json:"model_id"`
	LayoutKind      string            `json:"layout_kind"`
	Options         map[string]string `json:"options"`
	Connected       bool              `json:"connected"`
	PendingRequests int               `json:"pending_requests"`
}

func (s *Server) info(clientID string) (SessionInfo, bool) {
	sess, ok := s.Registry.Lookup(clientID)
	if !ok {
		return SessionInfo{}, false
	}
	return SessionInfo{
		ClientID:        clientID,
		Revision:        sess.Revision(),
		ModelID:         sess.Model().ID,
		LayoutKind:      sess.LayoutKind().String(),
		Options:         sess.Options(),
		Connected:       sess.RemoteEndpoint() != nil,
		PendingRequests: sess.PendingRequests(),
	}, true
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"app":      "diagramd",
		"version":  s.version,
		"sessions": s.Registry.Len(),
	})
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := []SessionInfo{}
	for _, id := range s.Registry.List() {
		if info, ok := s.info(id); ok {
			sessions = append(sessions, info)
		}
	}
	slices.SortFunc(sessions, func(a, b SessionInfo) int {
		if a.ClientID < b.ClientID {
			return -1
		}
		if a.ClientID > b.ClientID {
			return 1
		}
		return 0
	})
	writeJSON(w, http.StatusOK, sessions)
}

// GetSession handles GET /sessions/{clientID}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	info, ok := s.info(chi.URLParam(r, "clientID"))
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrSessionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// GetSessionMermaid handles GET /sessions/{clientID}/mermaid: the current model as
// a Mermaid flowchart. The highlight query parameter lists element ids to mark.
func (s *Server) GetSessionMermaid(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.Registry.Lookup(chi.URLParam(r, "clientID"))
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrSessionNotFound)
		return
	}

	var overlay *graph.Overlay
	if highlight := r.URL.Query().Get("highlight"); highlight != "" {
		overlay = &graph.Overlay{Highlighted: strings.Split(highlight, ",")}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.GenerateMermaid(sess.Model(), overlay))
}

// DeleteSession handles DELETE /sessions/{clientID}: the session is evicted.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	err := s.Registry.Evict(r.Context(), clientID)
	switch {
	case err == nil:
		s.logger.Info("Session evicted via API", "client_id", clientID)
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		s.logger.Error("Evict failed", "client_id", clientID, "err", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

// SubscribeEvents handles GET /events (SSE): one event per changed diagram type.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ch, cancel := s.Streams.Subscribe(TopicDiagrams)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: diagram\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
