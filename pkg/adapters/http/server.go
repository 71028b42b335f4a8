package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes a ports.Runtime over HTTP.
//
//	GET    /health
//	GET    /info
//	GET    /sessions
//	GET    /sessions/{id}
//	DELETE /sessions/{id}
//	POST   /sessions/{id}/tick?tree=ID
//	GET    /sessions/{id}/nodes
//	GET    /events[?session_id=ID&watch=status,nodes,variables]
//	GET    /metrics
type Server struct {
	Runtime ports.Runtime
	Streams *StreamManager

	watcher  ports.Watchable
	gatherer prometheus.Gatherer
	version  string
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithWatcher streams tree reloads to /events clients without a session.
func WithWatcher(w ports.Watchable) Option {
	return func(s *Server) { s.watcher = w }
}

// WithMetrics serves the gatherer on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewHandler creates a new HTTP handler for the runtime.
func NewHandler(rt ports.Runtime, opts ...Option) http.Handler {
	s := &Server{
		Runtime: rt,
		Streams: NewStreamManager(),
		version: "dev",
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/events", s.SubscribeEvents)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/tick", s.Tick)
			r.Get("/nodes", s.GetNodes)
		})
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Tick handles POST /sessions/{id}/tick. The tree query parameter names the
// tree a new session starts from. The resulting diff is broadcast to the
// session's event subscribers.
func (s *Server) Tick(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	treeID := r.URL.Query().Get("tree")

	before, err := s.Runtime.State(r.Context(), sessionID)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		s.fail(w, "Tick", err)
		return
	}

	after, err := s.Runtime.Tick(r.Context(), sessionID, treeID)
	if err != nil {
		s.fail(w, "Tick", err)
		return
	}

	if diff := domain.Diff(before, after); diff != nil {
		if bytes, err := json.Marshal(diff); err == nil {
			s.Streams.Broadcast(sessionID, string(bytes))
		}
	}
	s.respond(w, "Tick", after)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.Runtime.State(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "GetSession", err)
		return
	}
	s.respond(w, "GetSession", state)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Runtime.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, "DeleteSession", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Runtime.Sessions(r.Context())
	if err != nil {
		s.fail(w, "ListSessions", err)
		return
	}
	s.respond(w, "ListSessions", ids)
}

// GetNodes handles GET /sessions/{id}/nodes.
func (s *Server) GetNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.Runtime.Inspect(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "GetNodes", err)
		return
	}
	s.respond(w, "GetNodes", nodes)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, "GetHealth", map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.respond(w, "GetInfo", map[string]string{
		"app":     "arbor-http",
		"version": strings.TrimSpace(s.version),
	})
}

func (s *Server) respond(w http.ResponseWriter, op string, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(op+" response encode failed", "err", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrTreeNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrStateMismatch):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, fmt.Sprintf("%s error: %v", op, err), http.StatusInternalServerError)
		s.logger.Error(op+" failed", "err", err)
	}
}
