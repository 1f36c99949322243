package live

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/memval/pkg/exprupdate"
	"github.com/vango-dev/memval/pkg/memval"
)

// Server exposes a Registry over HTTP and WebSocket.
type Server struct {
	registry *Registry
	config   *Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
	router   chi.Router

	connections atomic.Int64
}

// New creates a Server for registry. A nil config uses DefaultConfig.
func New(registry *Registry, config *Config) *Server {
	config = config.withDefaults()
	s := &Server{
		registry: registry,
		config:   config,
		logger:   config.Logger.With("component", "live"),
		upgrader: websocket.Upgrader{
			CheckOrigin: config.CheckOrigin,
		},
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Connections returns the number of open WebSocket streams.
func (s *Server) Connections() int64 {
	return s.connections.Load()
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/values", s.handleList)
	r.Route("/values/{name}", func(r chi.Router) {
		r.Get("/", s.handleGet)
		r.Put("/", s.handleSet)
		r.Delete("/", s.handleDelete)
		r.Post("/eval", s.handleEval)
		r.Get("/ws", s.handleStream)
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))

	return r
}

// lookup resolves the {name} parameter or writes a 404.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (string, memval.Observable[any], bool) {
	name := chi.URLParam(r, "name")
	obs, ok := s.registry.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown value "+name)
		return name, nil, false
	}
	return name, obs, true
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"values": s.registry.Names()})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	name, obs, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newState(name, obs.Snapshot()))
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	name, obs, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var value any
	if err := s.decode(w, r, &value); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newState(name, obs.Emit(literal(value))))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	name, obs, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newState(name, obs.Emit(memval.Absent[any]())))
}

func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	name, obs, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var body struct {
		Expr string `json:"expr"`
	}
	if err := s.decode(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	snap, err := exprupdate.Run(obs, body.Expr)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newState(name, snap))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	name, obs, ok := s.lookup(w, r)
	if !ok {
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Warn("websocket upgrade failed", "name", name, "error", err)
		return
	}

	c := newConn(s, ws, name, obs)
	s.connections.Add(1)
	defer s.connections.Add(-1)

	c.serve()
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxMessageSize)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorReply{Error: msg})
}
