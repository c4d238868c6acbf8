package livereload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"git.home.luguber.info/inful/elmtasks/internal/config"
	ferrors "git.home.luguber.info/inful/elmtasks/internal/foundation/errors"
	"git.home.luguber.info/inful/elmtasks/internal/logfields"
	"git.home.luguber.info/inful/elmtasks/internal/pipeline"
)

// Server is the development server: reload stream, client script, build
// status and optionally the bundle itself.
type Server struct {
	port        int
	serveStatic bool
	hub         *Hub
	pipeline    *pipeline.Pipeline
	metrics     http.Handler
	logger      *slog.Logger
	srv         *http.Server
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) ServerOption { return func(s *Server) { s.metrics = h } }

// WithServerLogger sets the server logger.
func WithServerLogger(l *slog.Logger) ServerOption { return func(s *Server) { s.logger = l } }

// NewServer builds a server for p that streams events from hub.
func NewServer(cfg config.LiveReloadConfig, hub *Hub, p *pipeline.Pipeline, opts ...ServerOption) *Server {
	s := &Server{
		port:        cfg.Port,
		serveStatic: cfg.ServeStatic,
		hub:         hub,
		pipeline:    p,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/livereload", cors(s.hub))
	mux.HandleFunc("/livereload.js", s.handleScript)
	mux.HandleFunc("/errors", s.handleErrors)
	mux.HandleFunc("/status", s.handleStatus)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	if s.serveStatic {
		mux.Handle("/", noCache(http.FileServer(http.Dir(s.pipeline.DestDir()))))
	}
	return mux
}

// Start binds the configured port and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "livereload server failed to bind").
			WithContext("port", s.port).
			Build()
	}
	return s.StartWithListener(ctx, ln)
}

// StartWithListener serves on ln in the background.
func (s *Server) StartWithListener(_ context.Context, ln net.Listener) error {
	// No read/write timeouts: SSE connections are long-lived.
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second, IdleTimeout: 300 * time.Second}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("livereload server stopped", logfields.Error(err))
		}
	}()
	s.logger.Info("Live reload server started", slog.String("addr", ln.Addr().String()))
	return nil
}

// Shutdown disconnects reload clients and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Shutdown()
	if s.srv == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("livereload server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	if _, err := fmt.Fprintf(w, clientScript, s.port); err != nil {
		s.logger.Error("failed to write livereload script", logfields.Error(err))
	}
}

type statusResponse struct {
	pipeline.StateSnapshot
	Errors  int `json:"errors"`
	Clients int `json:"clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, statusResponse{
		StateSnapshot: s.pipeline.State().Snapshot(),
		Errors:        s.pipeline.Errors().Len(),
		Clients:       s.hub.Clients(),
	})
}

func (s *Server) handleErrors(w http.ResponseWriter, _ *http.Request) {
	entries := s.pipeline.Errors().Entries()
	if entries == nil {
		entries = []pipeline.BuildError{}
	}
	s.writeJSON(w, entries)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", logfields.Error(err))
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}

// clientScript connects to the reload stream. The first event is the
// baseline; later successful builds reload the page and failures are
// reported on the console.
const clientScript = `(() => {
  if (window.__ELMTASKS_LR__) return;
  window.__ELMTASKS_LR__ = true;
  function connect() {
    const es = new EventSource('http://localhost:%d/livereload');
    let current = null;
    es.onmessage = (e) => {
      try {
        const p = JSON.parse(e.data);
        if (current === null) { current = p.build; return; }
        if (p.build === current) return;
        current = p.build;
        if (p.ok) { location.reload(); } else { console.error('[elmtasks] ' + p.message); }
      } catch (_) {}
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();`
