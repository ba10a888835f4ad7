package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/formsync-dev/formsync/pkg/formdata"
	"github.com/formsync-dev/formsync/pkg/middleware"
	"github.com/formsync-dev/formsync/pkg/reconcile"
	"github.com/formsync-dev/formsync/pkg/store"
)

// Server is the HTTP/WebSocket sync server. Each form tracked by the
// server has its own reconciler holding the canonical snapshot and a hub
// of WebSocket watchers notified on every change.
type Server struct {
	config Config
	logger *slog.Logger

	// Snapshot persistence
	store     store.SnapshotStore
	ownsStore bool

	// WebSocket upgrader
	upgrader websocket.Upgrader

	// Router with middleware applied
	handler http.Handler

	// Per-form state, created lazily on first touch
	mu    sync.Mutex
	forms map[string]*formState

	// HTTP server
	httpServer *http.Server
}

// formState pairs one form's reconciler with its watcher hub.
type formState struct {
	rec *reconcile.Reconciler
	hub *watchHub
}

// New creates a Server with the given configuration. Zero-valued fields
// are filled from DefaultConfig.
func New(config Config) (*Server, error) {
	defaults := DefaultConfig()
	if config.Addr == "" {
		config.Addr = defaults.Addr
	}
	if config.MaxBodyBytes == 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if config.ReadBufferSize == 0 {
		config.ReadBufferSize = defaults.ReadBufferSize
	}
	if config.WriteBufferSize == 0 {
		config.WriteBufferSize = defaults.WriteBufferSize
	}
	if config.CheckOrigin == nil {
		config.CheckOrigin = defaults.CheckOrigin
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.PingInterval == 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.PongWait == 0 {
		config.PongWait = defaults.PongWait
	}
	if config.WatchBuffer == 0 {
		config.WatchBuffer = defaults.WatchBuffer
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}

	if config.PongWait <= config.PingInterval {
		return nil, fmt.Errorf("server: PongWait (%v) must exceed PingInterval (%v)", config.PongWait, config.PingInterval)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default().With("component", "server")
	}

	snapStore := config.Store
	ownsStore := false
	if snapStore == nil {
		snapStore = store.NewMemoryStore()
		ownsStore = true
	}

	s := &Server{
		config:    config,
		logger:    logger,
		store:     snapStore,
		ownsStore: ownsStore,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		forms: make(map[string]*formState),
	}
	s.handler = s.routes()

	return s, nil
}

// routes builds the chi router with the middleware chain applied.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.OpenTelemetry(
		middleware.WithRequestFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/metrics"
		}),
	))
	r.Use(middleware.Metrics())
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/forms", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/{form}/snapshot", s.handleSnapshot)
		r.Get("/{form}/watch", s.handleWatch)
		r.Get("/{form}", s.handleGet)
		r.Delete("/{form}", s.handleDelete)
	})

	return r
}

// requestLogger logs each completed request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}

// form returns the state for a form ID, creating it on first touch. A new
// form is seeded from the snapshot store when one is persisted there.
func (s *Server) form(ctx context.Context, id string) *formState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.forms[id]; ok {
		return st
	}

	rec := reconcile.New(
		reconcile.WithName(id),
		reconcile.WithLogger(s.logger),
	)
	if snap, err := s.store.Load(ctx, id); err == nil {
		rec.Reset(snap)
	} else if !store.IsNotFound(err) {
		s.logger.Warn("snapshot load failed", "form", id, "error", err)
	}

	hub := newWatchHub(s.logger.With("form", id))
	rec.OnChange(func(diff *formdata.DiffResult) {
		hub.broadcast(diff)
	})

	st := &formState{rec: rec, hub: hub}
	s.forms[id] = st
	return st
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Handler returns an http.Handler for mounting in external routers.
//
// Example:
//
//	r := chi.NewRouter()
//	r.Mount("/sync", srv.Handler())
//	http.ListenAndServe(":3000", r)
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run starts the server and blocks until a shutdown signal or listen error.
func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", "addr", s.config.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil

	case <-shutdown:
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server: watchers are disconnected,
// in-flight requests drain, and a server-owned store is closed.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.mu.Lock()
	for _, st := range s.forms {
		st.hub.closeAll()
	}
	s.mu.Unlock()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			s.logger.Error("store close error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Config returns the server configuration.
func (s *Server) Config() Config {
	return s.config
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}
