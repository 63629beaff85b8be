// Package server is the HTTP front end of the blob store. It serves the
// record routes, health and stats endpoints, and the Connect service on one
// listener, and composes the engine, auth, and observability subsystems from
// a single Config.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"

	"github.com/tailored-agentic-units/blobstore/auth"
	"github.com/tailored-agentic-units/blobstore/engine"
	"github.com/tailored-agentic-units/blobstore/observability"
	"github.com/tailored-agentic-units/blobstore/rpc"
	"github.com/tailored-agentic-units/blobstore/store"
)

const shutdownTimeout = 10 * time.Second

// Option configures a Server after config-driven initialization.
type Option func(*Server)

// WithLogger sets the logger for access lines and engine events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithStore overrides the config-created durable store.
func WithStore(st store.Store) Option {
	return func(s *Server) { s.store = st }
}

// Server serves the blob store over HTTP.
type Server struct {
	addr       string
	logger     *slog.Logger
	store      store.Store
	engine     *engine.Engine
	stats      *observability.Stats
	httpServer *http.Server

	mu        sync.RWMutex
	listener  net.Listener
	readyCh   chan struct{}
	readyOnce sync.Once
}

// New builds a Server and every subsystem behind it from cfg.
func New(cfg *Config, opts ...Option) (*Server, error) {
	s := &Server{
		addr:    cfg.Addr,
		logger:  slog.Default(),
		stats:   observability.NewStats(),
		readyCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		st, err := store.New(&cfg.Engine.Store, store.WithLogger(s.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create store: %w", err)
		}
		s.store = st
	}

	observer := observability.NewFanout(
		observability.NewSlogObserver(s.logger),
		s.stats,
	)

	eng, err := engine.New(&cfg.Engine,
		engine.WithStore(s.store),
		engine.WithObserver(observer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	s.engine = eng

	authz := auth.New(&cfg.Auth)
	if authz.Required(auth.ScopeWrite) && cfg.Auth.WriteToken == "" {
		s.logger.Warn("no write token configured, all writes will be refused")
	}

	mux := http.NewServeMux()
	h := &handler{
		engine: eng,
		authz:  authz,
		stats:  s.stats,
		logger: s.logger,
	}
	h.register(mux)

	rpcOpts := []connect.HandlerOption{
		connect.WithInterceptors(rpc.NewAuthInterceptor(authz)),
	}
	if limit := cfg.Engine.MaxPayloadBytes; limit > 0 {
		// Leave room for the message envelope around the payload.
		rpcOpts = append(rpcOpts, connect.WithReadMaxBytes(int(limit)+1024))
	}
	rpcPath, rpcHandler := rpc.NewHandler(eng, rpcOpts...)
	mux.Handle(rpcPath, rpcHandler)

	s.httpServer = &http.Server{
		Handler:           logRequests(s.logger, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler returns the root handler, for mounting in tests or other servers.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Engine returns the storage engine behind the server.
func (s *Server) Engine() *engine.Engine {
	return s.engine
}

// Stats returns the engine event counters.
func (s *Server) Stats() observability.Snapshot {
	return s.stats.Snapshot()
}

// Ready is closed once the server is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.readyCh
}

// Addr returns the bound listener address, or "" before Serve binds.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve listens on the configured address and serves until ctx is cancelled,
// then drains in-flight requests. It returns nil after a clean shutdown or
// after Close.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.readyCh) })

	s.logger.Info("listening", "addr", ln.Addr().String())

	// done ends the shutdown watcher when Serve returns for any other reason.
	done := make(chan struct{})
	shutdownErr := make(chan error, 1)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			shutdownErr <- nil
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		shutdownErr <- s.httpServer.Shutdown(shutdownCtx)
	}()

	err = s.httpServer.Serve(ln)
	close(done)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-shutdownErr
}

// Close stops the server immediately.
func (s *Server) Close() error {
	return s.httpServer.Close()
}
