// Package api serves finished records, the run index and live job events
// over HTTP and WebSocket.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dimits-ts/syndisco/pkg/config"
	derrors "github.com/dimits-ts/syndisco/pkg/errors"
	"github.com/dimits-ts/syndisco/pkg/index"
	"github.com/dimits-ts/syndisco/pkg/metrics"
	"github.com/dimits-ts/syndisco/yarn"
)

// Options wires the server to its data sources. Discussions is required;
// the others are optional and their endpoints answer 503 when unset.
type Options struct {
	Config      config.ServerConfig
	Discussions *yarn.FileStore
	Annotations *yarn.FileStore
	Index       *index.Index
	Metrics     *metrics.Collector
	Hub         *Hub
	Version     string
	Logger      *zap.Logger
}

// Server is the HTTP server.
type Server struct {
	opts       Options
	router     *Router
	handler    http.Handler
	httpServer *http.Server
	logger     *zap.Logger

	mu       sync.RWMutex
	running  bool
	listener net.Listener
}

// NewServer builds the router and middleware chain.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Hub == nil {
		opts.Hub = NewHub(opts.Logger)
	}
	if opts.Config.ReadTimeout == 0 {
		opts.Config.ReadTimeout = 15 * time.Second
	}
	if opts.Config.WriteTimeout == 0 {
		opts.Config.WriteTimeout = 15 * time.Second
	}
	logger := opts.Logger.With(zap.String("component", "api"))

	s := &Server{opts: opts, router: NewRouter(), logger: logger}
	s.registerRoutes()

	var rec RequestRecorder
	if opts.Metrics != nil {
		rec = opts.Metrics
	}
	s.handler = Chain(s.router,
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		LoggingMiddleware(logger, rec),
		CORSMiddleware(opts.Config.AllowedOrigins),
	)
	return s
}

func (s *Server) registerRoutes() {
	h := &handlers{opts: s.opts}
	s.router.GET("/health", h.health)
	s.router.Handle(http.MethodGet, "/ws", NewWebSocketHandler(s.opts.Hub, s.opts.Config.AllowedOrigins))
	s.router.GET("/metrics", h.metrics)
	s.router.GET("/api/discussions", h.listDiscussions)
	s.router.GET("/api/discussions/:id", h.getDiscussion)
	s.router.GET("/api/discussions/:id/annotations", h.discussionAnnotations)
	s.router.GET("/api/runs", h.listRuns)
	s.router.GET("/api/runs/:id", h.getRun)
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Router returns the router.
func (s *Server) Router() *Router { return s.router }

// Hub returns the event hub.
func (s *Server) Hub() *Hub { return s.opts.Hub }

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Config.Addr
}

// Start binds the listener, starts the hub and serves in the background.
// Binding errors are returned directly.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return derrors.Internal(derrors.ErrInternalError, "server is already running")
	}
	ln, err := net.Listen("tcp", s.opts.Config.Addr)
	if err != nil {
		return derrors.IOWrap(err, derrors.ErrIOWriteFailed, "failed to bind server address").
			WithContext("addr", s.opts.Config.Addr).
			WithSuggestion("Choose a free port with server.addr or --addr")
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.opts.Config.ReadTimeout,
		WriteTimeout: s.opts.Config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	s.running = true

	go s.opts.Hub.Run()
	go func() {
		s.logger.Info("server listening", zap.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown stops accepting connections, closes WebSocket clients and waits
// for in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	s.logger.Info("server shutting down")
	s.opts.Hub.Stop()
	return s.httpServer.Shutdown(ctx)
}

// IsRunning reports whether Start succeeded and Shutdown was not called.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
