// Package server wires configuration, handlers and middleware into a running
// HTTP server for the conversion service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/teilomillet/mdconvert/config"
	"github.com/teilomillet/mdconvert/server/handlers"
	"github.com/teilomillet/mdconvert/server/metrics"
	"github.com/teilomillet/mdconvert/server/middleware"
	"github.com/teilomillet/mdconvert/server/routing"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Server represents the HTTP server
type Server struct {
	cfg        *config.Config
	logger     *zap.Logger
	watcher    config.Watcher
	metrics    *metrics.Metrics
	convert    *handlers.ConvertHandler
	queue      *middleware.QueueMiddleware
	router     *routing.Router
	httpServer *http.Server
	addr       atomic.Value
}

// NewServer creates a server from a static configuration.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	return newServer(cfg, nil, logger)
}

// NewServerWithWatcher creates a server that applies configuration updates
// published by watcher while it runs.
func NewServerWithWatcher(watcher config.Watcher, logger *zap.Logger) (*Server, error) {
	if watcher == nil {
		return nil, fmt.Errorf("config watcher is required")
	}
	return newServer(watcher.GetCurrentConfig(), watcher, logger)
}

func newServer(cfg *config.Config, watcher config.Watcher, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := metrics.NewMetrics()

	convert, err := handlers.NewConvertHandler(cfg, logger, m)
	if err != nil {
		return nil, fmt.Errorf("create convert handler: %w", err)
	}

	var queue *middleware.QueueMiddleware
	if cfg.Queue.Enabled {
		queue = middleware.NewQueueMiddleware(middleware.QueueConfig{
			MaxSize: cfg.Queue.MaxSize,
			Metrics: m,
		})
	}

	router := routing.NewRouter(cfg, routing.DefaultHandlers(convert, m), routing.Dependencies{
		Metrics: m,
		Limiter: middleware.NewLimiter(cfg.RateLimit),
		Queue:   queue,
		CORS:    convert.CORS,
		Expose:  convert.IsDevelopment,
	}, logger)

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		watcher: watcher,
		metrics: m,
		convert: convert,
		queue:   queue,
		router:  router,
		httpServer: &http.Server{
			Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:        router,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
			ErrorLog:       zap.NewStdLog(logger),
		},
	}
	s.addr.Store("")

	return s, nil
}

// Handler returns the fully wired router, for embedding the service in
// another runtime such as a serverless function.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the address the server listens on, or "" before Start.
func (s *Server) Addr() string {
	return s.addr.Load().(string)
}

// Start listens on the configured port and blocks until ctx is cancelled
// or the listener fails. Shutdown waits at most server.shutdown_timeout.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	s.addr.Store(ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Server started", zap.String("address", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if s.watcher != nil {
		updates := s.watcher.Subscribe()
		g.Go(func() error {
			s.watchConfig(gctx, updates)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("error during server shutdown: %w", err)
	}
	if s.queue != nil {
		if err := s.queue.Shutdown(ctx); err != nil {
			return fmt.Errorf("error draining queue: %w", err)
		}
	}
	return nil
}

// watchConfig applies updates until ctx ends or the channel closes.
func (s *Server) watchConfig(ctx context.Context, updates <-chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			s.applyConfig(cfg)
		}
	}
}

// applyConfig hot-swaps the settings that can change without a restart.
// Listener and route changes are only logged.
func (s *Server) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	if err := s.convert.Reload(cfg); err != nil {
		s.logger.Error("failed to apply config update", zap.Error(err))
		return
	}
	if s.queue != nil && cfg.Queue.Enabled && cfg.Queue.MaxSize > 0 {
		s.queue.SetMaxSize(cfg.Queue.MaxSize)
	}
	if cfg.Server.Port != s.cfg.Server.Port {
		s.logger.Warn("port change requires a restart",
			zap.Int("current", s.cfg.Server.Port),
			zap.Int("configured", cfg.Server.Port),
		)
	}
}
