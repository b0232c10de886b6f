package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrymomot/realtime/core/logger"
)

// Probe server defaults.
const (
	DefaultShutdownTimeout = 5 * time.Second
	DefaultReadTimeout     = 5 * time.Second
)

// ErrServerAlreadyRunning is returned by Start when the server is already serving.
var ErrServerAlreadyRunning = errors.New("health server already running")

// Server serves /health/live, /health/ready and /ping on its own listener.
// Safe for concurrent use.
type Server struct {
	mu       sync.Mutex
	addr     string
	checks   []Check
	logger   *slog.Logger
	shutdown time.Duration
	server   *http.Server
	listener net.Listener
	running  bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used by the server and the readiness handler.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithCheck adds readiness checks.
func WithCheck(checks ...Check) Option {
	return func(s *Server) {
		for _, c := range checks {
			if c != nil {
				s.checks = append(s.checks, c)
			}
		}
	}
}

// WithShutdownTimeout sets the graceful shutdown timeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdown = d
		}
	}
}

// NewServer creates a probe server listening on addr once started.
func NewServer(addr string, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		shutdown: DefaultShutdownTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Handler returns the probe routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", Liveness)
	mux.Handle("GET /health/ready", Readiness(s.logger, s.checks...))
	mux.HandleFunc("GET /ping", NoContent)
	return mux
}

// Addr returns the bound address while running, or the configured address otherwise.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start binds the listener and serves until ctx is canceled or serving fails.
// Returns ctx.Err() when ctx is canceled; use Stop for graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrServerAlreadyRunning
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.running = true
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadTimeout,
		ReadTimeout:       DefaultReadTimeout,
	}
	srv := s.server
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "health server started", slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.mu.Lock()
		s.running = false
		s.listener = nil
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop gracefully shuts down the server using the configured timeout.
// Returns immediately if the server is not running.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()

	err := s.server.Shutdown(shutdownCtx)
	s.running = false
	s.listener = nil

	if err != nil {
		s.logger.Error("health server shutdown failed", logger.Error(err))
		return err
	}

	s.logger.Info("health server stopped")
	return nil
}

// Run provides errgroup compatibility for coordinated lifecycle management.
func (s *Server) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			if err := s.Stop(); err != nil {
				s.logger.Error("failed to stop health server", logger.Error(err))
			}
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}
