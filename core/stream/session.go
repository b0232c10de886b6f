package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/realtime/core/logger"
)

// ErrorHandler is told about stream failures that would otherwise only be logged:
// lost read permission, unclassified producer faults and dropped messages.
// It runs on the worker goroutines and must not call Session lifecycle methods synchronously.
type ErrorHandler func(kind Kind, err error)

// Session composes one Producer and one Dispatcher over a shared Queue.
// The dispatcher lives as long as the session; producers are replaced by Reset.
type Session struct {
	id        uuid.UUID
	kind      Kind
	endpoint  string
	transport Transport
	auth      atomic.Pointer[Authenticator]

	queue      *Queue
	dispatcher *Dispatcher
	producer   atomic.Pointer[Producer]

	lookback        time.Duration
	backoff         time.Duration
	maxBackoff      time.Duration
	clock           func() time.Time
	shutdownTimeout time.Duration
	logger          *slog.Logger
	onError         ErrorHandler

	// mu serializes lifecycle operations.
	mu     sync.Mutex
	closed atomic.Bool
}

// SessionStats provides observability metrics for a session.
type SessionStats struct {
	ID             string
	Kind           Kind
	Running        bool  // Producer goroutine active
	Closed         bool  // Shutdown was called
	Queued         int   // Messages waiting for the dispatcher
	Connects       int64 // Successful connections of the current producer
	Forwarded      int64 // Messages queued by the current producer
	Delivered      int64
	Failed         int64
	Skipped        int64
	LastActivityAt time.Time
}

// NewSession creates a session and starts its dispatcher.
// The producer is created but not started; call Start.
//
// Example:
//
//	session, err := stream.NewSession(
//	    func(kind stream.Kind, data json.RawMessage) { fmt.Println(kind, string(data)) },
//	    "notams",
//	    "https://example.firebaseio.com/notams.json",
//	    sse.New(),
//	    stream.WithAuthenticator(credential.Static(token)),
//	)
func NewSession(callback Callback, kind Kind, endpoint string, transport Transport, opts ...SessionOption) (*Session, error) {
	if callback == nil {
		return nil, ErrNilCallback
	}
	if transport == nil {
		return nil, ErrNilTransport
	}
	if endpoint == "" {
		return nil, ErrEmptyEndpoint
	}

	s := &Session{
		id:              uuid.New(),
		kind:            kind,
		endpoint:        endpoint,
		transport:       transport,
		queue:           NewQueue(),
		lookback:        DefaultLookback,
		backoff:         DefaultReconnectBackoff,
		maxBackoff:      DefaultMaxReconnectBackoff,
		clock:           time.Now,
		shutdownTimeout: DefaultShutdownTimeout,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With(
		logger.SessionID(s.id.String()),
		logger.Kind(string(kind)))

	dispatcher, err := NewDispatcher(s.queue, kind, callback,
		WithDispatcherLogger(s.logger),
		WithDispatchErrorHandler(s.report))
	if err != nil {
		return nil, err
	}
	s.dispatcher = dispatcher

	producer, err := s.newProducer()
	if err != nil {
		_ = dispatcher.Close(context.Background())
		return nil, err
	}
	s.producer.Store(producer)

	return s, nil
}

// NewSessionFromConfig creates a session from configuration.
// Additional options override config values.
func NewSessionFromConfig(cfg Config, callback Callback, transport Transport, opts ...SessionOption) (*Session, error) {
	allOpts := append([]SessionOption{
		WithLookback(cfg.Lookback),
		WithShutdownTimeout(cfg.ShutdownTimeout),
		WithReconnectBackoff(cfg.Backoff, cfg.MaxBackoff),
	}, opts...)

	kind := cfg.Kind
	if kind == "" {
		kind = DefaultKind
	}

	return NewSession(callback, Kind(kind), cfg.Endpoint, transport, allOpts...)
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id.String()
}

// Kind returns the tag passed to every callback invocation.
func (s *Session) Kind() Kind {
	return s.kind
}

// Start starts the producer. It is a no-op while the producer is running.
// Stale queued messages are dropped first. Returns ErrProducerUsed when the
// producer already ran; call Reset or Restart in that case.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrSessionClosed
	}

	producer := s.producer.Load()
	if producer.Running() {
		return nil
	}

	if dropped := s.queue.Clear(); dropped > 0 {
		s.logger.Debug("dropped stale messages", logger.Count("dropped", dropped))
	}

	if err := producer.Start(); err != nil {
		return err
	}

	s.logger.Info("stream session started", logger.Endpoint(s.endpoint))
	return nil
}

// UpdateAuth replaces the authenticator. Every producer of the session reads
// the same cell, so the current one uses fn on its next reconnect and
// producers installed by Reset start with it, whatever the interleaving.
func (s *Session) UpdateAuth(fn Authenticator) {
	if fn == nil {
		s.auth.Store(nil)
		return
	}
	s.auth.Store(&fn)
}

// Reset stops and joins the current producer, drops queued messages and
// installs a fresh producer with the same endpoint and current authenticator.
// The queue itself is kept, so the dispatcher never has to be rebound.
// The new producer is not started.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrSessionClosed
	}

	old := s.producer.Load()
	old.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := old.Wait(ctx); err != nil {
		return fmt.Errorf("reset stream session: %w", err)
	}

	producer, err := s.newProducer()
	if err != nil {
		return err
	}

	dropped := s.queue.Clear()
	s.producer.Store(producer)

	s.logger.Info("stream session reset", logger.Count("dropped", dropped))
	return nil
}

// Restart is Reset followed by Start.
func (s *Session) Restart() error {
	if err := s.Reset(); err != nil {
		return err
	}
	return s.Start()
}

// Shutdown stops and joins the producer, then stops and joins the dispatcher.
// Messages already queued are delivered before the dispatcher exits.
// The session cannot be started again. Safe to call more than once.
func (s *Session) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.logger.Info("stream session stopping")

	var errs []error

	producer := s.producer.Load()
	producer.Stop()
	if err := producer.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop producer: %w", err))
	}

	if err := s.dispatcher.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop dispatcher: %w", err))
	}

	if len(errs) > 0 {
		s.logger.Warn("stream session shutdown incomplete", logger.Errors(errs...))
		return errors.Join(errs...)
	}

	s.logger.Info("stream session stopped")
	return nil
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// The returned function starts the session, waits for ctx to be canceled and
// shuts down within the configured shutdown timeout.
func (s *Session) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(); err != nil {
			return err
		}

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		return s.Shutdown(shutdownCtx)
	}
}

// Stats returns current session statistics.
func (s *Session) Stats() SessionStats {
	p := s.producer.Load().Stats()
	d := s.dispatcher.Stats()

	return SessionStats{
		ID:             s.id.String(),
		Kind:           s.kind,
		Running:        p.Running,
		Closed:         s.closed.Load(),
		Queued:         s.queue.Len(),
		Connects:       p.Connects,
		Forwarded:      p.Forwarded,
		Delivered:      d.Delivered,
		Failed:         d.Failed,
		Skipped:        d.Skipped,
		LastActivityAt: d.LastActivityAt,
	}
}

// Healthcheck returns nil while the producer goroutine is running.
func (s *Session) Healthcheck(ctx context.Context) error {
	if s.closed.Load() {
		return errors.Join(ErrHealthcheckFailed, ErrSessionClosed)
	}
	if !s.producer.Load().Running() {
		if err := s.producer.Load().Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, ErrProducerNotRunning, err)
		}
		return errors.Join(ErrHealthcheckFailed, ErrProducerNotRunning)
	}
	return nil
}

func (s *Session) newProducer() (*Producer, error) {
	opts := []ProducerOption{
		withSharedAuthenticator(&s.auth),
		WithProducerLookback(s.lookback),
		WithProducerBackoff(s.backoff, s.maxBackoff),
		WithProducerClock(s.clock),
		WithProducerLogger(s.logger),
		WithExitHandler(func(err error) {
			if err != nil {
				s.report(err)
			}
		}),
	}

	return NewProducer(s.queue, s.endpoint, s.transport, opts...)
}

func (s *Session) report(err error) {
	if s.onError != nil {
		s.onError(s.kind, err)
	}
}
