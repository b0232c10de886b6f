package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/dmitrymomot/realtime/core/logger"
	"github.com/dmitrymomot/realtime/pkg/async"
)

// DefaultLookback is how far back in time a (re)connect asks the server to replay.
const DefaultLookback = 10 * time.Minute

// Reconnect backoff defaults. The delay applies to failed connection attempts and
// to streams the server ended without sending a single frame.
const (
	DefaultReconnectBackoff    = time.Second
	DefaultMaxReconnectBackoff = time.Minute
)

// Authenticator returns the token attached to a connection attempt.
// It is invoked once per (re)connect and its result is never cached.
type Authenticator func(ctx context.Context) (string, error)

// Producer owns one stream connection at a time and forwards application
// events into a Queue. It reconnects in place on auth_revoked and when the
// server ends the stream, stops on cancel, and is single-use: once its
// goroutine exited it cannot be started again.
type Producer struct {
	id        uuid.UUID
	endpoint  string
	transport Transport
	queue     *Queue
	auth      *atomic.Pointer[Authenticator]

	lookback       time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration
	clock          func() time.Time
	logger         *slog.Logger
	onExit         func(error)

	mu       sync.Mutex
	conn     Connection
	cancel   context.CancelFunc
	future   *async.ExecFuture
	stopping bool

	connects  atomic.Int64
	forwarded atomic.Int64
	lastError atomic.Pointer[error]
}

// ProducerStats provides observability counters for a producer.
type ProducerStats struct {
	ID        string
	Running   bool
	Connects  int64 // Successful connection attempts, including reconnects
	Forwarded int64 // Messages put on the queue
}

// NewProducer creates a producer that writes into queue.
// The producer does nothing until Start is called.
func NewProducer(queue *Queue, endpoint string, transport Transport, opts ...ProducerOption) (*Producer, error) {
	if transport == nil {
		return nil, ErrNilTransport
	}
	if endpoint == "" {
		return nil, ErrEmptyEndpoint
	}
	if queue == nil {
		queue = NewQueue()
	}

	p := &Producer{
		id:             uuid.New(),
		endpoint:       endpoint,
		transport:      transport,
		queue:          queue,
		auth:           new(atomic.Pointer[Authenticator]),
		lookback:       DefaultLookback,
		initialBackoff: DefaultReconnectBackoff,
		maxBackoff:     DefaultMaxReconnectBackoff,
		clock:          time.Now,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Start launches the receive goroutine. Calling it while running is a no-op.
// Returns ErrProducerUsed if the producer already ran or was stopped.
func (p *Producer) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.future != nil {
		if !p.future.IsComplete() {
			return nil
		}
		return ErrProducerUsed
	}
	if p.stopping {
		return ErrProducerUsed
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.future = async.Exec(ctx, p.queue, p.run)

	return nil
}

// UpdateAuthenticator replaces the authenticator used by the next connection attempt.
// The open connection is not touched. A nil fn disables authentication.
func (p *Producer) UpdateAuthenticator(fn Authenticator) {
	if fn == nil {
		p.auth.Store(nil)
		return
	}
	p.auth.Store(&fn)
}

// Stop tells the receive goroutine to exit and force-closes the open connection,
// since a blocked read has no other way to return. Use Wait to join the goroutine.
func (p *Producer) Stop() {
	p.mu.Lock()
	p.stopping = true
	cancel := p.cancel
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		if err := conn.ForceClose(); err != nil {
			p.logger.Debug("force close failed",
				logger.Component("stream.producer"),
				logger.Error(err))
		}
	}
}

// Wait blocks until the receive goroutine has exited or ctx is done.
// Returns nil immediately if the producer was never started.
func (p *Producer) Wait(ctx context.Context) error {
	p.mu.Lock()
	future := p.future
	p.mu.Unlock()

	if future == nil {
		return nil
	}

	select {
	case <-future.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the receive goroutine is active.
func (p *Producer) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.future != nil && !p.future.IsComplete()
}

// Err returns the error that ended the receive goroutine, or nil when it ended
// normally or is still running.
func (p *Producer) Err() error {
	if err := p.lastError.Load(); err != nil {
		return *err
	}
	return nil
}

// Stats returns the producer counters.
func (p *Producer) Stats() ProducerStats {
	return ProducerStats{
		ID:        p.id.String(),
		Running:   p.Running(),
		Connects:  p.connects.Load(),
		Forwarded: p.forwarded.Load(),
	}
}

func (p *Producer) run(ctx context.Context, queue *Queue) (err error) {
	defer func() {
		p.closeConn()
		err = p.classify(err)
		if err != nil {
			p.lastError.Store(&err)
		}
		if p.onExit != nil {
			p.onExit(err)
		}
	}()

	if err := p.connect(ctx); err != nil {
		return err
	}

	idle := p.newBackoff()
	received := false

	for {
		conn := p.current()
		if conn == nil {
			return nil
		}

		msg, err := conn.Next(ctx)
		if err != nil {
			if !isEndOfStream(err) || p.isStopping() {
				return err
			}
			if !received {
				if err := p.pause(ctx, idle.NextBackOff()); err != nil {
					return err
				}
			}
			if err := p.reconnect(ctx); err != nil {
				return err
			}
			received = false
			continue
		}

		if !received {
			received = true
			idle.Reset()
		}

		switch msg.Event {
		case EventKeepAlive:
			p.logger.Debug("keep-alive received", logger.Component("stream.producer"))
			continue
		case EventAuthRevoked:
			p.logger.Debug("auth revoked, reconnecting", logger.Component("stream.producer"))
			if err := p.connect(ctx); err != nil {
				return err
			}
			received = false
			continue
		case EventCancel:
			return ErrStreamCanceled
		}

		if err := queue.Put(msg); err != nil {
			return err
		}
		p.forwarded.Add(1)

		p.logger.Debug("message forwarded",
			logger.Component("stream.producer"),
			logger.Event(string(msg.Event)),
			slog.Int("size", len(msg.Data)))
	}
}

// reconnect replaces a stream the server ended. Network failures while opening
// are retried with exponential backoff; each attempt recomputes the cursor and
// invokes the authenticator again. Any other failure ends the producer.
func (p *Producer) reconnect(ctx context.Context) error {
	p.logger.Debug("stream ended, reconnecting", logger.Component("stream.producer"))

	attempt := 0
	return backoff.RetryNotify(func() error {
		err := p.connect(ctx)
		if err != nil && !isNetworkError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(p.newBackoff(), ctx), func(err error, wait time.Duration) {
		attempt++
		p.logger.Warn("stream reconnect failed",
			logger.Component("stream.producer"),
			logger.Endpoint(p.endpoint),
			logger.RetryCount(attempt),
			logger.Error(err),
			slog.Duration("wait", wait))
	})
}

func (p *Producer) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initialBackoff
	b.MaxInterval = max(p.maxBackoff, p.initialBackoff)
	b.Reset()
	return b
}

// pause waits d before the next attempt. backoff.Stop means the backoff gave up
// and the stream is treated as ended.
func (p *Producer) pause(ctx context.Context, d time.Duration) error {
	if d == backoff.Stop {
		return io.EOF
	}

	p.logger.Debug("stream ended without frames, waiting",
		logger.Component("stream.producer"),
		slog.Duration("wait", d))

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Producer) isStopping() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopping
}

// connect closes the previous connection, then opens a new one with a freshly
// computed cursor and a freshly minted credential.
func (p *Producer) connect(ctx context.Context) error {
	p.closeConn()

	cursor := p.clock().Add(-p.lookback).UnixMilli()

	params := url.Values{}
	params.Set(ParamOrderBy, OrderByTimestamp)
	params.Set(ParamStartAt, strconv.FormatInt(cursor, 10))

	if fn := p.auth.Load(); fn != nil {
		token, err := (*fn)(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCredential, err)
		}
		params.Set(ParamAuth, token)
	}

	conn, err := p.transport.Open(ctx, p.endpoint, params)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}

	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		_ = conn.ForceClose()
		return ErrConnectionClosed
	}
	p.conn = conn
	p.mu.Unlock()

	n := p.connects.Add(1)
	p.logger.Info("stream connected",
		logger.Component("stream.producer"),
		logger.Endpoint(p.endpoint),
		logger.Cursor(cursor),
		logger.Count("connects", int(n)))

	return nil
}

func (p *Producer) current() Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn
}

func (p *Producer) closeConn() {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()

	if conn != nil {
		_ = conn.ForceClose()
	}
}

// classify narrows the loop result: benign terminations and anything seen
// after Stop become nil, cancel and unknown faults are kept and logged.
func (p *Producer) classify(err error) error {
	stopping := p.isStopping()

	switch {
	case err == nil, errors.Is(err, ErrQueueClosed):
		p.logger.Debug("stream producer exited", logger.Component("stream.producer"))
		return nil
	case stopping || IsBenign(err):
		p.logger.Debug("stream producer exited",
			logger.Component("stream.producer"),
			logger.Error(err))
		return nil
	case errors.Is(err, ErrStreamCanceled):
		p.logger.Warn("stream canceled by server",
			logger.Component("stream.producer"),
			logger.Endpoint(p.endpoint))
		return err
	default:
		p.logger.Error("stream producer failed",
			logger.Component("stream.producer"),
			logger.Endpoint(p.endpoint),
			logger.Error(err))
		return err
	}
}
