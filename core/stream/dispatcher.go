package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/realtime/core/logger"
	"github.com/dmitrymomot/realtime/pkg/async"
)

// Callback receives the decoded "data" field of every put and patch event.
// It runs on the dispatcher goroutine: a slow callback delays every later event.
type Callback func(kind Kind, data json.RawMessage)

// payload is the body of put and patch events.
type payload struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// Dispatcher drains a Queue on its own goroutine and invokes the callback.
// The goroutine starts in NewDispatcher and exits only when it reaches the
// queue's stop item.
type Dispatcher struct {
	queue    *Queue
	kind     Kind
	callback Callback
	logger   *slog.Logger
	onError  func(error)
	future   *async.ExecFuture

	delivered      atomic.Int64
	failed         atomic.Int64
	skipped        atomic.Int64
	lastActivityAt atomic.Int64
}

// DispatcherStats provides observability counters for a dispatcher.
type DispatcherStats struct {
	Delivered      int64 // Callback invocations that returned normally
	Failed         int64 // Malformed payloads and callback panics
	Skipped        int64 // Non-data events and empty payloads
	Running        bool
	LastActivityAt time.Time
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger configures structured logging for the dispatcher.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithDispatchErrorHandler registers fn for per-message failures.
// The failing message is skipped either way.
func WithDispatchErrorHandler(fn func(error)) DispatcherOption {
	return func(d *Dispatcher) {
		d.onError = fn
	}
}

// NewDispatcher creates a dispatcher and starts its goroutine.
func NewDispatcher(queue *Queue, kind Kind, callback Callback, opts ...DispatcherOption) (*Dispatcher, error) {
	if callback == nil {
		return nil, ErrNilCallback
	}
	if queue == nil {
		queue = NewQueue()
	}

	d := &Dispatcher{
		queue:    queue,
		kind:     kind,
		callback: callback,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.future = async.Exec(context.Background(), queue, d.run)

	return d, nil
}

// Close enqueues the stop item and waits for the goroutine to exit.
// Messages queued before Close are dispatched first.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.queue.Close()
	return d.Wait(ctx)
}

// Wait blocks until the goroutine exits or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	select {
	case <-d.future.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the dispatcher counters.
func (d *Dispatcher) Stats() DispatcherStats {
	var last time.Time
	if ts := d.lastActivityAt.Load(); ts > 0 {
		last = time.Unix(0, ts)
	}

	return DispatcherStats{
		Delivered:      d.delivered.Load(),
		Failed:         d.failed.Load(),
		Skipped:        d.skipped.Load(),
		Running:        !d.future.IsComplete(),
		LastActivityAt: last,
	}
}

func (d *Dispatcher) run(ctx context.Context, queue *Queue) error {
	for {
		msg, err := queue.Take(ctx)
		if errors.Is(err, ErrQueueClosed) {
			d.logger.Debug("stop signal received", logger.Component("stream.dispatcher"))
			return nil
		}
		if err != nil {
			return err
		}

		d.dispatch(msg)
		d.lastActivityAt.Store(time.Now().UnixNano())
	}
}

func (d *Dispatcher) dispatch(msg Message) {
	if !msg.IsData() || len(msg.Data) == 0 {
		d.skipped.Add(1)
		d.logger.Debug("message skipped",
			logger.Component("stream.dispatcher"),
			logger.Event(string(msg.Event)),
			logger.Kind(string(d.kind)))
		return
	}

	var p payload
	if err := json.Unmarshal(msg.Data, &p); err != nil {
		d.fail(msg, fmt.Errorf("%w: %w", ErrMalformedPayload, err))
		return
	}
	if p.Data == nil {
		d.fail(msg, ErrMissingData)
		return
	}

	if err := d.invoke(p.Data); err != nil {
		d.fail(msg, err)
		return
	}

	d.delivered.Add(1)
	d.logger.Debug("message dispatched",
		logger.Component("stream.dispatcher"),
		logger.Event(string(msg.Event)),
		logger.Kind(string(d.kind)),
		slog.String("path", p.Path))
}

func (d *Dispatcher) invoke(data json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCallbackPanic, r)
		}
	}()

	d.callback(d.kind, data)
	return nil
}

func (d *Dispatcher) fail(msg Message, err error) {
	d.failed.Add(1)
	d.logger.Error("message dropped",
		logger.Component("stream.dispatcher"),
		logger.Event(string(msg.Event)),
		logger.Kind(string(d.kind)),
		logger.Error(err))

	if d.onError != nil {
		d.onError(err)
	}
}
