package stream

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// ProducerOption configures a Producer.
type ProducerOption func(*Producer)

// WithProducerAuthenticator sets the authenticator used on the first connection attempt.
func WithProducerAuthenticator(fn Authenticator) ProducerOption {
	return func(p *Producer) {
		p.UpdateAuthenticator(fn)
	}
}

// WithProducerLookback sets how far back the replay cursor reaches. Default is 10 minutes.
func WithProducerLookback(d time.Duration) ProducerOption {
	return func(p *Producer) {
		if d > 0 {
			p.lookback = d
		}
	}
}

// WithProducerBackoff sets the exponential backoff bounds used between reconnect
// attempts. Defaults are one second and one minute.
func WithProducerBackoff(initial, max time.Duration) ProducerOption {
	return func(p *Producer) {
		if initial > 0 {
			p.initialBackoff = initial
		}
		if max > 0 {
			p.maxBackoff = max
		}
	}
}

// withSharedAuthenticator makes the producer read its authenticator from cell,
// so an update through the owner reaches every producer it creates.
func withSharedAuthenticator(cell *atomic.Pointer[Authenticator]) ProducerOption {
	return func(p *Producer) {
		if cell != nil {
			p.auth = cell
		}
	}
}

// WithProducerClock overrides the wall clock used to compute the cursor.
func WithProducerClock(now func() time.Time) ProducerOption {
	return func(p *Producer) {
		if now != nil {
			p.clock = now
		}
	}
}

// WithProducerLogger configures structured logging for the producer.
func WithProducerLogger(logger *slog.Logger) ProducerOption {
	return func(p *Producer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithExitHandler registers fn to be called on the producer goroutine when it exits.
// fn receives nil for a normal exit, ErrStreamCanceled or an unclassified fault otherwise.
func WithExitHandler(fn func(error)) ProducerOption {
	return func(p *Producer) {
		p.onExit = fn
	}
}
