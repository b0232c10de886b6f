package stream

import (
	"log/slog"
	"time"
)

// DefaultShutdownTimeout bounds Reset and Run while joining workers.
const DefaultShutdownTimeout = 30 * time.Second

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithAuthenticator sets the authenticator invoked on every (re)connect.
func WithAuthenticator(fn Authenticator) SessionOption {
	return func(s *Session) {
		if fn != nil {
			s.auth.Store(&fn)
		}
	}
}

// WithLookback sets how far back the replay cursor reaches. Default is 10 minutes.
func WithLookback(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.lookback = d
		}
	}
}

// WithReconnectBackoff sets the exponential backoff bounds producers use between
// reconnect attempts. Defaults are one second and one minute.
func WithReconnectBackoff(initial, max time.Duration) SessionOption {
	return func(s *Session) {
		if initial > 0 {
			s.backoff = initial
		}
		if max > 0 {
			s.maxBackoff = max
		}
	}
}

// WithClock overrides the wall clock used to compute cursors.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithShutdownTimeout bounds how long Reset and Run wait for workers to exit.
func WithShutdownTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithLogger configures structured logging for the session and its workers.
// Use slog.New(slog.NewTextHandler(io.Discard, nil)) to disable logging.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithErrorHandler registers fn for stream failures.
//
// Example:
//
//	stream.WithErrorHandler(func(kind stream.Kind, err error) {
//	    if errors.Is(err, stream.ErrStreamCanceled) {
//	        // read permission lost: refresh credentials, then session.Restart()
//	    }
//	})
func WithErrorHandler(fn ErrorHandler) SessionOption {
	return func(s *Session) {
		s.onError = fn
	}
}
