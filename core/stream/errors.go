package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

var (
	// ErrConnectionClosed is returned by Connection.Next after ForceClose severed the connection.
	ErrConnectionClosed = errors.New("stream connection closed")

	// ErrQueueClosed is returned by Queue.Put after Close, and by Queue.Take once the stop item is reached.
	ErrQueueClosed = errors.New("stream queue closed")

	// ErrStreamCanceled is reported when the server sends a cancel event,
	// meaning read permission for the endpoint was lost.
	ErrStreamCanceled = errors.New("stream canceled by server: read permission lost")

	// ErrProducerUsed is returned when starting a producer that has already run.
	// Use Session.Reset to obtain a fresh producer.
	ErrProducerUsed = errors.New("stream producer already used")

	// ErrSessionClosed is returned by Session operations after Shutdown.
	ErrSessionClosed = errors.New("stream session closed")

	// ErrNilTransport is returned when a session or producer is built without a transport.
	ErrNilTransport = errors.New("stream transport is nil")

	// ErrNilCallback is returned when a session is built without a callback.
	ErrNilCallback = errors.New("stream callback is nil")

	// ErrEmptyEndpoint is returned when a session or producer is built without an endpoint.
	ErrEmptyEndpoint = errors.New("stream endpoint is empty")

	// ErrCredential wraps failures of the configured Authenticator.
	ErrCredential = errors.New("stream credential failed")

	// ErrMalformedPayload is reported when a data event cannot be decoded.
	ErrMalformedPayload = errors.New("malformed stream payload")

	// ErrMissingData is reported when a data event payload has no "data" field.
	ErrMissingData = errors.New("stream payload has no data field")

	// ErrCallbackPanic is reported when the user callback panics.
	ErrCallbackPanic = errors.New("stream callback panicked")

	// ErrHealthcheckFailed is the base error returned by Session.Healthcheck.
	ErrHealthcheckFailed = errors.New("stream healthcheck failed")

	// ErrProducerNotRunning is joined with ErrHealthcheckFailed when no producer goroutine is active.
	ErrProducerNotRunning = errors.New("stream producer not running")
)

// HTTPError reports a non-2xx response from the stream endpoint.
// It usually means the credential expired between requests.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("stream endpoint responded %s", e.Status)
	}
	return fmt.Sprintf("stream endpoint responded %d", e.StatusCode)
}

// IsBenign reports whether err is an expected way for a stream to end:
// a forced close, an end of stream, a socket-level network failure or an HTTP
// error response. Anything else, TLS verification and redirect policy errors
// included, is a programming-error-class fault and must not be retried.
func IsBenign(err error) bool {
	if err == nil {
		return true
	}

	if errors.Is(err, ErrConnectionClosed) || errors.Is(err, context.Canceled) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return true
	}

	return isNetworkError(err)
}

// isEndOfStream reports whether the server finished the response.
func isEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// isNetworkError reports socket-level failures: dial and read errors raised by
// the network stack, refused or reset connections and a peer hanging up.
// A *url.Error qualifies only through the error it wraps.
func isNetworkError(err error) bool {
	if isEndOfStream(err) || errors.Is(err, net.ErrClosed) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE)
}
