package stream

import (
	"context"
	"net/url"
)

// Query parameters sent on every connection attempt.
const (
	ParamOrderBy = "orderBy"
	ParamStartAt = "startAt"
	ParamAuth    = "auth"

	// OrderByTimestamp is JSON-quoted because the server parses the value as JSON.
	OrderByTimestamp = `"timestamp"`
)

// Transport opens streaming connections.
// Implementations live under integration/transport.
type Transport interface {
	// Open establishes a streaming connection to endpoint with the given query parameters.
	// Frames must be yielded incrementally, as soon as they are complete on the wire.
	// A non-2xx response is reported as *HTTPError.
	Open(ctx context.Context, endpoint string, params url.Values) (Connection, error)
}

// Connection is one open stream.
type Connection interface {
	// Next blocks until the next frame arrives, the stream ends or the connection is closed.
	// After ForceClose it returns an error wrapping ErrConnectionClosed.
	Next(ctx context.Context) (Message, error)

	// ForceClose severs the underlying socket regardless of retry state.
	// Safe to call from any goroutine and more than once.
	ForceClose() error
}
