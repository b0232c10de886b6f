package sse

import (
	"log/slog"
	"net/http"
)

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient sets the HTTP client. The client must not set a Timeout,
// since a stream response never completes.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Transport) {
		if client != nil {
			t.client = client
		}
	}
}

// WithLogger configures structured logging for the transport.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithHeader adds a request header sent on every connection attempt.
func WithHeader(key, value string) Option {
	return func(t *Transport) {
		t.header.Add(key, value)
	}
}
