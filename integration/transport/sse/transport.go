package sse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/dmitrymomot/realtime/core/logger"
	"github.com/dmitrymomot/realtime/core/stream"
)

// Transport opens Server-Sent Events connections over HTTP.
// It implements stream.Transport.
type Transport struct {
	client *http.Client
	logger *slog.Logger
	header http.Header
}

// New creates an SSE transport.
//
// Example:
//
//	tr := sse.New(
//		sse.WithLogger(log),
//		sse.WithHeader("User-Agent", "streamtail"),
//	)
func New(opts ...Option) *Transport {
	t := &Transport{
		client: &http.Client{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		header: http.Header{},
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Open issues GET endpoint?params and returns once response headers arrive.
// ctx bounds the whole life of the connection, not just the handshake.
// A non-2xx response is returned as *stream.HTTPError.
func (t *Transport) Open(ctx context.Context, endpoint string, params url.Values) (stream.Connection, error) {
	target, err := buildURL(endpoint, params)
	if err != nil {
		return nil, err
	}

	connCtx, cancel := context.WithCancel(ctx)
	c := &Conn{
		transport: t,
		url:       target,
		ctx:       connCtx,
		cancel:    cancel,
	}

	if err := c.connect(); err != nil {
		cancel()
		return nil, err
	}

	t.logger.DebugContext(ctx, "sse stream opened",
		logger.Component("sse"),
		logger.Endpoint(endpoint))

	return c, nil
}

// buildURL merges params into the query of endpoint. params win on conflict.
func buildURL(endpoint string, params url.Values) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse stream endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("parse stream endpoint: unsupported scheme %q", u.Scheme)
	}

	q := u.Query()
	for k, vs := range params {
		q.Del(k)
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
