package websocket

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/realtime/core/stream"
)

// DefaultHandshakeTimeout bounds the opening handshake.
const DefaultHandshakeTimeout = 10 * time.Second

// Transport opens WebSocket stream connections. It implements stream.Transport.
// Each text or binary message carries one JSON frame:
//
//	{"event": "put", "id": "42", "data": {"path": "/", "data": 1}}
type Transport struct {
	dialer    *websocket.Dialer
	logger    *slog.Logger
	header    http.Header
	readLimit int64
}

// Option configures a Transport.
type Option func(*Transport)

// WithDialer sets the gorilla dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(t *Transport) {
		if d != nil {
			t.dialer = d
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

// WithHeader adds a handshake request header.
func WithHeader(key, value string) Option {
	return func(t *Transport) {
		t.header.Add(key, value)
	}
}

// WithReadLimit caps the size of a single message in bytes. Zero means no limit.
func WithReadLimit(n int64) Option {
	return func(t *Transport) {
		if n >= 0 {
			t.readLimit = n
		}
	}
}

// New creates a WebSocket transport.
func New(opts ...Option) *Transport {
	t := &Transport{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: DefaultHandshakeTimeout,
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		header: http.Header{},
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Open dials endpoint with params merged into its query. http and https
// endpoints are dialed as ws and wss. A handshake rejected with an HTTP
// response is returned as *stream.HTTPError.
func (t *Transport) Open(ctx context.Context, endpoint string, params url.Values) (stream.Connection, error) {
	target, err := buildURL(endpoint, params)
	if err != nil {
		return nil, err
	}

	ws, resp, err := t.dialer.DialContext(ctx, target, t.header.Clone())
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			return nil, &stream.HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
		}
		return nil, fmt.Errorf("dial websocket: %w", err)
	}

	if t.readLimit > 0 {
		ws.SetReadLimit(t.readLimit)
	}

	return &Conn{ws: ws, logger: t.logger}, nil
}

func buildURL(endpoint string, params url.Values) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse stream endpoint: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
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
