package sse

import (
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/dmitrymomot/realtime/core/stream"
)

// Conn is one Server-Sent Events response. It implements stream.Connection.
// When the server ends the response Next returns io.EOF; reconnecting with a
// fresh cursor and credential is up to the caller.
type Conn struct {
	transport *Transport
	url       string
	ctx       context.Context
	cancel    context.CancelFunc

	parser parser
	closed atomic.Bool

	mu   sync.Mutex
	body io.ReadCloser
}

// Next blocks until the next frame arrives.
// Only one goroutine may call Next at a time; ForceClose may be called from any goroutine.
func (c *Conn) Next(ctx context.Context) (stream.Message, error) {
	if c.closed.Load() {
		return stream.Message{}, stream.ErrConnectionClosed
	}

	stop := context.AfterFunc(ctx, c.cancel)
	defer stop()

	msg, err := c.parser.next()
	switch {
	case err == nil:
		return msg, nil
	case c.closed.Load():
		return stream.Message{}, stream.ErrConnectionClosed
	case ctx.Err() != nil:
		return stream.Message{}, ctx.Err()
	}
	return stream.Message{}, err
}

// ForceClose cancels the in-flight request and closes the response body.
// A blocked Next returns stream.ErrConnectionClosed.
func (c *Conn) ForceClose() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.cancel()

	c.mu.Lock()
	body := c.body
	c.body = nil
	c.mu.Unlock()

	if body == nil {
		return nil
	}
	return body.Close()
}

// LastEventID returns the id of the most recent frame that carried one.
// Call it from the goroutine that calls Next.
func (c *Conn) LastEventID() string {
	return c.parser.lastID
}

func (c *Conn) connect() error {
	req, err := http.NewRequestWithContext(c.ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	for k, vs := range c.transport.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.transport.client.Do(req)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
		return &stream.HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	c.mu.Lock()
	c.body = resp.Body
	c.mu.Unlock()

	c.parser.reset(resp.Body)
	return nil
}
