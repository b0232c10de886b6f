package streamtest

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/dmitrymomot/realtime/core/stream"
)

// Conn is an in-memory stream.Connection.
// Next serves queued frames in order and then blocks until more frames are
// sent, End or Fail is called, or the connection is force-closed.
type Conn struct {
	mu      sync.Mutex
	pending []stream.Message
	endErr  error
	closed  bool
	closes  int
	notify  chan struct{}
	done    chan struct{}
}

// NewConn creates a live connection preloaded with msgs.
func NewConn(msgs ...stream.Message) *Conn {
	return &Conn{
		pending: append([]stream.Message(nil), msgs...),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Send queues msg. Returns false once the connection is closed.
func (c *Conn) Send(msg stream.Message) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.pending = append(c.pending, msg)
	c.mu.Unlock()

	c.wake()
	return true
}

// End makes Next return io.EOF once the queued frames are drained.
func (c *Conn) End() {
	c.Fail(io.EOF)
}

// Fail makes Next return err once the queued frames are drained.
func (c *Conn) Fail(err error) {
	c.mu.Lock()
	if c.endErr == nil {
		c.endErr = err
	}
	c.mu.Unlock()

	c.wake()
}

// Next implements stream.Connection.
func (c *Conn) Next(ctx context.Context) (stream.Message, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return stream.Message{}, stream.ErrConnectionClosed
		}
		if len(c.pending) > 0 {
			msg := c.pending[0]
			c.pending = c.pending[1:]
			c.mu.Unlock()
			if msg.ReceivedAt.IsZero() {
				msg.ReceivedAt = time.Now()
			}
			return msg, nil
		}
		if c.endErr != nil {
			err := c.endErr
			c.mu.Unlock()
			return stream.Message{}, err
		}
		c.mu.Unlock()

		select {
		case <-c.notify:
		case <-c.done:
		case <-ctx.Done():
			return stream.Message{}, ctx.Err()
		}
	}
}

// ForceClose implements stream.Connection.
func (c *Conn) ForceClose() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closes++
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

// Closed reports whether ForceClose was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Pending returns the number of frames not yet read.
func (c *Conn) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Conn) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Put builds a put frame carrying {"path": path, "data": data}.
// data must be valid JSON.
func Put(path, data string) stream.Message {
	return dataMessage(stream.EventPut, path, data)
}

// Patch builds a patch frame carrying {"path": path, "data": data}.
func Patch(path, data string) stream.Message {
	return dataMessage(stream.EventPatch, path, data)
}

// Raw builds a frame with an arbitrary event tag and body.
func Raw(event stream.EventType, body string) stream.Message {
	msg := stream.Message{Event: event}
	if body != "" {
		msg.Data = []byte(body)
	}
	return msg
}

// KeepAlive builds a keep-alive frame.
func KeepAlive() stream.Message {
	return stream.Message{Event: stream.EventKeepAlive, Data: []byte("null")}
}

// AuthRevoked builds an auth_revoked frame.
func AuthRevoked() stream.Message {
	return stream.Message{Event: stream.EventAuthRevoked, Data: []byte(`"credential is no longer valid"`)}
}

// Cancel builds a cancel frame.
func Cancel() stream.Message {
	return stream.Message{Event: stream.EventCancel, Data: []byte(`"permission denied"`)}
}

func dataMessage(event stream.EventType, path, data string) stream.Message {
	body, _ := json.Marshal(struct {
		Path string          `json:"path"`
		Data json.RawMessage `json:"data"`
	}{Path: path, Data: json.RawMessage(data)})
	return stream.Message{Event: event, Data: body}
}
