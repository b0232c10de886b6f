// Package streamtest provides in-memory fakes for testing code built on core/stream.
//
// Transport records every Open call and hands out Conn values fed from scripts:
//
//	tr := streamtest.NewTransport()
//	tr.Script(streamtest.Put("/", `{"id":1}`), streamtest.AuthRevoked())
//	tr.Script(streamtest.Put("/", `{"id":2}`))
//
//	rec := streamtest.NewRecorder()
//	session, _ := stream.NewSession(rec.Callback, "notams", "https://example.test/notams.json", tr)
//	_ = session.Start()
//	_ = rec.Await(ctx, 2)
package streamtest

import (
	"context"
	"net/url"
	"sync"

	"github.com/dmitrymomot/realtime/core/stream"
)

// Open describes one connection attempt observed by Transport.
type Open struct {
	Endpoint string
	Params   url.Values
}

// Transport is an in-memory stream.Transport.
// The n-th Open returns a Conn preloaded with the n-th script, or an empty live
// Conn when no script is left. Errors registered with FailNext are returned first.
type Transport struct {
	mu      sync.Mutex
	scripts [][]stream.Message
	errs    []error
	opens   []Open
	conns   []*Conn
	changed chan struct{}
}

// NewTransport creates a transport with no scripts.
func NewTransport() *Transport {
	return &Transport{changed: make(chan struct{})}
}

// Script registers the frames served by the next connection without a script.
func (t *Transport) Script(msgs ...stream.Message) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scripts = append(t.scripts, msgs)
	return t
}

// FailNext makes the next Open return err.
func (t *Transport) FailNext(err error) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errs = append(t.errs, err)
	return t
}

// Open implements stream.Transport.
func (t *Transport) Open(ctx context.Context, endpoint string, params url.Values) (stream.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.opens = append(t.opens, Open{Endpoint: endpoint, Params: cloneValues(params)})
	t.broadcast()

	if len(t.errs) > 0 {
		err := t.errs[0]
		t.errs = t.errs[1:]
		return nil, err
	}

	var script []stream.Message
	if len(t.scripts) > 0 {
		script = t.scripts[0]
		t.scripts = t.scripts[1:]
	}

	conn := NewConn(script...)
	t.conns = append(t.conns, conn)
	return conn, nil
}

// Opens returns every connection attempt in order, including failed ones.
func (t *Transport) Opens() []Open {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Open(nil), t.opens...)
}

// Conns returns every connection handed out, in order.
func (t *Transport) Conns() []*Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Conn(nil), t.conns...)
}

// Last returns the most recently opened connection, or nil.
func (t *Transport) Last() *Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

// AwaitOpens blocks until at least n connection attempts were made or ctx is done.
func (t *Transport) AwaitOpens(ctx context.Context, n int) error {
	for {
		t.mu.Lock()
		if len(t.opens) >= n {
			t.mu.Unlock()
			return nil
		}
		ch := t.changed
		t.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// broadcast wakes every AwaitOpens caller. Must hold t.mu.
func (t *Transport) broadcast() {
	close(t.changed)
	t.changed = make(chan struct{})
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
