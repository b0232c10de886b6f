package streamtest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dmitrymomot/realtime/core/stream"
)

// Delivery is one callback invocation observed by Recorder.
type Delivery struct {
	Kind stream.Kind
	Data string
}

// Recorder collects callback invocations. Use Callback as the stream.Callback.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
	changed    chan struct{}
	hook       func(Delivery)
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{changed: make(chan struct{})}
}

// OnDelivery sets fn to run inside Callback after the delivery is recorded.
// A panicking fn exercises the dispatcher's panic recovery.
func (r *Recorder) OnDelivery(fn func(Delivery)) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = fn
	return r
}

// Callback implements stream.Callback.
func (r *Recorder) Callback(kind stream.Kind, data json.RawMessage) {
	d := Delivery{Kind: kind, Data: string(data)}

	r.mu.Lock()
	r.deliveries = append(r.deliveries, d)
	hook := r.hook
	close(r.changed)
	r.changed = make(chan struct{})
	r.mu.Unlock()

	if hook != nil {
		hook(d)
	}
}

// Deliveries returns every recorded invocation in order.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

// Data returns the recorded payloads in order.
func (r *Recorder) Data() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.deliveries))
	for i, d := range r.deliveries {
		out[i] = d.Data
	}
	return out
}

// Len returns the number of recorded invocations.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deliveries)
}

// Await blocks until at least n invocations were recorded or ctx is done.
func (r *Recorder) Await(ctx context.Context, n int) error {
	for {
		r.mu.Lock()
		if len(r.deliveries) >= n {
			r.mu.Unlock()
			return nil
		}
		ch := r.changed
		r.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
