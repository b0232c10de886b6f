// Package ssetest provides a scriptable Server-Sent Events server for tests.
//
//	srv := ssetest.NewServer()
//	defer srv.Close()
//
//	conn, _ := sse.New().Open(ctx, srv.URL+"/notams.json", params)
//	st, _ := srv.Accept(ctx)
//	st.Send(ssetest.Put("/", `{"id":1}`))
//	msg, _ := conn.Next(ctx)
package ssetest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
)

// Event is one frame written by a Stream.
type Event struct {
	Name  string
	ID    string
	Data  string // split on newlines into several data lines
	Retry int    // milliseconds, omitted when zero
}

// String renders the event in text/event-stream format.
func (e Event) String() string {
	var b strings.Builder
	if e.Name != "" {
		fmt.Fprintf(&b, "event: %s\n", e.Name)
	}
	if e.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", e.ID)
	}
	if e.Retry > 0 {
		fmt.Fprintf(&b, "retry: %d\n", e.Retry)
	}
	for _, line := range strings.Split(e.Data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	return b.String()
}

// Put builds a put event carrying {"path": path, "data": data}.
func Put(path, data string) Event {
	return Event{Name: "put", Data: fmt.Sprintf(`{"path":%q,"data":%s}`, path, data)}
}

// Patch builds a patch event carrying {"path": path, "data": data}.
func Patch(path, data string) Event {
	return Event{Name: "patch", Data: fmt.Sprintf(`{"path":%q,"data":%s}`, path, data)}
}

// KeepAlive builds a keep-alive event.
func KeepAlive() Event {
	return Event{Name: "keep-alive", Data: "null"}
}

// AuthRevoked builds an auth_revoked event.
func AuthRevoked() Event {
	return Event{Name: "auth_revoked", Data: `"credential is no longer valid"`}
}

// Cancel builds a cancel event.
func Cancel() Event {
	return Event{Name: "cancel", Data: `"permission denied"`}
}

// Request is a connection attempt observed by Server.
type Request struct {
	Path        string
	Query       url.Values
	LastEventID string
	Header      http.Header
}

// Server is an httptest.Server speaking text/event-stream.
// Every accepted request becomes a Stream delivered through Accept.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	requests []Request
	statuses []int
	streams  chan *Stream
}

// NewServer starts a server.
func NewServer() *Server {
	s := &Server{streams: make(chan *Stream, 64)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Close drops every open stream and shuts the server down.
func (s *Server) Close() {
	s.Server.CloseClientConnections()
	s.Server.Close()
}

// FailNext makes the next request receive status instead of a stream.
func (s *Server) FailNext(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Accept returns the next opened stream.
func (s *Server) Accept(ctx context.Context) (*Stream, error) {
	select {
	case st := <-s.streams:
		return st, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Path:        r.URL.Path,
		Query:       r.URL.Query(),
		LastEventID: r.Header.Get("Last-Event-ID"),
		Header:      r.Header.Clone(),
	})
	status := 0
	if len(s.statuses) > 0 {
		status = s.statuses[0]
		s.statuses = s.statuses[1:]
	}
	s.mu.Unlock()

	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	st := &Stream{
		frames: make(chan string),
		ended:  make(chan struct{}),
		gone:   make(chan struct{}),
	}
	s.streams <- st
	defer close(st.gone)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-st.ended:
			return
		case frame := <-st.frames:
			if _, err := fmt.Fprint(w, frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// Stream is the server side of one open connection.
type Stream struct {
	frames  chan string
	ended   chan struct{}
	endOnce sync.Once
	gone    chan struct{}
}

// Send writes ev. Returns false once the stream is gone.
func (st *Stream) Send(ev Event) bool {
	return st.Raw(ev.String())
}

// Raw writes text as-is. Returns false once the stream is gone.
func (st *Stream) Raw(text string) bool {
	select {
	case st.frames <- text:
		return true
	case <-st.gone:
		return false
	}
}

// End finishes the response; the client observes end of stream.
func (st *Stream) End() {
	st.endOnce.Do(func() { close(st.ended) })
	<-st.gone
}

// Gone is closed once the handler returned, either because End was called
// or the client went away.
func (st *Stream) Gone() <-chan struct{} {
	return st.gone
}
