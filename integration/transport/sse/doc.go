// Package sse implements stream.Transport over Server-Sent Events.
//
// Open issues a GET with Accept: text/event-stream and the stream parameters merged
// into the endpoint query. The response body is parsed incrementally, one event
// block at a time:
//
//	event: put
//	id: 17
//	data: {"path":"/","data":{"a":1}}
//
// Multi-line data fields are joined with a newline, comments are skipped, and an
// id field is remembered as the last event ID.
//
// When the server ends the response Next returns io.EOF. The transport does not
// reconnect by itself: the stream producer opens a new connection so the cursor and
// the credential are recomputed. A retry field from the server is ignored.
//
//	tr := sse.New(
//		sse.WithLogger(log),
//		sse.WithHeader("User-Agent", "streamtail"),
//	)
//	session, err := stream.NewSession(callback, "notams", endpoint, tr)
//
// ForceClose cancels the in-flight request and closes the body, so a blocked Next
// returns stream.ErrConnectionClosed.
//
// Package ssetest provides a scriptable server for tests.
package sse
