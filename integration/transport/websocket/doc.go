// Package websocket implements stream.Transport over WebSocket using gorilla/websocket.
//
// It serves endpoints that push the same events as the SSE transport but wrapped
// in JSON envelopes, one per message:
//
//	{"event": "put", "id": "7", "data": {"path": "/", "data": 42}}
//	{"event": "keep-alive", "data": null}
//
// A data field holding a JSON string is unwrapped, so servers that forward raw SSE
// data lines as strings work unchanged.
//
//	session, err := stream.NewSession(callback, "notams", "wss://events.example.com/notams",
//		websocket.New(websocket.WithReadLimit(1<<20)))
//
// ForceClose closes the socket. A close frame from the server with a normal or
// going-away code ends the stream with io.EOF. The transport never redials on its
// own; the stream producer reconnects with a fresh cursor and credential.
package websocket
