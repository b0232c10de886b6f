// Package realtime ingests server-pushed event streams from realtime databases and
// hands each data event to application code, following the stream across auth
// rotation and reconnects.
//
// This file is an index of the packages in the module.
//
// # Getting Documentation
//
//	go doc github.com/dmitrymomot/realtime/core/stream
//	go doc -all github.com/dmitrymomot/realtime/integration/transport/sse
//
// # Core Packages
//
//	github.com/dmitrymomot/realtime/core/stream            - Session, Producer, Queue and Dispatcher over a pluggable Transport
//	github.com/dmitrymomot/realtime/core/stream/streamtest - Scriptable in-memory Transport and delivery recorder for tests
//	github.com/dmitrymomot/realtime/core/config            - Type-safe environment variable loading
//	github.com/dmitrymomot/realtime/core/logger            - Structured logging built on slog
//	github.com/dmitrymomot/realtime/core/health            - Liveness and readiness handlers with a small probe server
//
// # Utility Packages
//
//	github.com/dmitrymomot/realtime/pkg/async              - Asynchronous programming utilities with Future pattern
//	github.com/dmitrymomot/realtime/pkg/credential         - Authenticators: static, HS256 JWT, Redis-backed, chained
//
// # Integration Packages
//
//	github.com/dmitrymomot/realtime/integration/transport/sse          - Server-Sent Events transport over net/http
//	github.com/dmitrymomot/realtime/integration/transport/sse/ssetest  - Scriptable SSE test server
//	github.com/dmitrymomot/realtime/integration/transport/websocket    - WebSocket transport with JSON frames
//	github.com/dmitrymomot/realtime/integration/database/redis         - Redis client with connection retry and healthcheck
//
// # Commands
//
//	github.com/dmitrymomot/realtime/cmd/streamtail - Tail a stream from the command line and log every event
//
// # Quick Start
//
//	session, err := stream.NewSession(
//		func(kind stream.Kind, data json.RawMessage) {
//			log.Info("event", logger.Kind(string(kind)), slog.String("data", string(data)))
//		},
//		"notams",
//		"https://db.example.com/notams.json",
//		sse.New(),
//		stream.WithAuthenticator(credential.Static(token)),
//		stream.WithLogger(log),
//	)
//	if err != nil {
//		return err
//	}
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(session.Run(ctx))
//	return g.Wait()
package realtime
