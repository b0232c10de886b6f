// Package stream ingests server-push event streams and delivers their payloads
// to an application callback.
//
// A Session composes three parts that share one Queue:
//
//   - Producer owns one Transport connection at a time. It computes a replay
//     cursor (now minus the lookback window), mints a fresh credential, opens the
//     connection and forwards data events onto the queue. keep-alive frames are
//     dropped, auth_revoked triggers an in-place reconnect and cancel stops the
//     producer with ErrStreamCanceled. When the server ends the stream the
//     producer connects again with a new cursor and credential.
//   - Queue is an unbounded FIFO. Close appends a stop item that is always the
//     last thing the reader observes.
//   - Dispatcher drains the queue on its own goroutine, decodes the
//     {"path": ..., "data": ...} payload and calls the callback with the data field.
//
// # Basic Usage
//
//	session, err := stream.NewSession(
//		func(kind stream.Kind, data json.RawMessage) {
//			log.Printf("%s: %s", kind, data)
//		},
//		"notams",
//		"https://example.firebaseio.com/notams.json",
//		sse.New(),
//		stream.WithAuthenticator(credential.Static(token)),
//		stream.WithLogger(log),
//	)
//	if err != nil {
//		return err
//	}
//
//	if err := session.Start(); err != nil {
//		return err
//	}
//	defer session.Shutdown(context.Background())
//
// # Credentials
//
// The authenticator is called on every (re)connect and its result is never cached,
// so tokens can be rotated without restarting:
//
//	session.UpdateAuth(credential.FromRedis(client, "stream:token"))
//
// # Lifecycle
//
// Start is a no-op while the producer runs. A producer is single-use; after it exits
// (cancel, HTTP error, unclassified fault) call Restart, or Reset followed by Start.
// Reset stops and joins the old producer before dropping queued messages, so no stale
// writer can race the new one.
//
// Shutdown is terminal. It stops and joins the producer, then closes the queue and
// waits for the dispatcher to deliver what was already queued.
//
// # Error Handling
//
// Forced closes, dropped sockets and HTTP error responses end a producer quietly
// (see IsBenign). An end of stream is answered with a reconnect; an empty stream
// waits an exponential backoff first (WithReconnectBackoff), and network failures
// while reopening are retried with the same backoff. Lost read permission, credential failures and
// unclassified faults are reported to the ErrorHandler and surface via Healthcheck.
// Malformed payloads, payloads without a data field and callback panics are logged,
// reported and skipped; they never stop the dispatcher.
//
// # errgroup Integration
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(session.Run(ctx))
//	return g.Wait()
package stream
