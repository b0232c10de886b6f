// Package async runs functions on their own goroutine and lets the caller join them later.
//
// Exec starts fn(ctx, param) on a new goroutine and returns an ExecFuture. The future is
// the join handle. Await blocks until fn returns and AwaitContext bounds the wait.
// Done exposes a channel for select statements; IsComplete polls.
//
//	future := async.Exec(ctx, conn, func(ctx context.Context, c Conn) error {
//		return readLoop(ctx, c)
//	})
//
//	// later, from another goroutine
//	if err := future.AwaitContext(shutdownCtx); err != nil {
//		log.Println("reader exited:", err)
//	}
//
// A context canceled before the goroutine starts short-circuits fn and the future
// resolves to ctx.Err().
package async
