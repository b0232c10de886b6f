// Package health provides HTTP probes for service health monitoring.
//
// Handlers:
//   - Liveness: process is running (no dependency checks)
//   - Readiness: all dependency checks pass
//   - NoContent: returns 204 for minimal overhead
//
// Server mounts them on a dedicated listener so probes keep working while the
// stream workers are busy:
//
//	probes := health.NewServer(":8081",
//		health.WithLogger(log),
//		health.WithCheck(session.Healthcheck, redis.Healthcheck(client)),
//	)
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(probes.Run(ctx))
//	g.Go(session.Run(ctx))
//
// Checks follow the func(context.Context) error signature.
package health
