// Package credential provides token sources for stream connections.
//
// Every constructor returns a func(context.Context) (string, error), which is
// assignable to stream.Authenticator. Sources are evaluated on every (re)connect
// and never cache, so rotation needs no restart.
//
//	// Fixed token
//	auth := credential.Static(os.Getenv("STREAM_TOKEN"))
//
//	// HS256 JWT minted per connection
//	auth, err := credential.JWT(secret,
//		credential.WithSubject("streamtail"),
//		credential.WithTTL(15*time.Minute),
//	)
//
//	// Token rotated by another service
//	auth := credential.FromRedis(client, "stream:token")
//
//	// Prefer Redis, fall back to a static token
//	auth := credential.FirstOf(credential.FromRedis(client, "stream:token"), credential.Static(fallback))
//
//	session.UpdateAuth(auth)
package credential
