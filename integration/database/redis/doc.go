// Package redis provides Redis client initialization and health checking.
//
// It wraps go-redis with URL validation, ping-based readiness verification and
// exponential backoff retry. The stream tooling uses it to read rotating credentials
// published by another service (see pkg/credential.FromRedis).
//
// # Configuration
//
//	type Config struct {
//		ConnectionURL  string        `env:"REDIS_URL"`
//		RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
//		RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
//		ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
//	}
//
// Only redis:// and rediss:// (TLS) URLs are accepted.
//
// # Usage
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	readiness := health.Readiness(log, redis.Healthcheck(client))
//
// # Errors
//
//   - ErrEmptyConnectionURL: no URL configured
//   - ErrFailedToParseRedisConnString: bad scheme or malformed URL
//   - ErrRedisNotReady: ping never succeeded within the retry budget
//   - ErrHealthcheckFailed: Healthcheck ping failed
package redis
