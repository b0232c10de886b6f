package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Static returns an authenticator that always yields token.
// An empty token yields ErrEmptyToken on every call.
func Static(token string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		if token == "" {
			return "", ErrEmptyToken
		}
		return token, nil
	}
}

// Func adapts a context-free token source, such as an OAuth2 token source's
// accessor, into an authenticator. An empty token yields ErrEmptyToken.
func Func(fn func() (string, error)) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		token, err := fn()
		if err != nil {
			return "", err
		}
		if token == "" {
			return "", ErrEmptyToken
		}
		return token, nil
	}
}

// Getter is the subset of a go-redis client used by FromRedis.
// *redis.Client, *redis.ClusterClient and redis.UniversalClient satisfy it.
type Getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// FromRedis returns an authenticator that reads the current token from key on every call,
// so a separate process can rotate it.
func FromRedis(client Getter, key string) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		token, err := client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%w: redis key %q", ErrTokenNotFound, key)
		}
		if err != nil {
			return "", fmt.Errorf("read token from redis: %w", err)
		}
		if token == "" {
			return "", ErrEmptyToken
		}
		return token, nil
	}
}

// FirstOf returns an authenticator that tries fns in order and yields the first
// non-empty token. Context errors stop the chain immediately.
func FirstOf(fns ...func(context.Context) (string, error)) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		var errs []error
		for _, fn := range fns {
			if fn == nil {
				continue
			}

			token, err := fn(ctx)
			if err == nil && token != "" {
				return token, nil
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return "", ctxErr
				}
				errs = append(errs, err)
			}
		}

		return "", errors.Join(append([]error{ErrTokenNotFound}, errs...)...)
	}
}
