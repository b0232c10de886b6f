package credential_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/realtime/core/stream"
	"github.com/dmitrymomot/realtime/pkg/credential"
)

// fakeRedis answers Get from a map.
type fakeRedis struct {
	values map[string]string
	err    error
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func TestStatic(t *testing.T) {
	t.Parallel()

	token, err := credential.Static("abc")(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	_, err = credential.Static("")(context.Background())
	assert.ErrorIs(t, err, credential.ErrEmptyToken)
}

func TestFunc(t *testing.T) {
	t.Parallel()

	calls := 0
	auth := credential.Func(func() (string, error) {
		calls++
		return "rotated", nil
	})

	token, err := auth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rotated", token)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = auth(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "canceled context skips the source")

	boom := errors.New("boom")
	_, err = credential.Func(func() (string, error) { return "", boom })(context.Background())
	require.ErrorIs(t, err, boom)

	_, err = credential.Func(func() (string, error) { return "", nil })(context.Background())
	require.ErrorIs(t, err, credential.ErrEmptyToken)
}

func TestAssignableToAuthenticator(t *testing.T) {
	t.Parallel()

	var auth stream.Authenticator = credential.Static("abc")
	token, err := auth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestJWT(t *testing.T) {
	t.Parallel()

	secret := []byte("test-secret")
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("mints a fresh signed token per call", func(t *testing.T) {
		t.Parallel()

		auth, err := credential.JWT(secret,
			credential.WithSubject("streamtail"),
			credential.WithIssuer("realtime"),
			credential.WithTTL(15*time.Minute),
			credential.WithClaims(map[string]any{"scope": "read", "sub": "ignored"}),
			credential.WithClock(func() time.Time { return now }))
		require.NoError(t, err)

		first, err := auth(context.Background())
		require.NoError(t, err)
		second, err := auth(context.Background())
		require.NoError(t, err)
		assert.NotEqual(t, first, second, "jti differs per call")

		parsed, err := jwt.Parse(first, func(token *jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(func() time.Time { return now }))
		require.NoError(t, err)

		claims, ok := parsed.Claims.(jwt.MapClaims)
		require.True(t, ok)
		assert.Equal(t, "streamtail", claims["sub"])
		assert.Equal(t, "realtime", claims["iss"])
		assert.Equal(t, "read", claims["scope"])
		assert.NotEmpty(t, claims["jti"])
		assert.InDelta(t, float64(now.Unix()), claims["iat"], 0)
		assert.InDelta(t, float64(now.Add(15*time.Minute).Unix()), claims["exp"], 0)
	})

	t.Run("wrong secret fails verification", func(t *testing.T) {
		t.Parallel()

		auth, err := credential.JWT(secret)
		require.NoError(t, err)
		token, err := auth(context.Background())
		require.NoError(t, err)

		_, err = jwt.Parse(token, func(*jwt.Token) (any, error) {
			return []byte("other"), nil
		})
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("empty secret", func(t *testing.T) {
		t.Parallel()

		auth, err := credential.JWT(nil)
		assert.ErrorIs(t, err, credential.ErrEmptySecret)
		assert.Nil(t, auth)
	})
}

func TestFromRedis(t *testing.T) {
	t.Parallel()

	store := &fakeRedis{values: map[string]string{"stream:token": "rotated", "stream:blank": ""}}

	token, err := credential.FromRedis(store, "stream:token")(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rotated", token)

	store.values["stream:token"] = "rotated-again"
	token, err = credential.FromRedis(store, "stream:token")(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rotated-again", token, "value is read on every call")

	_, err = credential.FromRedis(store, "stream:missing")(context.Background())
	assert.ErrorIs(t, err, credential.ErrTokenNotFound)

	_, err = credential.FromRedis(store, "stream:blank")(context.Background())
	assert.ErrorIs(t, err, credential.ErrEmptyToken)

	down := errors.New("connection refused")
	_, err = credential.FromRedis(&fakeRedis{err: down}, "stream:token")(context.Background())
	assert.ErrorIs(t, err, down)
}

func TestFirstOf(t *testing.T) {
	t.Parallel()

	store := &fakeRedis{values: map[string]string{}}

	t.Run("falls back in order", func(t *testing.T) {
		t.Parallel()

		auth := credential.FirstOf(nil, credential.FromRedis(store, "missing"), credential.Static("fallback"))
		token, err := auth(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "fallback", token)
	})

	t.Run("joins errors when nothing yields a token", func(t *testing.T) {
		t.Parallel()

		auth := credential.FirstOf(credential.FromRedis(store, "missing"), credential.Static(""))
		_, err := auth(context.Background())
		assert.ErrorIs(t, err, credential.ErrTokenNotFound)
		assert.ErrorIs(t, err, credential.ErrEmptyToken)
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calledSecond := false
		auth := credential.FirstOf(
			func(ctx context.Context) (string, error) { return "", ctx.Err() },
			func(context.Context) (string, error) {
				calledSecond = true
				return "x", nil
			},
		)
		_, err := auth(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, calledSecond)
	})
}
