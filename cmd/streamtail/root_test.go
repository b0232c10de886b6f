package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/realtime/core/logger"
	"github.com/dmitrymomot/realtime/core/stream"
	"github.com/dmitrymomot/realtime/integration/transport/sse"
	"github.com/dmitrymomot/realtime/integration/transport/websocket"
)

func TestLoadSettings_FlagsOverride(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--endpoint", "https://db.example.com/notams.json",
		"--kind", "notams",
		"--transport", "websocket",
		"--lookback", "2m",
		"--token", "secret",
		"--health-addr", ":0",
		"--log-level", "debug",
		"--json",
	}))

	s, err := loadSettings(cmd)
	require.NoError(t, err)

	assert.Equal(t, "https://db.example.com/notams.json", s.stream.Endpoint)
	assert.Equal(t, "notams", s.stream.Kind)
	assert.Equal(t, 2*time.Minute, s.stream.Lookback)
	assert.Equal(t, "websocket", s.cli.Transport)
	assert.Equal(t, "secret", s.cli.Token)
	assert.Equal(t, ":0", s.cli.HealthAddr)
	assert.Equal(t, "debug", s.cli.LogLevel)
	assert.True(t, s.cli.JSON)
}

func TestRootCmd_CredentialFlagsExclusive(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--endpoint", "https://db.example.com/x.json", "--token", "a", "--jwt-secret", "b"})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}

func TestNewTransport(t *testing.T) {
	t.Parallel()

	log := logger.Discard()

	tr, err := newTransport("sse", log)
	require.NoError(t, err)
	assert.IsType(t, &sse.Transport{}, tr)

	tr, err = newTransport("", log)
	require.NoError(t, err)
	assert.IsType(t, &sse.Transport{}, tr)

	tr, err = newTransport("websocket", log)
	require.NoError(t, err)
	assert.IsType(t, &websocket.Transport{}, tr)

	_, err = newTransport("grpc", log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown transport "grpc"`)
}

func TestNewAuthenticator(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("none", func(t *testing.T) {
		t.Parallel()
		auth, err := newAuthenticator(cliConfig{}, nil)
		require.NoError(t, err)
		assert.Nil(t, auth)
	})

	t.Run("static token", func(t *testing.T) {
		t.Parallel()
		auth, err := newAuthenticator(cliConfig{Token: "tok"}, nil)
		require.NoError(t, err)
		got, err := auth(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok", got)
	})

	t.Run("jwt", func(t *testing.T) {
		t.Parallel()
		auth, err := newAuthenticator(cliConfig{JWTSecret: "s3cret"}, nil)
		require.NoError(t, err)
		first, err := auth(ctx)
		require.NoError(t, err)
		second, err := auth(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, first)
		assert.NotEqual(t, first, second, "each call signs a fresh token")
	})

	t.Run("redis key without client", func(t *testing.T) {
		t.Parallel()
		_, err := newAuthenticator(cliConfig{RedisTokenKey: "stream:token"}, nil)
		require.Error(t, err)
	})
}

func TestLogEvent(t *testing.T) {
	t.Parallel()

	var cb stream.Callback = logEvent(logger.Discard())
	assert.NotPanics(t, func() {
		cb("notams", json.RawMessage(`{"id":1}`))
	})
}
