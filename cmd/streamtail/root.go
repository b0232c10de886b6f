package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/realtime/core/config"
	"github.com/dmitrymomot/realtime/core/health"
	"github.com/dmitrymomot/realtime/core/logger"
	"github.com/dmitrymomot/realtime/core/stream"
	"github.com/dmitrymomot/realtime/integration/database/redis"
	"github.com/dmitrymomot/realtime/integration/transport/sse"
	"github.com/dmitrymomot/realtime/integration/transport/websocket"
	"github.com/dmitrymomot/realtime/pkg/credential"
)

const serviceName = "streamtail"

// Transport names accepted by --transport.
const (
	transportSSE       = "sse"
	transportWebSocket = "websocket"
)

// cliConfig holds the settings that are not part of stream.Config or redis.Config.
type cliConfig struct {
	Transport     string `env:"STREAM_TRANSPORT" envDefault:"sse"`
	Token         string `env:"STREAM_TOKEN"`
	JWTSecret     string `env:"STREAM_JWT_SECRET"`
	RedisTokenKey string `env:"STREAM_REDIS_TOKEN_KEY"`
	HealthAddr    string `env:"HEALTH_ADDR"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv        string `env:"APP_ENV"`
	JSON          bool   `env:"LOG_JSON"`
}

// settings is the resolved configuration of one run.
type settings struct {
	cli    cliConfig
	stream stream.Config
	redis  redis.Config
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Tail a realtime database stream",
		Long:          "streamtail opens an event stream, follows it across reconnects and logs every put and patch event.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			return run(cmd.Context(), s)
		},
	}

	flags := cmd.Flags()
	flags.String("endpoint", "", "stream endpoint URL (STREAM_ENDPOINT)")
	flags.String("kind", stream.DefaultKind, "kind passed to every delivery (STREAM_KIND)")
	flags.String("transport", transportSSE, "transport to use: sse or websocket (STREAM_TRANSPORT)")
	flags.Duration("lookback", stream.DefaultLookback, "how far back each connection starts (STREAM_LOOKBACK)")
	flags.String("token", "", "static auth token (STREAM_TOKEN)")
	flags.String("jwt-secret", "", "sign HS256 auth tokens with this secret (STREAM_JWT_SECRET)")
	flags.String("redis-token-key", "", "read the auth token from this Redis key (STREAM_REDIS_TOKEN_KEY)")
	flags.String("health-addr", "", "serve health endpoints on this address, e.g. :8081 (HEALTH_ADDR)")
	flags.String("log-level", "info", "log level: debug, info, warn, error (LOG_LEVEL)")
	flags.Bool("json", false, "log in JSON (LOG_JSON)")
	cmd.MarkFlagsMutuallyExclusive("token", "jwt-secret", "redis-token-key")

	return cmd
}

// loadSettings reads the environment, then applies every flag set on the command line.
func loadSettings(cmd *cobra.Command) (settings, error) {
	var s settings
	if err := config.Load(&s.cli); err != nil {
		return s, fmt.Errorf("load cli config: %w", err)
	}
	if err := config.Load(&s.stream); err != nil {
		return s, fmt.Errorf("load stream config: %w", err)
	}
	if err := config.Load(&s.redis); err != nil {
		return s, fmt.Errorf("load redis config: %w", err)
	}

	flags := cmd.Flags()
	overrideString := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}

	overrideString("endpoint", &s.stream.Endpoint)
	overrideString("kind", &s.stream.Kind)
	overrideString("transport", &s.cli.Transport)
	overrideString("token", &s.cli.Token)
	overrideString("jwt-secret", &s.cli.JWTSecret)
	overrideString("redis-token-key", &s.cli.RedisTokenKey)
	overrideString("health-addr", &s.cli.HealthAddr)
	overrideString("log-level", &s.cli.LogLevel)
	if flags.Changed("lookback") {
		s.stream.Lookback, _ = flags.GetDuration("lookback")
	}
	if flags.Changed("json") {
		s.cli.JSON, _ = flags.GetBool("json")
	}

	if s.stream.Endpoint == "" {
		return s, stream.ErrEmptyEndpoint
	}
	return s, nil
}

func newLogger(cfg cliConfig) *slog.Logger {
	opts := []logger.Option{logger.WithOutput(os.Stderr)}
	if cfg.AppEnv != "" {
		opts = append(opts, logger.WithEnvironment(cfg.AppEnv, serviceName))
	}
	opts = append(opts, logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))
	if cfg.JSON {
		opts = append(opts, logger.WithJSONFormatter())
	}
	return logger.New(opts...)
}

func newTransport(name string, log *slog.Logger) (stream.Transport, error) {
	switch name {
	case transportSSE, "":
		return sse.New(sse.WithLogger(log), sse.WithHeader("User-Agent", serviceName)), nil
	case transportWebSocket:
		return websocket.New(websocket.WithLogger(log), websocket.WithHeader("User-Agent", serviceName)), nil
	default:
		return nil, fmt.Errorf("unknown transport %q: want %s or %s", name, transportSSE, transportWebSocket)
	}
}

// newAuthenticator picks the first configured credential source.
// A nil authenticator means the stream is opened without the auth parameter.
func newAuthenticator(cfg cliConfig, client credential.Getter) (stream.Authenticator, error) {
	switch {
	case cfg.Token != "":
		return credential.Static(cfg.Token), nil
	case cfg.JWTSecret != "":
		fn, err := credential.JWT([]byte(cfg.JWTSecret), credential.WithSubject(serviceName))
		if err != nil {
			return nil, fmt.Errorf("jwt authenticator: %w", err)
		}
		return fn, nil
	case cfg.RedisTokenKey != "":
		if client == nil {
			return nil, errors.New("redis token key is set but REDIS_URL is empty")
		}
		return credential.FromRedis(client, cfg.RedisTokenKey), nil
	}
	return nil, nil
}

// logEvent is the session callback: one log record per delivered event.
func logEvent(log *slog.Logger) stream.Callback {
	return func(kind stream.Kind, data json.RawMessage) {
		log.Info("event", logger.Kind(string(kind)), slog.String("data", string(data)))
	}
}

func run(ctx context.Context, s settings) error {
	log := newLogger(s.cli)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var checks []health.Check

	var client *goredis.Client
	if s.redis.ConnectionURL != "" {
		var err error
		client, err = redis.Connect(ctx, s.redis)
		if err != nil {
			return err
		}
		defer client.Close()
		checks = append(checks, redis.Healthcheck(client))
	}

	var getter credential.Getter
	if client != nil {
		getter = client
	}
	auth, err := newAuthenticator(s.cli, getter)
	if err != nil {
		return err
	}

	transport, err := newTransport(s.cli.Transport, log)
	if err != nil {
		return err
	}

	opts := []stream.SessionOption{
		stream.WithLogger(log),
		stream.WithErrorHandler(func(kind stream.Kind, err error) {
			log.Error("stream error", logger.Kind(string(kind)), logger.Error(err))
		}),
	}
	if auth != nil {
		opts = append(opts, stream.WithAuthenticator(auth))
	}

	session, err := stream.NewSessionFromConfig(s.stream, logEvent(log), transport, opts...)
	if err != nil {
		return err
	}
	checks = append(checks, session.Healthcheck)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(session.Run(gctx))

	if s.cli.HealthAddr != "" {
		srv := health.NewServer(s.cli.HealthAddr,
			health.WithLogger(log),
			health.WithCheck(checks...),
			health.WithShutdownTimeout(5*time.Second),
		)
		g.Go(srv.Run(gctx))
	}

	log.Info("tailing stream",
		logger.Endpoint(s.stream.Endpoint),
		logger.Kind(s.stream.Kind),
		slog.String("transport", s.cli.Transport),
		logger.SessionID(session.ID()),
	)

	if err := g.Wait(); err != nil {
		return err
	}

	st := session.Stats()
	log.Info("stream closed",
		logger.Count("delivered", int(st.Delivered)),
		logger.Count("connects", int(st.Connects)),
	)
	return nil
}
