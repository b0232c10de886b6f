package stream

import "time"

// DefaultKind is used when the configuration leaves the kind empty.
const DefaultKind = "default"

// Config holds the configuration for a stream session.
// Designed for environment-based configuration with core/config.
type Config struct {
	Endpoint        string        `env:"STREAM_ENDPOINT"`
	Kind            string        `env:"STREAM_KIND" envDefault:"default"`
	Lookback        time.Duration `env:"STREAM_LOOKBACK" envDefault:"10m"`
	ShutdownTimeout time.Duration `env:"STREAM_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	Backoff         time.Duration `env:"STREAM_RECONNECT_BACKOFF" envDefault:"1s"`
	MaxBackoff      time.Duration `env:"STREAM_MAX_RECONNECT_BACKOFF" envDefault:"1m"`
}

// DefaultConfig returns the defaults used when no environment is set.
func DefaultConfig() Config {
	return Config{
		Kind:            DefaultKind,
		Lookback:        DefaultLookback,
		ShutdownTimeout: DefaultShutdownTimeout,
		Backoff:         DefaultReconnectBackoff,
		MaxBackoff:      DefaultMaxReconnectBackoff,
	}
}
