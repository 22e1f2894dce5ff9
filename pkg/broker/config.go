package broker

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the settings used to establish a Session.
type Config struct {
	Addr           string        `env:"BUILDIT_AMQP_ADDR"`                                  // AMQP URI, credentials and vhost included
	ConnectionName string        `env:"BUILDIT_AMQP_CONNECTION_NAME" envDefault:"jobsubmit"` // prefix of the name shown in the broker UI
	Heartbeat      time.Duration `env:"BUILDIT_AMQP_HEARTBEAT"       envDefault:"10s"`
	Locale         string        `env:"BUILDIT_AMQP_LOCALE"          envDefault:"en_US"`
}

// Load loads broker configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse broker config: %w", err)
	}
	return cfg, nil
}
