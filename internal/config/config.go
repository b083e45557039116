// Package config loads relay settings from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the binaries need to wire themselves.
type Config struct {
	Port        string `env:"PORT" envDefault:"8000"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	// RedisAddr is optional: empty disables the background persist
	// queue and partial-cache writes happen in the request path.
	RedisAddr string `env:"REDIS_ADDR"`

	DataHost  string `env:"UPSTREAM_DATA_HOST" envDefault:"https://pokeapi.co/api/v2"`
	MediaHost string `env:"UPSTREAM_MEDIA_HOST" envDefault:"https://raw.githubusercontent.com"`

	// FreshnessTTL gates how long freshness records are trusted before
	// the next conditional probe. 264h is eleven days.
	FreshnessTTL time.Duration `env:"FRESHNESS_TTL" envDefault:"264h"`
	// TransportTTL bounds the in-process upstream response cache.
	TransportTTL time.Duration `env:"TRANSPORT_CACHE_TTL" envDefault:"10m"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"3s"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
