// Package config reads server settings from the environment, after loading an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr           string        `env:"ADDR" envDefault:":8080"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"LOG_FORMAT" envDefault:"json"`
	RoundTimeout   time.Duration `env:"ROUND_TIMEOUT" envDefault:"30s"`
	HitPacing      time.Duration `env:"HIT_PACING" envDefault:"1s"`
	OutboxSize     int           `env:"OUTBOX_SIZE" envDefault:"32"`
	CatalogPath    string        `env:"CATALOG_PATH"`
	DatabaseDSN    string        `env:"DATABASE_DSN"`
	ConsulAddr     string        `env:"CONSUL_ADDR"`
	ServiceName    string        `env:"SERVICE_NAME" envDefault:"monster-duel"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
}

// Load reads files (default ".env") into the process environment without
// overriding variables that are already set, then parses Config. Missing
// files are not an error.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return parse(env.Options{})
}

// FromMap parses Config from vars only, ignoring the process environment.
func FromMap(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.RoundTimeout <= 0:
		return fmt.Errorf("ROUND_TIMEOUT must be positive, got %s", c.RoundTimeout)
	case c.HitPacing <= 0:
		return fmt.Errorf("HIT_PACING must be positive, got %s", c.HitPacing)
	case c.OutboxSize < 1:
		return fmt.Errorf("OUTBOX_SIZE must be at least 1, got %d", c.OutboxSize)
	}
	return nil
}
