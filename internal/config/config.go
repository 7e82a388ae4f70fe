// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every tabsync environment variable.
const EnvPrefix = "TABSYNC"

type Config struct {
	App   AppConfig
	DB    DBConfig
	Redis RedisConfig
	JWT   JWTConfig
}

type AppConfig struct {
	Port     int    `envconfig:"TABSYNC_APP_PORT" default:"8080"`
	LogLevel string `envconfig:"TABSYNC_LOG_LEVEL" default:"info"`
}

type DBConfig struct {
	Path string `envconfig:"TABSYNC_DB_PATH" default:"./data/tabsync.db"`
}

type RedisConfig struct {
	// Addr enables the cross-process gateway bridge when set.
	Addr     string `envconfig:"TABSYNC_REDIS_ADDR"`
	Password string `envconfig:"TABSYNC_REDIS_PASSWORD"`
	DB       int    `envconfig:"TABSYNC_REDIS_DB" default:"0"`
}

type JWTConfig struct {
	Secret        string        `envconfig:"TABSYNC_JWT_SECRET" required:"true"`
	TokenDuration time.Duration `envconfig:"TABSYNC_JWT_TOKEN_DURATION" default:"24h"`
}

// BridgeEnabled reports whether the redis bridge should be wired.
func (r RedisConfig) BridgeEnabled() bool {
	return r.Addr != ""
}

// Load reads a local .env file when present, then parses the
// environment into a Config.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may be fully set already.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}
