package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full service configuration, parsed from the environment.
type Config struct {
	Service  ServiceConfig
	Server   ServerConfig
	Database DatabaseConfig
	Clients  ClientsConfig
}

type ServiceConfig struct {
	Name        string `env:"SERVICE_NAME" envDefault:"workflow-service"`
	Version     string `env:"SERVICE_VERSION" envDefault:"dev"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

type ServerConfig struct {
	Port            int           `env:"PORT" envDefault:"8086"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	RequestTimeout  time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type DatabaseConfig struct {
	URL         string        `env:"DATABASE_URL,required"`
	MaxConns    int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns    int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	MaxConnLife time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"30m"`
	MaxIdleTime time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
}

type ClientsConfig struct {
	// PermissionsURL is the base URL of the role/permission lookup service.
	PermissionsURL     string        `env:"PERMISSIONS_URL" envDefault:"http://localhost:8081"`
	PermissionsTimeout time.Duration `env:"PERMISSIONS_TIMEOUT" envDefault:"5s"`

	// NATSURL enables notification publishing when non-empty.
	NATSURL string `env:"NATS_URL"`

	// RedisAddr enables the permission grant cache when non-empty.
	RedisAddr          string        `env:"REDIS_ADDR"`
	RedisPassword      string        `env:"REDIS_PASSWORD"`
	PermissionCacheTTL time.Duration `env:"PERMISSION_CACHE_TTL" envDefault:"30s"`
}

// Load reads .env (when present) and parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional in containers

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
