// Package config provides the configuration schema and loader for dbbridge.
//
// Values are layered: built-in defaults suitable for local development, then
// an optional YAML file, then an optional .env file, then the process
// environment. Later layers win.
package config

import (
	"time"

	"github.com/MrWong99/dbbridge/internal/store/postgres"
	"github.com/MrWong99/dbbridge/internal/store/redis"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

// ServerConfig holds process-wide settings.
type ServerConfig struct {
	// LogLevel controls verbosity. Logs always go to stderr; stdout carries
	// the protocol.
	LogLevel LogLevel `yaml:"log_level"`

	// HTTPAddr, when set, starts a listener serving /metrics, /healthz and
	// /readyz (e.g. ":9090"). Empty disables it.
	HTTPAddr string `yaml:"http_addr"`
}

// PostgresConfig configures the relational Store Handle. Timeouts are in
// milliseconds to match the environment variables.
type PostgresConfig struct {
	// Enabled controls whether the store is connected at all. Default true.
	Enabled bool `yaml:"enabled"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`

	MaxConnections   int `yaml:"max_connections"`
	IdleTimeoutMS    int `yaml:"idle_timeout_ms"`
	ConnectTimeoutMS int `yaml:"connect_timeout_ms"`
}

// StoreConfig converts c into the store package's configuration.
func (c PostgresConfig) StoreConfig() postgres.Config {
	return postgres.Config{
		Host:            c.Host,
		Port:            c.Port,
		Database:        c.Database,
		User:            c.User,
		Password:        c.Password,
		SSLMode:         c.SSLMode,
		MaxConns:        int32(c.MaxConnections),
		IdleTimeout:     time.Duration(c.IdleTimeoutMS) * time.Millisecond,
		ConnectTimeout:  time.Duration(c.ConnectTimeoutMS) * time.Millisecond,
		ApplicationName: "dbbridge",
	}
}

// RedisConfig configures the key-value Store Handle.
type RedisConfig struct {
	// Enabled controls whether the store is connected at all. Default true.
	Enabled bool `yaml:"enabled"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	ConnectTimeoutMS int `yaml:"connect_timeout_ms"`
}

// StoreConfig converts c into the store package's configuration.
func (c RedisConfig) StoreConfig() redis.Config {
	return redis.Config{
		Host:           c.Host,
		Port:           c.Port,
		Password:       c.Password,
		DB:             c.DB,
		ConnectTimeout: time.Duration(c.ConnectTimeoutMS) * time.Millisecond,
	}
}

// Default returns the built-in configuration: both stores on localhost with
// their stock ports.
func Default() *Config {
	return &Config{
		Server: ServerConfig{LogLevel: LogInfo},
		Postgres: PostgresConfig{
			Enabled:          true,
			Host:             "localhost",
			Port:             5432,
			Database:         "testdb",
			User:             "postgres",
			SSLMode:          "disable",
			MaxConnections:   10,
			IdleTimeoutMS:    30000,
			ConnectTimeoutMS: 2000,
		},
		Redis: RedisConfig{
			Enabled:          true,
			Host:             "localhost",
			Port:             6379,
			ConnectTimeoutMS: 5000,
		},
	}
}
