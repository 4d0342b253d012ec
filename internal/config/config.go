// Package config loads the tuition server configuration from a file, a .env
// file and TUITION_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix is the prefix of environment overrides: http.addr is read from
// TUITION_HTTP_ADDR.
const EnvPrefix = "TUITION"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	App struct {
		Env string `mapstructure:"env"`
	} `mapstructure:"app"`

	HTTP struct {
		Addr     string `mapstructure:"addr"`
		BasePath string `mapstructure:"base_path"`
	} `mapstructure:"http"`

	Store struct {
		Driver   string `mapstructure:"driver"`
		// DSN is the PostgreSQL connection string or the MongoDB URI.
		DSN      string `mapstructure:"dsn"`
		Database string `mapstructure:"database"`
	} `mapstructure:"store"`

	Engine struct {
		PollInterval   time.Duration `mapstructure:"poll_interval"`
		CronUser       string        `mapstructure:"cron_user"`
		DefaultCharges []string      `mapstructure:"default_charges"`
	} `mapstructure:"engine"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`

	Sentry struct {
		DSN              string  `mapstructure:"dsn"`
		TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
	} `mapstructure:"sentry"`
}

// defaults registers every key so AutomaticEnv can override it.
func defaults(v *viper.Viper) {
	v.SetDefault("app.env", "prod")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.base_path", "/tuition")
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.database", "tuition")
	v.SetDefault("engine.poll_interval", time.Minute)
	v.SetDefault("engine.cron_user", "")
	v.SetDefault("engine.default_charges", []string{})
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.traces_sample_rate", 0.0)
}

// Load reads path (optional), then the .env file of the working directory
// (optional), then the environment.
func Load(path string) (Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("config: decode: %w", err)
	}
	return c, c.Validate()
}

// Validate checks the store settings.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
		return nil
	case DriverPostgres, DriverMongo:
		if c.Store.DSN == "" {
			return fmt.Errorf("config: store.dsn is required for the %s driver", c.Store.Driver)
		}
		return nil
	}
	return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
}
