package extension

import (
	"time"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/plugin"
	"github.com/xraph/tuition/store"
)

// Option configures the Tuition Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine, bypassing StoreDriver.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithHost sets the sales, invoicing, party and catalog services the engine
// works against. It is required.
func WithHost(h tuition.Host) Option {
	return func(e *Extension) {
		e.host = h
		e.hostSet = true
	}
}

// WithTuitionOption passes a tuition.Option through to the underlying engine.
func WithTuitionOption(opt tuition.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a tuition plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, tuition.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithStoreDriver selects the store opened from configuration.
func WithStoreDriver(driver, dsn string) Option {
	return func(e *Extension) {
		e.config.StoreDriver = driver
		e.config.StoreDSN = dsn
	}
}

// WithDisableScheduler stops the engine from polling for due recurrences.
func WithDisableScheduler() Option {
	return func(e *Extension) { e.config.DisableScheduler = true }
}

// WithPollInterval sets how often due recurrences are looked up.
func WithPollInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.PollInterval = d }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
