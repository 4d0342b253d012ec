// Package extension provides the Forge extension adapter for Tuition.
//
// It implements the forge.Extension interface to integrate the subscription
// engine into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.tuition" or "tuition" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/store"
	"github.com/xraph/tuition/store/memory"
	"github.com/xraph/tuition/store/mongo"
	"github.com/xraph/tuition/store/postgres"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "tuition"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Recurring training subscriptions with sales and invoicing"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Tuition as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *tuition.Engine
	store      store.Store
	host       tuition.Host
	hostSet    bool
	engineOpts []tuition.Option
}

// New creates a new Tuition Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *tuition.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration, opens the
// store, builds the engine and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if !e.hostSet {
		return errors.New("tuition: extension requires a host (use WithHost)")
	}

	if e.store == nil {
		s, err := openStore(context.Background(), e.config)
		if err != nil {
			return err
		}
		e.store = s
	}

	eng, err := tuition.New(e.store, e.host, e.buildEngineOpts()...)
	if err != nil {
		return err
	}
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*tuition.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension]. Starting the engine migrates the store.
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("tuition: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(ctx context.Context) error {
	if e.engine != nil {
		if err := e.engine.Shutdown(ctx); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("tuition: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs tuition.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []tuition.Option {
	opts := make([]tuition.Option, 0, len(e.engineOpts)+2)

	if e.config.PollInterval > 0 {
		opts = append(opts, tuition.WithPollInterval(e.config.PollInterval))
	}
	if e.config.DisableScheduler {
		opts = append(opts, tuition.WithSchedulerLoop(false))
	}

	// Pass-through options win over config-derived ones.
	opts = append(opts, e.engineOpts...)

	return opts
}

// openStore opens the store named by cfg.StoreDriver.
func openStore(ctx context.Context, cfg Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case DriverMemory, "":
		return memory.New(), nil
	case DriverPostgres:
		if cfg.StoreDSN == "" {
			return nil, errors.New("tuition: store_dsn is required for the postgres driver")
		}
		s, err := postgres.New(ctx, cfg.StoreDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverMongo:
		if cfg.StoreDSN == "" {
			return nil, errors.New("tuition: store_dsn is required for the mongo driver")
		}
		s, err := mongo.Connect(cfg.StoreDSN, cfg.StoreDatabase)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("tuition: unknown store driver %q", cfg.StoreDriver)
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("tuition: configuration is required but not found in config files; " +
				"ensure 'extensions.tuition' or 'tuition' key exists in your config")
		}

		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("tuition: configuration loaded",
		forge.F("store_driver", e.config.StoreDriver),
		forge.F("disable_scheduler", e.config.DisableScheduler),
		forge.F("poll_interval", e.config.PollInterval),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.tuition", "tuition"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("tuition: loaded config from file", forge.F("key", key))
			return cfg, true
		}
		e.Logger().Warn("tuition: failed to bind config", forge.F("key", key))
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = defaults.StoreDriver
	}
	if cfg.StoreDatabase == "" {
		cfg.StoreDatabase = defaults.StoreDatabase
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableScheduler {
		yamlConfig.DisableScheduler = true
	}
	if yamlConfig.StoreDriver == "" {
		yamlConfig.StoreDriver = programmaticConfig.StoreDriver
	}
	if yamlConfig.StoreDSN == "" {
		yamlConfig.StoreDSN = programmaticConfig.StoreDSN
	}
	if yamlConfig.StoreDatabase == "" {
		yamlConfig.StoreDatabase = programmaticConfig.StoreDatabase
	}
	if yamlConfig.PollInterval == 0 {
		yamlConfig.PollInterval = programmaticConfig.PollInterval
	}
	return mergeWithDefaults(yamlConfig)
}
