package extension

import "time"

// Store drivers the extension can open from configuration.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds the Tuition extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.tuition" or "tuition" keys).
type Config struct {
	// StoreDriver selects the backend opened when no store was provided
	// programmatically: memory, postgres or mongo (default: memory).
	StoreDriver string `json:"store_driver" mapstructure:"store_driver" yaml:"store_driver"`

	// StoreDSN is the PostgreSQL connection string or the MongoDB URI.
	StoreDSN string `json:"store_dsn" mapstructure:"store_dsn" yaml:"store_dsn"`

	// StoreDatabase is the MongoDB database name (default: "tuition").
	StoreDatabase string `json:"store_database" mapstructure:"store_database" yaml:"store_database"`

	// DisableScheduler keeps the engine from polling for due recurrences.
	// Another process, or manual ticks, must drive them.
	DisableScheduler bool `json:"disable_scheduler" mapstructure:"disable_scheduler" yaml:"disable_scheduler"`

	// PollInterval is how often due recurrences are looked up (default: 1m).
	PollInterval time.Duration `json:"poll_interval" mapstructure:"poll_interval" yaml:"poll_interval"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		StoreDriver:   DriverMemory,
		StoreDatabase: "tuition",
		PollInterval:  time.Minute,
	}
}
