// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fawad-mazhar/runweave/internal/models"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig                `yaml:"server"`
	Postgres  PostgresConfig              `yaml:"postgres"`
	LevelDB   LevelDBConfig               `yaml:"leveldb"`
	NATS      NATSConfig                  `yaml:"nats"`
	Engine    EngineConfig                `yaml:"engine"`
	Workflows []models.WorkflowDefinition `yaml:"workflows"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
}

// PostgresConfig holds the optional run archive configuration.
// An empty URL disables the Postgres archive.
type PostgresConfig struct {
	URL string `yaml:"-"`
}

// LevelDBConfig holds the local run store configuration
type LevelDBConfig struct {
	Path string `yaml:"path"`
}

// NATSConfig holds the optional event stream configuration.
// An empty URL disables event publishing.
type NATSConfig struct {
	URL           string `yaml:"url"`
	EventsSubject string `yaml:"eventsSubject"`
}

// EngineConfig holds execution and scheduling configuration
type EngineConfig struct {
	MaxParallel      int                `yaml:"maxParallel"`
	SamplingInterval models.Duration    `yaml:"samplingInterval"`
	TerminationGrace models.Duration    `yaml:"terminationGrace"`
	ShutdownTimeout  int                `yaml:"shutdownTimeout"`
	DefaultRetry     models.RetryConfig `yaml:"defaultRetry"`
}

// Default configuration values
const (
	DefaultServerPort         = "8080"
	DefaultServerReadTimeout  = 30
	DefaultServerWriteTimeout = 30
	DefaultMaxParallel        = 4
	DefaultSamplingInterval   = 500 * time.Millisecond
	DefaultTerminationGrace   = 5 * time.Second
	DefaultShutdownTimeout    = 30
	DefaultLevelDBPath        = "./data/leveldb"
	DefaultEventsSubject      = "runweave.events"
	DefaultRetryMaxAttempts   = 1
	DefaultRetryInitialDelay  = 1 * time.Second
	DefaultRetryMaxDelay      = 1 * time.Minute
	DefaultRetryMultiplier    = 2.0
)

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// Load creates a new configuration from a YAML file with environment
// variable overrides. Workflow definitions are loaded from the same file.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.Server = ServerConfig{
		Port:         getEnv("RUNWEAVE_SERVER_PORT", orString(config.Server.Port, DefaultServerPort)),
		ReadTimeout:  getEnvInt("RUNWEAVE_SERVER_READ_TIMEOUT", orInt(config.Server.ReadTimeout, DefaultServerReadTimeout)),
		WriteTimeout: getEnvInt("RUNWEAVE_SERVER_WRITE_TIMEOUT", orInt(config.Server.WriteTimeout, DefaultServerWriteTimeout)),
	}

	// The Postgres archive is opt-in through the environment only, so
	// credentials never live in the config file.
	config.Postgres = PostgresConfig{
		URL: os.Getenv("RUNWEAVE_POSTGRES_URL"),
	}

	config.LevelDB = LevelDBConfig{
		Path: getEnv("RUNWEAVE_LEVELDB_PATH", orString(config.LevelDB.Path, DefaultLevelDBPath)),
	}

	config.NATS = NATSConfig{
		URL:           getEnv("RUNWEAVE_NATS_URL", config.NATS.URL),
		EventsSubject: getEnv("RUNWEAVE_NATS_EVENTS_SUBJECT", orString(config.NATS.EventsSubject, DefaultEventsSubject)),
	}

	config.Engine.MaxParallel = getEnvInt("RUNWEAVE_MAX_PARALLEL", orInt(config.Engine.MaxParallel, DefaultMaxParallel))
	config.Engine.ShutdownTimeout = getEnvInt("RUNWEAVE_SHUTDOWN_TIMEOUT", orInt(config.Engine.ShutdownTimeout, DefaultShutdownTimeout))
	if config.Engine.SamplingInterval == 0 {
		config.Engine.SamplingInterval = models.Duration(DefaultSamplingInterval)
	}
	if config.Engine.TerminationGrace == 0 {
		config.Engine.TerminationGrace = models.Duration(DefaultTerminationGrace)
	}
	ApplyRetryDefaults(&config.Engine.DefaultRetry)

	if config.Workflows == nil {
		config.Workflows = make([]models.WorkflowDefinition, 0)
	}

	return &config, nil
}

// ApplyRetryDefaults fills unset retry policy fields with engine defaults.
func ApplyRetryDefaults(cfg *models.RetryConfig) {
	if cfg.Strategy == "" {
		cfg.Strategy = models.RetryExponential
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetryMaxAttempts
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = models.Duration(DefaultRetryInitialDelay)
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = models.Duration(DefaultRetryMaxDelay)
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = DefaultRetryMultiplier
	}
}

func orString(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func orInt(value, fallback int) int {
	if value != 0 {
		return value
	}
	return fallback
}
