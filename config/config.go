package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"validation-viewer/core/catalog"
	"validation-viewer/core/models"

	"gopkg.in/yaml.v3"
)

// Preference backends
const (
	PreferenceMemory   = "memory"
	PreferenceBadger   = "badger"
	PreferencePostgres = "postgres"
)

// Config holds the application configuration
type Config struct {
	// Comparison backend
	BackendURL      string        `yaml:"backend_url"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	PollTimeout     time.Duration `yaml:"poll_timeout"`
	MaxPollFailures int           `yaml:"max_poll_failures"`

	// Viewer
	DefaultMode        string        `yaml:"default_mode"`
	StoragePrefix      string        `yaml:"storage_prefix"`
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`

	// Preferences
	PreferenceBackend string `yaml:"preference_backend"`
	BadgerPath        string `yaml:"badger_path"`
	DatabaseURL       string `yaml:"database_url"`

	// Server
	ServerPort string `yaml:"server_port"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		BackendURL:         "http://localhost:8000",
		RequestTimeout:     30 * time.Second,
		PollInterval:       time.Second,
		PollTimeout:        800 * time.Millisecond,
		MaxPollFailures:    30,
		DefaultMode:        string(catalog.DefaultMode),
		StoragePrefix:      "validation_config_",
		SessionIdleTimeout: 12 * time.Hour,
		PreferenceBackend:  PreferenceMemory,
		BadgerPath:         "data/preferences",
		DatabaseURL:        "postgres://localhost/validation_viewer?sslmode=disable",
		ServerPort:         "8080",
		LogLevel:           "info",
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in increasing order of precedence.
// An empty path falls back to CONFIG_FILE.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: failed to parse %s: %w", models.ErrInvalidConfig, path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.BackendURL = getEnv("BACKEND_URL", c.BackendURL)
	c.DefaultMode = getEnv("DEFAULT_MODE", c.DefaultMode)
	c.StoragePrefix = getEnv("STORAGE_PREFIX", c.StoragePrefix)
	c.PreferenceBackend = getEnv("PREFERENCE_BACKEND", c.PreferenceBackend)
	c.BadgerPath = getEnv("BADGER_PATH", c.BadgerPath)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.ServerPort = getEnv("SERVER_PORT", c.ServerPort)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	var err error
	if c.RequestTimeout, err = getEnvDuration("REQUEST_TIMEOUT", c.RequestTimeout); err != nil {
		return err
	}
	if c.PollInterval, err = getEnvDuration("POLL_INTERVAL", c.PollInterval); err != nil {
		return err
	}
	if c.PollTimeout, err = getEnvDuration("POLL_TIMEOUT", c.PollTimeout); err != nil {
		return err
	}
	if c.SessionIdleTimeout, err = getEnvDuration("SESSION_IDLE_TIMEOUT", c.SessionIdleTimeout); err != nil {
		return err
	}
	if c.MaxPollFailures, err = getEnvInt("MAX_POLL_FAILURES", c.MaxPollFailures); err != nil {
		return err
	}
	if c.LogJSON, err = getEnvBool("LOG_JSON", c.LogJSON); err != nil {
		return err
	}
	return nil
}

// Validate checks the configuration for inconsistent values
func (c *Config) Validate() error {
	var errs []error
	if c.BackendURL == "" {
		errs = append(errs, errors.New("backend url is required"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.PollTimeout <= 0 || c.PollTimeout >= c.PollInterval {
		errs = append(errs, fmt.Errorf("poll timeout %s must be positive and shorter than poll interval %s", c.PollTimeout, c.PollInterval))
	}
	if c.MaxPollFailures <= 0 {
		errs = append(errs, errors.New("max poll failures must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	switch c.PreferenceBackend {
	case PreferenceMemory:
	case PreferenceBadger:
		if c.BadgerPath == "" {
			errs = append(errs, errors.New("badger path is required for the badger preference backend"))
		}
	case PreferencePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("database url is required for the postgres preference backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown preference backend %q", c.PreferenceBackend))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", models.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", models.ErrInvalidConfig, key, err)
	}
	return d, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", models.ErrInvalidConfig, key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", models.ErrInvalidConfig, key, err)
	}
	return b, nil
}
