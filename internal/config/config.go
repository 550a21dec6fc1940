// ABOUTME: Configuration loading and parsing for the chatbot service
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Session backend names accepted in session.backend.
const (
	SessionBackendMemory = "memory"
	SessionBackendSQLite = "sqlite"
	SessionBackendRedis  = "redis"
)

// Config represents the complete chatbot configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	LLM          LLMConfig          `yaml:"llm"`
	Database     DatabaseConfig     `yaml:"database"`
	Session      SessionConfig      `yaml:"session"`
	Capabilities CapabilitiesConfig `yaml:"capabilities"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds HTTP server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// LLMConfig holds model-service client configuration
type LLMConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	MaxRounds  int    `yaml:"max_rounds"`
	MaxRetries int    `yaml:"max_retries"`

	RequestTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	RequestTimeoutRaw string `yaml:"request_timeout"`
}

// DatabaseConfig holds product database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SessionConfig holds conversation transcript storage configuration
type SessionConfig struct {
	Backend      string `yaml:"backend"` // memory, sqlite, redis
	RedisAddr    string `yaml:"redis_addr"`
	HistoryLimit int    `yaml:"history_limit"`
}

// CapabilitiesConfig holds capability activation and per-capability settings
type CapabilitiesConfig struct {
	// Active is an optional comma-separated, case-insensitive allow-list of
	// capability names. Empty means all discovered capabilities are active.
	Active string `yaml:"active"`

	DispatchTimeout time.Duration `yaml:"-"`

	Weather  WeatherConfig  `yaml:"weather"`
	City     CityConfig     `yaml:"city"`
	Research ResearchConfig `yaml:"research"`

	// Raw string value for YAML unmarshaling
	DispatchTimeoutRaw string `yaml:"dispatch_timeout"`
}

// WeatherConfig holds OpenWeatherMap settings
type WeatherConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// CityConfig holds Wikipedia lookup settings
type CityConfig struct {
	BaseURL string `yaml:"base_url"`
}

// ResearchConfig holds Semantic Scholar settings
type ResearchConfig struct {
	BaseURL string `yaml:"base_url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every optional field set to its default.
// Used by tests and by serve when no config file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in defaults for optional fields.
func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "0.0.0.0:8000"
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o"
	}
	if c.LLM.MaxRounds <= 0 {
		c.LLM.MaxRounds = 5
	}
	if c.LLM.RequestTimeout == 0 && c.LLM.RequestTimeoutRaw == "" {
		c.LLM.RequestTimeout = 60 * time.Second
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/chatbot.db"
	}
	if c.Session.Backend == "" {
		c.Session.Backend = SessionBackendMemory
	}
	if c.Session.HistoryLimit <= 0 {
		c.Session.HistoryLimit = 200
	}
	if c.Capabilities.DispatchTimeout == 0 && c.Capabilities.DispatchTimeoutRaw == "" {
		c.Capabilities.DispatchTimeout = 30 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Session.Backend {
	case SessionBackendMemory, SessionBackendSQLite:
	case SessionBackendRedis:
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("session.redis_addr is required when session.backend is %q", SessionBackendRedis)
		}
	default:
		return fmt.Errorf("session.backend must be one of memory, sqlite, redis (got %q)", c.Session.Backend)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.LLM.RequestTimeoutRaw != "" {
		cfg.LLM.RequestTimeout, err = time.ParseDuration(cfg.LLM.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing llm.request_timeout %q: %w", cfg.LLM.RequestTimeoutRaw, err)
		}
	}

	if cfg.Capabilities.DispatchTimeoutRaw != "" {
		cfg.Capabilities.DispatchTimeout, err = time.ParseDuration(cfg.Capabilities.DispatchTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing capabilities.dispatch_timeout %q: %w", cfg.Capabilities.DispatchTimeoutRaw, err)
		}
	}

	return nil
}
