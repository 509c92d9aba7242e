// Package config provides configuration structures and loading logic for the
// guarded fetch layer.
//
// Configuration is loaded once at process start and treated as immutable for
// the process lifetime: the allow-list and length ceilings are compiled into
// the validator and never change underneath it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the global configuration for the fetch layer.
type Config struct {
	Security  SecurityConfig  `yaml:"security"`
	Retry     RetryConfig     `yaml:"retry"`
	HTTP      HTTPConfig      `yaml:"http"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SecurityConfig holds the allow-list and the input length ceilings
// enforced by the validation gate.
type SecurityConfig struct {
	// AllowedDomains are hostname suffixes; a request hostname is accepted
	// when it equals an entry or is a dot-separated child of one.
	AllowedDomains       []string `yaml:"allowed_domains"`
	MaxURLLength         int      `yaml:"max_url_length"`
	MaxHeaderKeyLength   int      `yaml:"max_header_key_length"`
	MaxHeaderValueLength int      `yaml:"max_header_value_length"`
}

// RetryConfig defines retry behavior for guarded fetches.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts per logical call (minimum 1).
	MaxAttempts       int           `yaml:"max_attempts"`
	InitialBackoff    time.Duration `yaml:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	Jitter            bool          `yaml:"jitter"`
}

// HTTPConfig holds settings for the native HTTP client and the curl fallback.
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// TelemetryConfig holds configuration for OpenTelemetry and Prometheus.
type TelemetryConfig struct {
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
	MetricsAddress string `yaml:"metrics_address"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the built-in configuration: the figma.com domain family
// and the standard ceilings.
func Default() *Config {
	return &Config{
		Security: SecurityConfig{
			AllowedDomains:       []string{"api.figma.com", "figma.com"},
			MaxURLLength:         2048,
			MaxHeaderKeyLength:   256,
			MaxHeaderValueLength: 8192,
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			MaxBodyBytes: 10 * 1024 * 1024,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a file and applies environment variable
// overrides. An empty path loads defaults plus environment overrides only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		//nolint:gosec // Config file path is controlled by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("FETCHGUARD_ALLOWED_DOMAINS"); val != "" {
		parts := strings.Split(val, ",")
		domains := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				domains = append(domains, p)
			}
		}
		cfg.Security.AllowedDomains = domains
	}
	if val := os.Getenv("FETCHGUARD_MAX_ATTEMPTS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Retry.MaxAttempts = n
		}
	}
	if val := os.Getenv("FETCHGUARD_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("FETCHGUARD_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}
	if val := os.Getenv("FETCHGUARD_METRICS_ADDR"); val != "" {
		cfg.Telemetry.MetricsAddress = val
	}
	if val := os.Getenv("FETCHGUARD_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	if len(c.Security.AllowedDomains) == 0 {
		return fmt.Errorf("security.allowed_domains must not be empty")
	}
	for _, d := range c.Security.AllowedDomains {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("security.allowed_domains must not contain empty entries")
		}
		if strings.Contains(d, "://") {
			return fmt.Errorf("security.allowed_domains entry %q must not contain a scheme", d)
		}
	}
	if c.Security.MaxURLLength <= 0 {
		return fmt.Errorf("security.max_url_length must be positive")
	}
	if c.Security.MaxHeaderKeyLength <= 0 {
		return fmt.Errorf("security.max_header_key_length must be positive")
	}
	if c.Security.MaxHeaderValueLength <= 0 {
		return fmt.Errorf("security.max_header_value_length must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Retry.InitialBackoff < 0 || c.Retry.MaxBackoff < 0 {
		return fmt.Errorf("retry backoff durations must not be negative")
	}
	if c.Retry.BackoffMultiplier < 1 {
		return fmt.Errorf("retry.backoff_multiplier must be at least 1")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be positive")
	}
	return nil
}
