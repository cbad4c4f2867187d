// Package config provides configuration management for strck using Viper.
// It supports configuration from files, environment variables, and
// command-line flags, in that increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultRequestTimeout          = 30 * time.Second
	defaultResponseLimitBytes      = 40 * 1024 * 1024
	defaultPollingErrorBackoff     = 5 * time.Second
	defaultMetricChannelCapacity   = 40
	defaultEventChannelCapacity    = 256
	defaultManifestLatencyMaxMs    = 10_000
	defaultStreamLatencyMaxMs      = int64(2 * time.Hour / time.Millisecond)
	defaultMsnRegressionMax        = 1000
)

// Config holds all configuration for the application.
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// HTTPConfig holds diagnostic HTTP client configuration.
type HTTPConfig struct {
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	ResponseLimitBytes  int64         `mapstructure:"response_limit_bytes"`
	PollingErrorBackoff time.Duration `mapstructure:"polling_error_backoff"`
	UserAgent           string        `mapstructure:"user_agent"`
	MaxRequests         uint64        `mapstructure:"max_requests"`
	ExtraHeaders        []string      `mapstructure:"extra_headers"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds the bounded metric channel capacities and per-metric
// histogram ceilings.
type MetricsConfig struct {
	ChannelCapacity       int   `mapstructure:"channel_capacity"`
	EventChannelCapacity  int   `mapstructure:"event_channel_capacity"`
	ManifestLatencyMaxMs  int64 `mapstructure:"manifest_latency_max_ms"`
	StreamLatencyMaxMs    int64 `mapstructure:"stream_latency_max_ms"`
	MsnRegressionMax      int64 `mapstructure:"msn_regression_max"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with STRCK_ and use underscores for
// nesting. Example: STRCK_HTTP_REQUEST_TIMEOUT=1m.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.strck")
		v.AddConfigPath("/etc/strck")
	}

	v.SetEnvPrefix("STRCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure
// defaults are in place, and before cobra flag binding so that unset
// flags still resolve through Viper.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http.request_timeout", defaultRequestTimeout)
	v.SetDefault("http.response_limit_bytes", defaultResponseLimitBytes)
	v.SetDefault("http.polling_error_backoff", defaultPollingErrorBackoff)
	v.SetDefault("http.user_agent", "strck/1")
	v.SetDefault("http.max_requests", uint64(0))
	v.SetDefault("http.extra_headers", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("metrics.channel_capacity", defaultMetricChannelCapacity)
	v.SetDefault("metrics.event_channel_capacity", defaultEventChannelCapacity)
	v.SetDefault("metrics.manifest_latency_max_ms", defaultManifestLatencyMaxMs)
	v.SetDefault("metrics.stream_latency_max_ms", defaultStreamLatencyMaxMs)
	v.SetDefault("metrics.msn_regression_max", defaultMsnRegressionMax)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.HTTP.RequestTimeout <= 0 {
		return fmt.Errorf("http.request_timeout must be positive")
	}
	if c.HTTP.ResponseLimitBytes <= 0 {
		return fmt.Errorf("http.response_limit_bytes must be positive")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}
	return nil
}
