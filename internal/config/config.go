// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the engine's own configuration: which store backend
// to run against, which LLM providers are available for the ai_generate
// step, and how to log. It is deliberately narrow — it configures a library
// plus a CLI, not the interactive profile/workspace/controller management
// surface of a larger product.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tombarlow/stepwise/internal/observability"
	conductorerrors "github.com/tombarlow/stepwise/pkg/errors"
)

// Config is the root configuration for the stepwise engine and CLI.
type Config struct {
	Version int `yaml:"version,omitempty" json:"version,omitempty"`

	Log           LogConfig            `yaml:"log"`
	Store         StoreConfig          `yaml:"store"`
	LLM           LLMConfig            `yaml:"llm"`
	Observability observability.Config `yaml:"observability"`

	// Providers maps a user-chosen provider instance name to its
	// configuration. AI-generate steps resolve their provider through
	// GetPrimaryProvider or an explicit tier reference.
	Providers ProvidersMap `yaml:"providers,omitempty" json:"providers,omitempty"`

	// Tiers maps abstract tier names ("fast", "balanced", "strategic") to
	// "provider/model" references, resolved via ResolveTier.
	Tiers map[string]string `yaml:"tiers,omitempty" json:"tiers,omitempty"`
}

// StoreConfig selects the store.Backend implementation and its connection parameters.
type StoreConfig struct {
	// Type is "memory", "sqlite" or "postgres".
	Type string `yaml:"type,omitempty"`

	// SQLitePath is the database file path when Type is "sqlite". Use
	// ":memory:" for an ephemeral, process-local store.
	SQLitePath string `yaml:"sqlite_path,omitempty"`

	Postgres PostgresConfig `yaml:"postgres,omitempty"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	ConnectionString string        `yaml:"connection_string,omitempty"`
	MaxOpenConns     int           `yaml:"max_open_conns,omitempty"`
	MaxIdleConns     int           `yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime  time.Duration `yaml:"conn_max_lifetime,omitempty"`
}

// LLMConfig tunes the retry wrapper CreateProvider applies to
// every provider it constructs.
type LLMConfig struct {
	MaxRetries       int           `yaml:"max_retries,omitempty"`
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base,omitempty"`
	RequestTimeout   time.Duration `yaml:"request_timeout,omitempty"`
}

// LogConfig configures internal/log.New.
type LogConfig struct {
	// Level sets the minimum log level (debug, info, warn, error).
	// Environment: LOG_LEVEL
	Level string `yaml:"level"`

	// Format sets the output format (json, text).
	// Environment: LOG_FORMAT
	Format string `yaml:"format"`

	// AddSource adds source file and line information to logs.
	// Environment: LOG_SOURCE
	AddSource bool `yaml:"add_source"`
}

// Default returns a Config with sensible defaults: an in-memory store and
// text logging, suitable for `stepwise run` against a local workflow file
// with no prior setup.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Type: "memory",
		},
		LLM: LLMConfig{
			MaxRetries:       2,
			RetryBackoffBase: 500 * time.Millisecond,
			RequestTimeout:   60 * time.Second,
		},
	}
}

// Load loads configuration from environment variables and, if configPath is
// non-empty (or a default config file exists), from a YAML file. Environment
// variables take precedence over file-based configuration.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		defaultPath, err := ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(defaultPath); statErr == nil {
				configPath = defaultPath
			}
		}
	}

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &conductorerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load config from %s", configPath),
				Cause:  err,
			}
		}
	}

	cfg.loadFromEnv()
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Store.Type == "" {
		c.Store.Type = "memory"
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = 2
	}
	if c.LLM.RetryBackoffBase == 0 {
		c.LLM.RetryBackoffBase = 500 * time.Millisecond
	}
	if c.LLM.RequestTimeout == 0 {
		c.LLM.RequestTimeout = 60 * time.Second
	}
	if c.Observability.Tracing.ServiceName == "" {
		c.Observability.Tracing.ServiceName = "stepwise"
	}
	if c.Observability.Tracing.Exporter == "" {
		c.Observability.Tracing.Exporter = "stdout"
	}
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// loadFromEnv overrides file/default values from environment variables,
// following the teacher's precedence (env wins over file).
func (c *Config) loadFromEnv() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if os.Getenv("LOG_SOURCE") == "1" {
		c.Log.AddSource = true
	}
	if v := os.Getenv("STEPWISE_STORE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("STEPWISE_SQLITE_PATH"); v != "" {
		c.Store.SQLitePath = v
	}
	if v := os.Getenv("STEPWISE_DATABASE_URL"); v != "" {
		c.Store.Postgres.ConnectionString = v
	}
	if v := os.Getenv("STEPWISE_TRACING_ENABLED"); v != "" {
		c.Observability.Tracing.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("STEPWISE_TRACING_EXPORTER"); v != "" {
		c.Observability.Tracing.Exporter = v
	}
	if v := os.Getenv("STEPWISE_OTLP_ENDPOINT"); v != "" {
		c.Observability.Tracing.OTLPEndpoint = v
	}
	if v := os.Getenv("STEPWISE_METRICS_ENABLED"); v != "" {
		c.Observability.Metrics.Enabled = v == "true" || v == "1"
	}
}

// Validate checks that the configuration describes a runnable engine: a
// known store type, and that every entry in Tiers references a provider
// that exists in Providers (with no providers configured, any tier fails).
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "memory", "sqlite", "postgres":
	default:
		return &conductorerrors.ConfigError{
			Key:    "store.type",
			Reason: fmt.Sprintf("unknown store type %q, must be memory, sqlite or postgres", c.Store.Type),
		}
	}
	if c.Store.Type == "postgres" && c.Store.Postgres.ConnectionString == "" {
		return &conductorerrors.ConfigError{
			Key:    "store.postgres.connection_string",
			Reason: "postgres backend requires a connection string",
		}
	}
	if c.Observability.Tracing.Enabled {
		switch c.Observability.Tracing.Exporter {
		case "stdout", "otlp", "otlp-http":
		default:
			return &conductorerrors.ConfigError{
				Key:    "observability.tracing.exporter",
				Reason: fmt.Sprintf("unknown tracing exporter %q, must be stdout, otlp or otlp-http", c.Observability.Tracing.Exporter),
			}
		}
		if (c.Observability.Tracing.Exporter == "otlp" || c.Observability.Tracing.Exporter == "otlp-http") && c.Observability.Tracing.OTLPEndpoint == "" {
			return &conductorerrors.ConfigError{
				Key:    "observability.tracing.otlp_endpoint",
				Reason: "otlp/otlp-http tracing exporter requires an endpoint",
			}
		}
	}
	for tier, ref := range c.Tiers {
		provider, _, err := ParseModelReference(ref)
		if err != nil {
			return &conductorerrors.ConfigError{Key: "tiers." + tier, Reason: err.Error()}
		}
		if _, ok := c.Providers[provider]; !ok {
			return &conductorerrors.ConfigError{
				Key:    "tiers." + tier,
				Reason: fmt.Sprintf("references unknown provider %q", provider),
			}
		}
	}
	return nil
}

// GetPrimaryProvider returns the name of the first configured provider in
// map-iteration order, used when no explicit tier or provider is named.
func (c *Config) GetPrimaryProvider() string {
	for name := range c.Providers {
		return name
	}
	return ""
}
