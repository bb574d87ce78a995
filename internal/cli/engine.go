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

package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tombarlow/stepwise/internal/config"
	internalllm "github.com/tombarlow/stepwise/internal/llm"
	internallog "github.com/tombarlow/stepwise/internal/log"
	"github.com/tombarlow/stepwise/internal/observability"
	"github.com/tombarlow/stepwise/internal/store"
	"github.com/tombarlow/stepwise/internal/store/memory"
	"github.com/tombarlow/stepwise/internal/store/postgres"
	"github.com/tombarlow/stepwise/internal/store/sqlite"
	"github.com/tombarlow/stepwise/pkg/engine"
	"github.com/tombarlow/stepwise/pkg/engine/expression"
	"github.com/tombarlow/stepwise/pkg/engine/schema"
)

// LoadConfig merges the on-disk/env configuration with command-line flag
// overrides, in flag-wins-over-everything order (the same precedence the
// teacher's CLI applies between env and file).
func LoadConfig(flags *Flags) (*config.Config, error) {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	if flags.Store != "" {
		cfg.Store.Type = flags.Store
	}
	if flags.SQLitePath != "" {
		cfg.Store.SQLitePath = flags.SQLitePath
	}
	if flags.DatabaseURL != "" {
		cfg.Store.Postgres.ConnectionString = flags.DatabaseURL
	}
	config.ResolveSecretsInProviders(cfg.Providers)
	return cfg, cfg.Validate()
}

// NewLogger builds the shared slog.Logger from config and flag overrides.
func NewLogger(cfg *config.Config, flags *Flags) *slog.Logger {
	format := internallog.FormatText
	if cfg.Log.Format == "json" {
		format = internallog.FormatJSON
	}
	level := cfg.Log.Level
	if flags.Verbose {
		level = "debug"
	}
	return internallog.New(&internallog.Config{
		Level:     level,
		Format:    format,
		AddSource: cfg.Log.AddSource,
	})
}

// OpenBackend constructs the store.Backend named by cfg.Store.Type.
func OpenBackend(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	switch cfg.Store.Type {
	case "", "memory":
		return memory.New(), nil
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = ":memory:"
		}
		return sqlite.New(sqlite.Config{Path: path, WAL: true})
	case "postgres":
		return postgres.New(ctx, postgres.Config{
			ConnectionString: cfg.Store.Postgres.ConnectionString,
			MaxOpenConns:     cfg.Store.Postgres.MaxOpenConns,
			MaxIdleConns:     cfg.Store.Postgres.MaxIdleConns,
			ConnMaxLifetime:  cfg.Store.Postgres.ConnMaxLifetime,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Type)
	}
}

// SetupObservability builds the tracer provider and metrics registry
// described by cfg.Observability. It returns the Prometheus registerer to
// pass into NewOrchestrator (nil when metrics are disabled) and a shutdown
// func the caller must defer.
func SetupObservability(ctx context.Context, cfg *config.Config) (prometheus.Registerer, observability.Shutdown, error) {
	return observability.Setup(ctx, cfg.Observability)
}

// NewOrchestrator wires a backend into a full engine.Orchestrator: the four
// standard executors, a provider-backed AI adapter when at least one LLM
// provider is configured (falling back to an always-erroring provider
// otherwise, so ai_generate steps fail loudly rather than panic), a logging
// notifier for approvals, and Prometheus instrumentation registered against
// reg (nil leaves the collectors unregistered, so nothing is exported).
func NewOrchestrator(backend store.Backend, cfg *config.Config, templates engine.TemplateSource, logger *slog.Logger, reg prometheus.Registerer) *engine.Orchestrator {
	eval := expression.New()
	validator := schema.NewValidator()
	notifier := engine.NewLogNotifier(logger)
	metrics := engine.NewMetrics(reg)

	var provider engine.AIProvider = noProviderConfigured{}
	if name := cfg.GetPrimaryProvider(); name != "" {
		if llmProvider, err := internalllm.CreateProvider(cfg, name); err == nil {
			provider = engine.NewLLMAdapter(internalllm.NewProviderAdapter(llmProvider), templates)
		} else {
			logger.Warn("failed to construct configured LLM provider, ai_generate steps will fail", slog.String("provider", name), slog.String("error", err.Error()))
		}
	}

	return engine.NewDefaultOrchestrator(backend, eval, validator, provider, notifier, logger, metrics)
}

// noProviderConfigured is the AIProvider used when no LLM provider is
// configured, so a workflow with no ai_generate steps runs fine while one
// that does hits a clear, immediate error instead of a nil-pointer panic.
type noProviderConfigured struct{}

func (noProviderConfigured) Generate(_ context.Context, _ string, _, _ map[string]interface{}) (map[string]interface{}, error) {
	return nil, fmt.Errorf("no LLM provider configured: set providers.<name> in the config file")
}
