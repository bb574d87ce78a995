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

package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Config is the top-level observability configuration embedded in
// internal/config.Config.
type Config struct {
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// Shutdown releases whatever Setup started: the tracer provider's exporter.
// Metrics need no shutdown, since no HTTP server is started for them.
type Shutdown func(context.Context) error

// Setup wires tracing and metrics from cfg and returns the Prometheus
// registerer to pass into engine.NewMetrics (nil when metrics are
// disabled) and a single Shutdown to defer in the calling command.
func Setup(ctx context.Context, cfg Config) (prometheus.Registerer, Shutdown, error) {
	traceShutdown, err := setupTracing(ctx, cfg.Tracing)
	if err != nil {
		return nil, nil, err
	}

	reg, metricsShutdown, err := setupMetrics(cfg.Metrics)
	if err != nil {
		return nil, nil, err
	}

	return reg, func(ctx context.Context) error {
		if err := metricsShutdown(ctx); err != nil {
			return err
		}
		return traceShutdown(ctx)
	}, nil
}
