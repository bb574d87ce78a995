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

// MetricsConfig controls whether pkg/engine's counters are registered.
// Serving them over HTTP is left to the operator (a sidecar scraper or a
// wrapper process can read the registry); this engine has no HTTP surface
// of its own to host a /metrics endpoint on.
type MetricsConfig struct {
	// Enabled registers the orchestrator's metrics against a fresh
	// registry. Off by default: Setup then returns a nil
	// prometheus.Registerer, so engine.NewMetrics registers its collectors
	// nowhere and nothing is exported.
	Enabled bool `yaml:"enabled"`
}

// setupMetrics builds a Prometheus registry when cfg.Enabled.
func setupMetrics(cfg MetricsConfig) (prometheus.Registerer, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return nil, noop, nil
	}
	return prometheus.NewRegistry(), noop, nil
}
