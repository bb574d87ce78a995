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

package config

import (
	"os"
	"strings"
)

// ProviderConfig defines configuration for a single provider instance.
type ProviderConfig struct {
	// Type specifies the provider implementation (e.g., "claude-code", "anthropic", "openai", "ollama").
	Type string `yaml:"type" json:"type"`

	// APIKey for direct API access providers. A value of the form
	// "$env:NAME" is resolved from the named environment variable at
	// ResolveSecrets time rather than stored in the config file.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty"`

	// BaseURL for API providers that support custom endpoints.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	// Models maps abstract model tiers to provider-specific model names.
	Models ModelTierMap `yaml:"models,omitempty" json:"models,omitempty"`
}

// ProvidersMap is a map of provider instance names to their configuration.
type ProvidersMap map[string]ProviderConfig

// ModelTierMap maps abstract model tiers to provider-specific model names.
type ModelTierMap struct {
	Fast      string `yaml:"fast,omitempty" json:"fast,omitempty"`
	Balanced  string `yaml:"balanced,omitempty" json:"balanced,omitempty"`
	Strategic string `yaml:"strategic,omitempty" json:"strategic,omitempty"`
}

// ResolveSecrets resolves an "$env:NAME" API key reference against the
// process environment. A plain value is returned unchanged.
func (p *ProviderConfig) ResolveSecrets() {
	const prefix = "$env:"
	if strings.HasPrefix(p.APIKey, prefix) {
		p.APIKey = os.Getenv(strings.TrimPrefix(p.APIKey, prefix))
	}
}

// ResolveSecretsInProviders resolves "$env:NAME" references across every
// configured provider, in place.
func ResolveSecretsInProviders(providers ProvidersMap) {
	for name, p := range providers {
		p.ResolveSecrets()
		providers[name] = p
	}
}
