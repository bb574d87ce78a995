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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTierNotMapped is returned when a tier has no mapping configured.
	ErrTierNotMapped = errors.New("tier not mapped")

	// ErrInvalidTierReference is returned when a tier reference has invalid format.
	ErrInvalidTierReference = errors.New("invalid tier reference format")

	// ErrProviderNotFound is returned when a tier references a non-existent provider.
	ErrProviderNotFound = errors.New("provider not found")
)

// ValidTiers lists the supported tier names.
var ValidTiers = []string{"fast", "balanced", "strategic"}

// ResolveTier resolves a tier name to its provider and model, validating
// that the tier is mapped, the reference parses, and the provider exists.
//
// Tier references use "provider/model" format (e.g.
// "anthropic/claude-3-5-haiku-20241022").
func (c *Config) ResolveTier(tierName string) (provider string, model string, err error) {
	tierRef, exists := c.Tiers[tierName]
	if !exists {
		return "", "", fmt.Errorf("%w: tier %q not configured", ErrTierNotMapped, tierName)
	}

	provider, model, err = ParseModelReference(tierRef)
	if err != nil {
		return "", "", fmt.Errorf("tier %q: %w", tierName, err)
	}

	if _, exists := c.Providers[provider]; !exists {
		return "", "", fmt.Errorf("%w: tier %q references unknown provider %q", ErrProviderNotFound, tierName, provider)
	}

	return provider, model, nil
}

// ParseModelReference parses a "provider/model" reference into its components.
func ParseModelReference(ref string) (provider string, model string, err error) {
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: expected 'provider/model', got %q", ErrInvalidTierReference, ref)
	}

	provider = strings.TrimSpace(parts[0])
	model = strings.TrimSpace(parts[1])

	if provider == "" || model == "" {
		return "", "", fmt.Errorf("%w: provider and model cannot be empty in %q", ErrInvalidTierReference, ref)
	}

	return provider, model, nil
}

// ValidateTierName checks if a tier name is one of the supported tiers.
func ValidateTierName(tierName string) error {
	for _, valid := range ValidTiers {
		if tierName == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid tier name %q: must be one of %v", tierName, ValidTiers)
}

// ValidateTiers validates all tier mappings in the config, returning every
// error found rather than stopping at the first.
func (c *Config) ValidateTiers() []error {
	var errs []error

	for tierName := range c.Tiers {
		if err := ValidateTierName(tierName); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, _, err := c.ResolveTier(tierName); err != nil {
			errs = append(errs, fmt.Errorf("tier %q: %w", tierName, err))
		}
	}

	return errs
}

// GetTierModel returns the model reference for a tier without validation.
// Use ResolveTier for validated resolution.
func (c *Config) GetTierModel(tierName string) (string, bool) {
	ref, exists := c.Tiers[tierName]
	return ref, exists
}
