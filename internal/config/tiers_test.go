package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModelReference_ValidAndInvalid(t *testing.T) {
	provider, model, err := ParseModelReference("anthropic/claude-3-5-haiku")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", provider)
	assert.Equal(t, "claude-3-5-haiku", model)

	_, _, err = ParseModelReference("anthropic")
	assert.ErrorIs(t, err, ErrInvalidTierReference)
}

func TestResolveTier_UnmappedTierFails(t *testing.T) {
	cfg := Default()
	_, _, err := cfg.ResolveTier("fast")
	assert.ErrorIs(t, err, ErrTierNotMapped)
}

func TestResolveTier_UnknownProviderFails(t *testing.T) {
	cfg := Default()
	cfg.Tiers = map[string]string{"fast": "anthropic/claude-haiku"}
	_, _, err := cfg.ResolveTier("fast")
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestResolveTier_Succeeds(t *testing.T) {
	cfg := Default()
	cfg.Providers = ProvidersMap{"anthropic": {Type: "anthropic"}}
	cfg.Tiers = map[string]string{"fast": "anthropic/claude-haiku"}

	provider, model, err := cfg.ResolveTier("fast")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", provider)
	assert.Equal(t, "claude-haiku", model)
}

func TestValidateTierName_RejectsUnknownTier(t *testing.T) {
	assert.NoError(t, ValidateTierName("fast"))
	assert.Error(t, ValidateTierName("turbo"))
}

func TestValidateTiers_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Tiers = map[string]string{
		"turbo": "anthropic/claude-haiku",
		"fast":  "unknown/model",
	}
	errs := cfg.ValidateTiers()
	assert.Len(t, errs, 2)
}
