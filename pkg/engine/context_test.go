package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_FlattenPrecedence(t *testing.T) {
	c := &Context{
		Static:  map[string]interface{}{"tier": "free", "region": "us"},
		Profile: map[string]interface{}{"tier": "pro"},
		Runtime: map[string]interface{}{"tier": "enterprise"},
	}

	flat := c.Flatten()
	assert.Equal(t, "enterprise", flat["tier"], "runtime overrides profile and static")
	assert.Equal(t, "us", flat["region"])
}

func TestContext_LookupFirstHitWins(t *testing.T) {
	c := &Context{
		Static:  map[string]interface{}{"tier": "free"},
		Profile: map[string]interface{}{"tier": "pro"},
		Runtime: map[string]interface{}{"tier": "enterprise"},
	}

	v, ok := c.Lookup("tier")
	require.True(t, ok)
	assert.Equal(t, "free", v, "static wins over profile and runtime")

	_, ok = c.Lookup("missing")
	assert.False(t, ok)
}

func TestContext_MarshalUnmarshalRoundTrip(t *testing.T) {
	c := NewContext(map[string]interface{}{"name": "alice"})
	c.Runtime["step_output"] = map[string]interface{}{"ok": true}

	data, err := MarshalContext(c)
	require.NoError(t, err)

	restored, err := UnmarshalContext(data)
	require.NoError(t, err)
	assert.Equal(t, "alice", restored.Runtime["name"])
	assert.NotNil(t, restored.Static)
	assert.NotNil(t, restored.Profile)
}

func TestUnmarshalContext_NilLayersBecomeEmptyMaps(t *testing.T) {
	restored, err := UnmarshalContext([]byte(`{}`))
	require.NoError(t, err)
	assert.NotNil(t, restored.Static)
	assert.NotNil(t, restored.Profile)
	assert.NotNil(t, restored.Runtime)
}
