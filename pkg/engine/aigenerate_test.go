package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombarlow/stepwise/pkg/engine/schema"
)

type fakeProvider struct {
	attempts []map[string]interface{}
	outputs  []map[string]interface{}
	errs     []error
	call     int
}

func (f *fakeProvider) Generate(_ context.Context, _ string, variables map[string]interface{}, _ map[string]interface{}) (map[string]interface{}, error) {
	f.attempts = append(f.attempts, variables)
	i := f.call
	f.call++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var out map[string]interface{}
	if i < len(f.outputs) {
		out = f.outputs[i]
	}
	return out, err
}

func newGenerateStep(t *testing.T, cfg AIGenerateConfig) *Step {
	t.Helper()
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	return &Step{StepID: "classify", Config: data}
}

func TestAIGenerateExecutor_SucceedsOnFirstAttempt(t *testing.T) {
	provider := &fakeProvider{outputs: []map[string]interface{}{{"category": "billing"}}}
	validator := schema.NewValidator()
	e := NewAIGenerateExecutor(provider, validator)

	run := &Run{Context: NewContext(map[string]interface{}{"subject": "invoice"})}
	step := newGenerateStep(t, AIGenerateConfig{
		TemplateID: "t1",
		Variables:  []string{"subject"},
		JSONSchema: map[string]interface{}{
			"type": "object", "required": []interface{}{"category"},
			"properties": map[string]interface{}{"category": map[string]interface{}{"type": "string"}},
		},
	})

	result, err := e.Execute(context.Background(), run, step)
	require.NoError(t, err)
	assert.False(t, result.Pause)
	assert.Equal(t, 0, result.RetryCount)
	assert.Equal(t, 1, provider.call)
}

func TestAIGenerateExecutor_RetriesOnValidationFailureThenSucceeds(t *testing.T) {
	provider := &fakeProvider{outputs: []map[string]interface{}{
		{"wrong": "field"},
		{"category": "billing"},
	}}
	validator := schema.NewValidator()
	e := NewAIGenerateExecutor(provider, validator)

	run := &Run{Context: NewContext(nil)}
	step := newGenerateStep(t, AIGenerateConfig{
		TemplateID: "t1",
		JSONSchema: map[string]interface{}{
			"type": "object", "required": []interface{}{"category"},
			"properties": map[string]interface{}{"category": map[string]interface{}{"type": "string"}},
		},
	})

	result, err := e.Execute(context.Background(), run, step)
	require.NoError(t, err)
	assert.False(t, result.Pause)
	assert.Equal(t, 1, result.RetryCount)
	assert.Equal(t, 2, provider.call)
}

func TestAIGenerateExecutor_ExhaustsBudgetAndPauses(t *testing.T) {
	provider := &fakeProvider{errs: []error{
		errors.New("provider down"),
		errors.New("provider down"),
		errors.New("provider down"),
	}}
	validator := schema.NewValidator()
	e := NewAIGenerateExecutor(provider, validator)

	run := &Run{Context: NewContext(nil)}
	step := newGenerateStep(t, AIGenerateConfig{TemplateID: "t1", JSONSchema: map[string]interface{}{"type": "object"}})

	result, err := e.Execute(context.Background(), run, step)
	require.NoError(t, err)
	assert.True(t, result.Pause)
	assert.Equal(t, "manual_fix", result.WaitingFor)
	assert.Equal(t, MaxAIRetries, result.RetryCount)
	assert.Equal(t, MaxAIRetries+1, provider.call)
}

func TestAIGenerateExecutor_MissingVariableFailsBeforeCallingProvider(t *testing.T) {
	provider := &fakeProvider{}
	validator := schema.NewValidator()
	e := NewAIGenerateExecutor(provider, validator)

	run := &Run{Context: NewContext(nil)}
	step := newGenerateStep(t, AIGenerateConfig{TemplateID: "t1", Variables: []string{"missing"}})

	_, err := e.Execute(context.Background(), run, step)
	require.Error(t, err)
	assert.Equal(t, 0, provider.call)
}
