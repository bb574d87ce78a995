package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombarlow/stepwise/internal/store"
)

func TestDecodeWorkflow_IndexesSteps(t *testing.T) {
	sw := &store.Workflow{ID: "wf-1", Version: 2, Name: "test", StartStep: "a"}
	steps := []*store.Step{
		{StepID: "a", Type: "form", Next: "b", Config: []byte(`{}`)},
		{StepID: "b", Type: "conditional", Config: []byte(`{}`)},
	}

	wf := decodeWorkflow(sw, steps)
	assert.Equal(t, "wf-1", wf.ID)
	assert.Equal(t, 2, wf.Version)
	require.NotNil(t, wf.Lookup("a"))
	assert.Equal(t, StepTypeForm, wf.Lookup("a").Type)
	assert.Nil(t, wf.Lookup("missing"))
}

func TestEncodeDecodeRun_RoundTrip(t *testing.T) {
	run := &Run{
		ID:              "run-1",
		WorkflowID:      "wf-1",
		WorkflowVersion: 1,
		Status:          RunStatusWaiting,
		CurrentStep:     "b",
		IdempotencyKey:  "req-1",
		Context:         NewContext(map[string]interface{}{"name": "alice"}),
		StartedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	sr, err := encodeRun(run)
	require.NoError(t, err)
	assert.Equal(t, "run-1", sr.ID)
	assert.Equal(t, string(RunStatusWaiting), sr.Status)

	restored, err := decodeRun(sr)
	require.NoError(t, err)
	assert.Equal(t, run.ID, restored.ID)
	assert.Equal(t, run.Status, restored.Status)
	assert.Equal(t, "alice", restored.Context.Runtime["name"])
}

func TestEncodeDecodeRunStep_RoundTrip(t *testing.T) {
	rs := &RunStep{
		ID:     "rs-1",
		RunID:  "run-1",
		StepID: "a",
		Type:   StepTypeForm,
		Status: RunStepCompleted,
		Output: []byte(`{"ok":true}`),
	}

	sr := encodeRunStep(rs)
	assert.Equal(t, "rs-1", sr.ID)
	assert.Equal(t, "form", sr.Type)

	restored := decodeRunSteps([]*store.RunStep{sr})
	require.Len(t, restored, 1)
	assert.Equal(t, StepTypeForm, restored[0].Type)
	assert.Equal(t, RunStepCompleted, restored[0].Status)
}
