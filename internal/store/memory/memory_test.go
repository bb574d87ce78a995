package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombarlow/stepwise/internal/store"
	"github.com/tombarlow/stepwise/pkg/errors"
)

func seedWorkflow(t *testing.T, b *Backend, id string) {
	t.Helper()
	wf := &store.Workflow{ID: id, Version: 1, Name: "test", StartStep: "a"}
	steps := []*store.Step{
		{WorkflowID: id, StepID: "a", Type: "conditional", Next: "b", Config: []byte(`{}`)},
		{WorkflowID: id, StepID: "b", Type: "conditional", Next: "", Config: []byte(`{}`)},
	}
	require.NoError(t, b.CreateWorkflow(context.Background(), wf, steps))
}

func TestMemory_CreateWorkflow_DuplicateIDIsConflict(t *testing.T) {
	b := New()
	seedWorkflow(t, b, "wf-1")

	err := b.CreateWorkflow(context.Background(), &store.Workflow{ID: "wf-1", StartStep: "a"}, []*store.Step{
		{StepID: "a"},
	})
	require.Error(t, err)
	var conflict *errors.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestMemory_CreateWorkflow_InvalidNextRejected(t *testing.T) {
	b := New()
	wf := &store.Workflow{ID: "wf-bad", StartStep: "a"}
	steps := []*store.Step{
		{StepID: "a", Next: "ghost"},
	}
	err := b.CreateWorkflow(context.Background(), wf, steps)
	require.Error(t, err)
	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestMemory_GetWorkflow_ReturnsIndependentCopies(t *testing.T) {
	b := New()
	seedWorkflow(t, b, "wf-1")

	wf, steps, err := b.GetWorkflow(context.Background(), "wf-1")
	require.NoError(t, err)
	wf.Name = "mutated"
	steps[0].StepID = "mutated"

	wf2, steps2, err := b.GetWorkflow(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "test", wf2.Name)
	assert.Equal(t, "a", steps2[0].StepID)
}

func TestMemory_RunLifecycle(t *testing.T) {
	b := New()
	seedWorkflow(t, b, "wf-1")

	run := &store.Run{
		ID:             "run-1",
		WorkflowID:     "wf-1",
		Status:         "running",
		CurrentStep:    "a",
		IdempotencyKey: "req-1",
		Context:        []byte(`{}`),
		StartedAt:      time.Now(),
	}
	require.NoError(t, b.CreateRun(context.Background(), run))

	dup := *run
	dup.ID = "run-2"
	err := b.CreateRun(context.Background(), &dup)
	// CreateRun's own ID-collision guard only fires on identical IDs; the
	// idempotency-key conflict is the orchestrator's responsibility via
	// GetRunByIdempotencyKey, not the backend's.
	require.NoError(t, err)

	found, err := b.GetRunByIdempotencyKey(context.Background(), "wf-1", "req-1")
	require.NoError(t, err)
	require.NotNil(t, found)

	run.Status = "waiting"
	require.NoError(t, b.UpdateRun(context.Background(), run))
	got, err := b.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "waiting", got.Status)

	_, err = b.GetRun(context.Background(), "does-not-exist")
	require.Error(t, err)
	var nf *errors.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestMemory_WithTx_HoldsLockForDuration(t *testing.T) {
	b := New()
	seedWorkflow(t, b, "wf-1")

	run := &store.Run{ID: "run-1", WorkflowID: "wf-1", Status: "running", Context: []byte(`{}`), StartedAt: time.Now()}
	require.NoError(t, b.CreateRun(context.Background(), run))

	err := b.WithTx(context.Background(), func(ctx context.Context, tx store.Backend) error {
		run.Status = "completed"
		return tx.UpdateRun(ctx, run)
	})
	require.NoError(t, err)

	got, err := b.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
}

func TestMemory_ListRuns_Pagination(t *testing.T) {
	b := New()
	seedWorkflow(t, b, "wf-1")

	for i := 0; i < 3; i++ {
		id := string(rune('a' + i))
		require.NoError(t, b.CreateRun(context.Background(), &store.Run{
			ID: "run-" + id, WorkflowID: "wf-1", Status: "running", Context: []byte(`{}`), StartedAt: time.Now(),
		}))
	}

	all, err := b.ListRuns(context.Background(), store.RunFilter{WorkflowID: "wf-1"})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := b.ListRuns(context.Background(), store.RunFilter{WorkflowID: "wf-1", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMemory_AppendAndListRunSteps(t *testing.T) {
	b := New()
	require.NoError(t, b.AppendRunStep(context.Background(), &store.RunStep{ID: "rs-1", RunID: "run-1", StepID: "a"}))
	require.NoError(t, b.AppendRunStep(context.Background(), &store.RunStep{ID: "rs-2", RunID: "run-1", StepID: "b"}))

	history, err := b.ListRunSteps(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "a", history[0].StepID)
	assert.Equal(t, "b", history[1].StepID)
}
