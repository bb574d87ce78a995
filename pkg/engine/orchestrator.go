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

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"github.com/tombarlow/stepwise/internal/store"
	"github.com/tombarlow/stepwise/pkg/engine/expression"
	"github.com/tombarlow/stepwise/pkg/engine/schema"
	stepwiseerrors "github.com/tombarlow/stepwise/pkg/errors"
)

// Executor is the contract shared by the four step executors (spec.md §9's
// "closed tagged variant plus a switch in the orchestrator" design note).
type Executor interface {
	Execute(ctx context.Context, run *Run, step *Step) (*Result, error)
}

// Orchestrator drives the run state machine: start, advance until pause,
// completion or failure, resume with validated input, persisting every
// transition through a single store.Backend.WithTx call per iteration.
type Orchestrator struct {
	backend   store.Backend
	executors map[StepType]Executor
	logger    *slog.Logger
	metrics   *Metrics
}

// NewOrchestrator constructs an Orchestrator against backend, dispatching
// by step type to executors. A nil logger defaults to slog.Default(); a nil
// metrics disables instrumentation.
func NewOrchestrator(backend store.Backend, executors map[StepType]Executor, logger *slog.Logger, metrics *Metrics) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{backend: backend, executors: executors, logger: logger, metrics: metrics}
}

// NewDefaultOrchestrator wires the four standard executors (form,
// conditional, ai_generate, approval) against backend, eval, validator,
// provider and notifier, matching spec.md §2's component list.
func NewDefaultOrchestrator(backend store.Backend, eval *expression.Evaluator, validator schema.Validator, provider AIProvider, notifier Notifier, logger *slog.Logger, metrics *Metrics) *Orchestrator {
	executors := map[StepType]Executor{
		StepTypeForm:        NewFormExecutor(),
		StepTypeConditional: NewConditionalExecutor(eval),
		StepTypeAIGenerate:  NewAIGenerateExecutor(provider, validator),
		StepTypeApproval:    NewApprovalExecutor(notifier, logger),
	}
	return NewOrchestrator(backend, executors, logger, metrics)
}

// StartRun creates a new run and drives it to its first suspension point
// (spec.md §4.1.1). A previously seen (workflow_id, idempotency_key) pair
// returns the original run unchanged.
func (o *Orchestrator) StartRun(ctx context.Context, workflowID string, inputs map[string]interface{}, idempotencyKey string) (*Run, error) {
	if idempotencyKey != "" {
		existing, err := o.backend.GetRunByIdempotencyKey(ctx, workflowID, idempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return decodeRun(existing)
		}
	}

	sw, steps, err := o.backend.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	wf := decodeWorkflow(sw, steps)

	run := &Run{
		ID:              uuid.New().String(),
		WorkflowID:      wf.ID,
		WorkflowVersion: wf.Version,
		Status:          RunStatusRunning,
		CurrentStep:     wf.StartStep,
		IdempotencyKey:  idempotencyKey,
		Context:         NewContext(inputs),
		StartedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	sr, err := encodeRun(run)
	if err != nil {
		return nil, err
	}
	if err := o.backend.CreateRun(ctx, sr); err != nil {
		var conflict *stepwiseerrors.ConflictError
		if errors.As(err, &conflict) && idempotencyKey != "" {
			existing, gerr := o.backend.GetRunByIdempotencyKey(ctx, workflowID, idempotencyKey)
			if gerr == nil && existing != nil {
				return decodeRun(existing)
			}
		}
		return nil, err
	}

	o.metrics.recordRunStarted(wf.ID)
	return o.advance(ctx, wf, run)
}

// ResumeRun validates payload against the waiting run's current step type,
// merges it into the runtime context, and re-enters the advance loop
// (spec.md §4.1.2).
func (o *Orchestrator) ResumeRun(ctx context.Context, runID string, inputs map[string]interface{}) (*Run, error) {
	sr, err := o.backend.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	run, err := decodeRun(sr)
	if err != nil {
		return nil, err
	}
	if run.Status != RunStatusWaiting {
		return nil, &stepwiseerrors.ConflictError{Resource: "run", ID: runID, Reason: "run is not waiting for input"}
	}

	sw, storeSteps, err := o.backend.GetWorkflow(ctx, run.WorkflowID)
	if err != nil {
		return nil, err
	}
	wf := decodeWorkflow(sw, storeSteps)

	step := wf.Lookup(run.CurrentStep)
	if step == nil {
		return nil, &stepwiseerrors.ValidationError{Field: "current_step", Message: "paused step no longer exists in workflow"}
	}

	switch step.Type {
	case StepTypeForm:
		cfg, err := decodeFormConfig(step.Config)
		if err != nil {
			return nil, err
		}
		validated, err := ValidateFields(cfg.Fields, inputs)
		if err != nil {
			return nil, err
		}
		for k, v := range validated {
			run.Context.Runtime[k] = v
		}
		run.CurrentStep = step.Next

	case StepTypeApproval:
		if err := resumeApproval(run, step, inputs); err != nil {
			return nil, err
		}
		run.CurrentStep = step.Next

	case StepTypeAIGenerate:
		// Opaque patch data merged into runtime; the step re-executes on
		// the next loop iteration (manual_fix resume, spec.md §4.1.2).
		for k, v := range inputs {
			run.Context.Runtime[k] = v
		}

	default:
		return nil, &stepwiseerrors.ValidationError{Field: "type", Message: fmt.Sprintf("step type %q cannot be resumed", step.Type)}
	}

	run.Status = RunStatusRunning
	return o.advance(ctx, wf, run)
}

// resumeApproval validates the resume payload for an approval step and
// records the decision at context.runtime[<step_id>_approval].
func resumeApproval(run *Run, step *Step, inputs map[string]interface{}) error {
	raw, ok := inputs["approval"]
	if !ok {
		return &stepwiseerrors.ValidationError{Field: "approval", Message: "approval decision is required"}
	}
	approval, ok := raw.(map[string]interface{})
	if !ok {
		return &stepwiseerrors.ValidationError{Field: "approval", Message: "approval must be an object"}
	}
	approvedRaw, ok := approval["approved"]
	if !ok {
		return &stepwiseerrors.ValidationError{Field: "approval.approved", Message: "approval.approved is required"}
	}
	approved, ok := approvedRaw.(bool)
	if !ok {
		return &stepwiseerrors.ValidationError{Field: "approval.approved", Message: "approval.approved must be a boolean"}
	}

	key := step.StepID + "_approval"
	record, _ := run.Context.Runtime[key].(map[string]interface{})
	if record == nil {
		record = map[string]interface{}{}
	}
	if approved {
		record["status"] = "approved"
	} else {
		record["status"] = "rejected"
	}
	if comments, ok := approval["comments"].(string); ok {
		record["comments"] = comments
	}
	run.Context.Runtime[key] = record
	return nil
}

// CancelRun transitions a running or waiting run to canceled. It is
// observed at the advance loop's next commit point; an in-flight executor
// call is never interrupted mid-step (spec.md §5).
func (o *Orchestrator) CancelRun(ctx context.Context, runID string) (*Run, error) {
	sr, err := o.backend.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	run, err := decodeRun(sr)
	if err != nil {
		return nil, err
	}
	if err := guardTransition(runID, run.Status, RunStatusCanceled); err != nil {
		return nil, err
	}
	run.Status = RunStatusCanceled
	if err := o.commitRun(ctx, run, nil); err != nil {
		return nil, err
	}
	return run, nil
}

// GetRun returns the current state of a run.
func (o *Orchestrator) GetRun(ctx context.Context, runID string) (*Run, error) {
	sr, err := o.backend.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return decodeRun(sr)
}

// GetHistory returns a run's RunStep history, ordered by started_at.
func (o *Orchestrator) GetHistory(ctx context.Context, runID string) ([]*RunStep, error) {
	list, err := o.backend.ListRunSteps(ctx, runID)
	if err != nil {
		return nil, err
	}
	return decodeRunSteps(list), nil
}

// GetContext returns a run's three context layers.
func (o *Orchestrator) GetContext(ctx context.Context, runID string) (*Context, error) {
	run, err := o.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return run.Context, nil
}

// ExecuteStep dispatches to the executor matching step.Type (spec.md
// §4.1.3). Unknown types fail with *errors.ValidationError.
func (o *Orchestrator) ExecuteStep(ctx context.Context, run *Run, step *Step) (*Result, error) {
	executor, ok := o.executors[step.Type]
	if !ok {
		return nil, &stepwiseerrors.ValidationError{Field: "type", Message: fmt.Sprintf("no executor registered for step type %q", step.Type)}
	}
	return executor.Execute(ctx, run, step)
}

// advance is the orchestrator's inner loop (spec.md §4.1's "advance loop"):
// one step executed per iteration until the run pauses, completes, or
// fails. Each iteration commits through exactly one store.Backend.WithTx
// call, so the durable state is always a snapshot between steps.
func (o *Orchestrator) advance(ctx context.Context, wf *Workflow, run *Run) (*Run, error) {
	for run.CurrentStep != "" {
		step := wf.Lookup(run.CurrentStep)
		if step == nil {
			run.Status = RunStatusFailed
			run.Error = fmt.Sprintf("step %q not found in workflow %q", run.CurrentStep, wf.ID)
			if cerr := o.commitRun(ctx, run, nil); cerr != nil {
				return nil, cerr
			}
			return nil, &stepwiseerrors.ValidationError{Field: "current_step", Message: run.Error}
		}

		spanCtx, span := startStepSpan(ctx, run, step)
		start := time.Now()
		result, err := o.ExecuteStep(spanCtx, run, step)
		elapsed := time.Since(start).Seconds()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()

			o.logger.Error("step execution failed", "run_id", run.ID, "step_id", step.StepID, "step_type", step.Type, "error", err)
			o.metrics.recordStep(step.Type, RunStepFailed, elapsed)

			run.Status = RunStatusFailed
			run.Error = err.Error()
			rs := &RunStep{
				ID:        uuid.New().String(),
				RunID:     run.ID,
				StepID:    step.StepID,
				Type:      step.Type,
				Status:    RunStepFailed,
				Error:     err.Error(),
				StartedAt: start,
				EndedAt:   time.Now(),
			}
			if cerr := o.commitRun(ctx, run, rs); cerr != nil {
				return nil, cerr
			}
			return nil, err
		}
		span.End()
		o.metrics.recordStep(step.Type, RunStepCompleted, elapsed)

		outputJSON, merr := json.Marshal(result.Output)
		if merr != nil {
			outputJSON = nil
		}
		rs := &RunStep{
			ID:        uuid.New().String(),
			RunID:     run.ID,
			StepID:    step.StepID,
			Type:      step.Type,
			Status:    RunStepCompleted,
			Output:    outputJSON,
			StartedAt: start,
			EndedAt:   time.Now(),
		}

		if result.Pause {
			run.Status = RunStatusWaiting
			o.metrics.recordPause(result.WaitingFor)
			if cerr := o.commitRun(ctx, run, rs); cerr != nil {
				return nil, cerr
			}
			return run, nil
		}

		run.CurrentStep = step.Next
		if cerr := o.commitRun(ctx, run, rs); cerr != nil {
			return nil, cerr
		}
	}

	run.Status = RunStatusCompleted
	if err := o.commitRun(ctx, run, nil); err != nil {
		return nil, err
	}
	return run, nil
}

// commitRun persists run's new status/context and, if rs is non-nil,
// appends it to the run's history, all within a single transaction.
func (o *Orchestrator) commitRun(ctx context.Context, run *Run, rs *RunStep) error {
	sr, err := encodeRun(run)
	if err != nil {
		return err
	}
	return o.backend.WithTx(ctx, func(ctx context.Context, tx store.Backend) error {
		if rs != nil {
			if err := tx.AppendRunStep(ctx, encodeRunStep(rs)); err != nil {
				return err
			}
		}
		return tx.UpdateRun(ctx, sr)
	})
}
