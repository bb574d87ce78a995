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

// Package store provides storage backends for the workflow engine.
//
// # Interface Hierarchy
//
// The store package uses interface segregation so minimal implementations
// stay possible:
//
//   - WorkflowStore (required): CreateWorkflow, GetWorkflow
//   - RunStore (required): CreateRun, GetRun, UpdateRun, GetRunByIdempotencyKey
//   - RunStepStore (required): AppendRunStep, ListRunSteps
//   - Backend composes all of the above plus io.Closer for lifecycle management.
//
// Every state transition the engine makes against a Backend happens inside
// a single call to WithTx, so a backend that can't offer transactional
// semantics (the in-memory backend) simply executes the callback under its
// own mutex instead.
package store

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/tombarlow/stepwise/pkg/errors"
)

// Workflow is a versioned, immutable workflow definition.
type Workflow struct {
	ID         string
	Version    int
	Name       string
	StartStep  string
	Definition []byte // raw JSON definition, including the step graph
	CreatedAt  time.Time
}

// Step is a single node in a workflow's step graph.
type Step struct {
	WorkflowID string
	StepID     string
	Type       string // form | ai_generate | conditional | approval
	Name       string
	Next       string // empty string = terminal step
	Config     []byte // JSON-encoded, type-specific configuration
}

// Run is a single execution instance of a workflow.
type Run struct {
	ID              string
	WorkflowID      string
	WorkflowVersion int
	Status          string // running | waiting | completed | failed | canceled
	CurrentStep     string
	IdempotencyKey  string
	Context         []byte // JSON-encoded three-layer Context (static/profile/runtime)
	Error           string
	StartedAt       time.Time
	UpdatedAt       time.Time
}

// RunStep is one append-only entry in a run's execution history.
type RunStep struct {
	ID        string
	RunID     string
	StepID    string
	Type      string
	Status    string // completed | failed
	Output    []byte // JSON-encoded, nil on failure
	Error     string
	StartedAt time.Time
	EndedAt   time.Time
}

// RunFilter contains filtering options for listing runs.
type RunFilter struct {
	WorkflowID string
	Status     string
	Limit      int
	Offset     int
}

// ValidateWorkflowGraph enforces the graph invariants from spec.md §3 at
// definition time rather than only at execution time: start_step must name
// a real step, and every step's next must be empty or name another step in
// the same workflow. The Python original this engine was distilled from
// rejects malformed workflows at creation; each Backend.CreateWorkflow
// implementation calls this before persisting.
func ValidateWorkflowGraph(wf *Workflow, steps []*Step) error {
	ids := make(map[string]bool, len(steps))
	for _, s := range steps {
		ids[s.StepID] = true
	}
	if !ids[wf.StartStep] {
		return &errors.ValidationError{
			Field:   "start_step",
			Message: fmt.Sprintf("start_step %q does not name a step in this workflow", wf.StartStep),
		}
	}
	for _, s := range steps {
		if s.Next != "" && !ids[s.Next] {
			return &errors.ValidationError{
				Field:   "next",
				Message: fmt.Sprintf("step %q has next %q which does not name a step in this workflow", s.StepID, s.Next),
			}
		}
	}
	return nil
}

// WorkflowStore persists workflow definitions and their step graphs.
type WorkflowStore interface {
	CreateWorkflow(ctx context.Context, wf *Workflow, steps []*Step) error
	GetWorkflow(ctx context.Context, id string) (*Workflow, []*Step, error)
}

// RunStore is the core interface for run storage operations.
type RunStore interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	UpdateRun(ctx context.Context, run *Run) error
	GetRunByIdempotencyKey(ctx context.Context, workflowID, key string) (*Run, error)
}

// RunLister is an optional interface for listing runs.
type RunLister interface {
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
}

// RunStepStore persists the append-only execution history of a run.
type RunStepStore interface {
	AppendRunStep(ctx context.Context, step *RunStep) error
	ListRunSteps(ctx context.Context, runID string) ([]*RunStep, error)
}

// TxFunc is executed with a Backend scoped to a single transaction. Returning
// a non-nil error rolls back everything the callback did.
type TxFunc func(ctx context.Context, tx Backend) error

// Backend defines the full interface the orchestrator drives. Every backend
// (memory, sqlite, postgres) implements it in full; WithTx is how the
// orchestrator guarantees that one advance-loop iteration commits atomically.
type Backend interface {
	WorkflowStore
	RunStore
	RunLister
	RunStepStore
	io.Closer

	// WithTx runs fn within a single database transaction. Implementations
	// that have no native transaction support (memory) execute fn while
	// holding an exclusive lock instead, which is sufficient to give callers
	// the same atomicity guarantee for a single process.
	WithTx(ctx context.Context, fn TxFunc) error
}
