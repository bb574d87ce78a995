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

// Package memory provides an in-memory store backend, suitable for tests
// and single-process deployments that don't need durability across restarts.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/tombarlow/stepwise/internal/store"
	"github.com/tombarlow/stepwise/pkg/errors"
)

var _ store.Backend = (*Backend)(nil)

// Backend is an in-memory storage backend. WithTx is implemented by holding
// the backend's single mutex for the duration of the callback, which gives
// single-process callers the same all-or-nothing semantics a real
// transaction gives multi-process ones.
type Backend struct {
	mu sync.Mutex

	workflows map[string]*store.Workflow
	steps     map[string][]*store.Step // workflow ID -> steps
	runs      map[string]*store.Run
	runSteps  map[string][]*store.RunStep // run ID -> history, append order
}

// New creates a new in-memory backend.
func New() *Backend {
	return &Backend{
		workflows: make(map[string]*store.Workflow),
		steps:     make(map[string][]*store.Step),
		runs:      make(map[string]*store.Run),
		runSteps:  make(map[string][]*store.RunStep),
	}
}

func (b *Backend) Close() error { return nil }

// WithTx runs fn while holding the backend's lock. If fn returns an error,
// the maps are restored to their state before fn ran; stored values are
// replaced, never mutated, so shallow copies are enough. Because Go's
// sync.Mutex is not reentrant, fn must call the unlocked *Backend methods
// directly rather than re-entering through a second WithTx.
func (b *Backend) WithTx(ctx context.Context, fn store.TxFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	workflows, steps := maps.Clone(b.workflows), maps.Clone(b.steps)
	runs, runSteps := maps.Clone(b.runs), maps.Clone(b.runSteps)
	if err := fn(ctx, b); err != nil {
		b.workflows, b.steps, b.runs, b.runSteps = workflows, steps, runs, runSteps
		return err
	}
	return nil
}

func (b *Backend) CreateWorkflow(ctx context.Context, wf *store.Workflow, steps []*store.Step) error {
	if err := store.ValidateWorkflowGraph(wf, steps); err != nil {
		return err
	}
	if _, exists := b.workflows[wf.ID]; exists {
		return &errors.ConflictError{Resource: "workflow", ID: wf.ID, Reason: "already exists"}
	}
	b.workflows[wf.ID] = cloneWorkflow(wf)
	cp := make([]*store.Step, len(steps))
	for i, s := range steps {
		cp[i] = cloneStep(s)
	}
	b.steps[wf.ID] = cp
	return nil
}

func (b *Backend) GetWorkflow(ctx context.Context, id string) (*store.Workflow, []*store.Step, error) {
	wf, exists := b.workflows[id]
	if !exists {
		return nil, nil, &errors.NotFoundError{Resource: "workflow", ID: id}
	}
	steps := b.steps[id]
	out := make([]*store.Step, len(steps))
	for i, s := range steps {
		out[i] = cloneStep(s)
	}
	return cloneWorkflow(wf), out, nil
}

func (b *Backend) CreateRun(ctx context.Context, run *store.Run) error {
	if _, exists := b.runs[run.ID]; exists {
		return &errors.ConflictError{Resource: "run", ID: run.ID, Reason: "already exists"}
	}
	b.runs[run.ID] = cloneRun(run)
	return nil
}

func (b *Backend) GetRun(ctx context.Context, id string) (*store.Run, error) {
	run, exists := b.runs[id]
	if !exists {
		return nil, &errors.NotFoundError{Resource: "run", ID: id}
	}
	return cloneRun(run), nil
}

func (b *Backend) UpdateRun(ctx context.Context, run *store.Run) error {
	if _, exists := b.runs[run.ID]; !exists {
		return &errors.NotFoundError{Resource: "run", ID: run.ID}
	}
	b.runs[run.ID] = cloneRun(run)
	return nil
}

func (b *Backend) GetRunByIdempotencyKey(ctx context.Context, workflowID, key string) (*store.Run, error) {
	if key == "" {
		return nil, nil
	}
	for _, run := range b.runs {
		if run.WorkflowID == workflowID && run.IdempotencyKey == key {
			return cloneRun(run), nil
		}
	}
	return nil, nil
}

func (b *Backend) ListRuns(ctx context.Context, filter store.RunFilter) ([]*store.Run, error) {
	var result []*store.Run
	for _, run := range b.runs {
		if filter.WorkflowID != "" && run.WorkflowID != filter.WorkflowID {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		result = append(result, cloneRun(run))
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*store.Run{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (b *Backend) AppendRunStep(ctx context.Context, rs *store.RunStep) error {
	b.runSteps[rs.RunID] = append(b.runSteps[rs.RunID], cloneRunStep(rs))
	return nil
}

func (b *Backend) ListRunSteps(ctx context.Context, runID string) ([]*store.RunStep, error) {
	history := b.runSteps[runID]
	out := make([]*store.RunStep, len(history))
	for i, s := range history {
		out[i] = cloneRunStep(s)
	}
	return out, nil
}

func cloneWorkflow(w *store.Workflow) *store.Workflow {
	cp := *w
	if w.Definition != nil {
		cp.Definition = append([]byte(nil), w.Definition...)
	}
	return &cp
}

func cloneStep(s *store.Step) *store.Step {
	cp := *s
	if s.Config != nil {
		cp.Config = append([]byte(nil), s.Config...)
	}
	return &cp
}

func cloneRun(r *store.Run) *store.Run {
	cp := *r
	if r.Context != nil {
		cp.Context = append([]byte(nil), r.Context...)
	}
	return &cp
}

func cloneRunStep(s *store.RunStep) *store.RunStep {
	cp := *s
	if s.Output != nil {
		cp.Output = append([]byte(nil), s.Output...)
	}
	return &cp
}
