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

import "github.com/tombarlow/stepwise/internal/store"

// decodeWorkflow builds the in-memory, indexed Workflow from its persisted
// form plus its steps.
func decodeWorkflow(sw *store.Workflow, steps []*store.Step) *Workflow {
	wf := &Workflow{
		ID:        sw.ID,
		Version:   sw.Version,
		Name:      sw.Name,
		StartStep: sw.StartStep,
		CreatedAt: sw.CreatedAt,
		Steps:     make([]*Step, len(steps)),
	}
	for i, s := range steps {
		wf.Steps[i] = &Step{
			StepID: s.StepID,
			Type:   StepType(s.Type),
			Name:   s.Name,
			Next:   s.Next,
			Config: s.Config,
		}
	}
	wf.IndexSteps()
	return wf
}

// decodeRun expands a persisted store.Run into its in-memory form, with
// Context parsed out of its JSON encoding.
func decodeRun(sr *store.Run) (*Run, error) {
	ctx, err := UnmarshalContext(sr.Context)
	if err != nil {
		return nil, err
	}
	return &Run{
		ID:              sr.ID,
		WorkflowID:      sr.WorkflowID,
		WorkflowVersion: sr.WorkflowVersion,
		Status:          RunStatus(sr.Status),
		CurrentStep:     sr.CurrentStep,
		IdempotencyKey:  sr.IdempotencyKey,
		Context:         ctx,
		Error:           sr.Error,
		StartedAt:       sr.StartedAt,
		UpdatedAt:       sr.UpdatedAt,
	}, nil
}

// encodeRun compacts a Run back into its persisted form.
func encodeRun(r *Run) (*store.Run, error) {
	data, err := MarshalContext(r.Context)
	if err != nil {
		return nil, err
	}
	return &store.Run{
		ID:              r.ID,
		WorkflowID:      r.WorkflowID,
		WorkflowVersion: r.WorkflowVersion,
		Status:          string(r.Status),
		CurrentStep:     r.CurrentStep,
		IdempotencyKey:  r.IdempotencyKey,
		Context:         data,
		Error:           r.Error,
		StartedAt:       r.StartedAt,
		UpdatedAt:       r.UpdatedAt,
	}, nil
}

// decodeRunSteps expands a slice of persisted store.RunStep records.
func decodeRunSteps(list []*store.RunStep) []*RunStep {
	out := make([]*RunStep, len(list))
	for i, rs := range list {
		out[i] = &RunStep{
			ID:        rs.ID,
			RunID:     rs.RunID,
			StepID:    rs.StepID,
			Type:      StepType(rs.Type),
			Status:    RunStepStatus(rs.Status),
			Output:    rs.Output,
			Error:     rs.Error,
			StartedAt: rs.StartedAt,
			EndedAt:   rs.EndedAt,
		}
	}
	return out
}

// encodeRunStep compacts a RunStep into its persisted form.
func encodeRunStep(rs *RunStep) *store.RunStep {
	return &store.RunStep{
		ID:        rs.ID,
		RunID:     rs.RunID,
		StepID:    rs.StepID,
		Type:      string(rs.Type),
		Status:    string(rs.Status),
		Output:    rs.Output,
		Error:     rs.Error,
		StartedAt: rs.StartedAt,
		EndedAt:   rs.EndedAt,
	}
}
