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
	"fmt"

	"github.com/tombarlow/stepwise/pkg/errors"
)

// FormExecutor emits a pause-with-schema signal and, on resume, validates
// the submitted field values against the step's field descriptors.
type FormExecutor struct{}

// NewFormExecutor creates a form step executor.
func NewFormExecutor() *FormExecutor {
	return &FormExecutor{}
}

// Execute always pauses, writing the step's field schema to
// context.runtime[<step_id>_schema] before returning, per spec.md §4.3.
func (e *FormExecutor) Execute(_ context.Context, run *Run, step *Step) (*Result, error) {
	cfg, err := decodeFormConfig(step.Config)
	if err != nil {
		return nil, err
	}
	run.Context.Runtime[step.StepID+"_schema"] = cfg.Fields
	return &Result{
		Pause:      true,
		WaitingFor: "form",
		Output:     cfg.Fields,
	}, nil
}

// ValidateFields validates resume inputs against the step's field
// descriptors (spec.md §4.3): required-and-absent fails, present-with-
// unknown-type fails, non-string values fail, optional missing fields are
// dropped silently, and keys not present in the schema are dropped.
func ValidateFields(fields []FieldDescriptor, inputs map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		v, present := inputs[f.Key]
		if !present {
			if f.Required {
				return nil, &errors.ValidationError{
					Field:   f.Key,
					Message: fmt.Sprintf("field %q is required", f.Key),
				}
			}
			continue
		}
		if f.Type != "text" && f.Type != "textarea" {
			return nil, &errors.ValidationError{
				Field:   f.Key,
				Message: fmt.Sprintf("field %q has unsupported type %q", f.Key, f.Type),
			}
		}
		s, ok := v.(string)
		if !ok {
			return nil, &errors.ValidationError{
				Field:   f.Key,
				Message: fmt.Sprintf("field %q must be a string", f.Key),
			}
		}
		out[f.Key] = s
	}
	return out, nil
}

func decodeFormConfig(raw []byte) (*FormConfig, error) {
	var cfg FormConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, &errors.ValidationError{Field: "config", Message: "invalid form step config: " + err.Error()}
	}
	return &cfg, nil
}
