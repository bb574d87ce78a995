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

	"github.com/tombarlow/stepwise/pkg/engine/expression"
	"github.com/tombarlow/stepwise/pkg/errors"
)

// ConditionalExecutor merges the three context layers into one flat
// namespace and evaluates the step's "when" expression under the sandbox.
// It never pauses.
type ConditionalExecutor struct {
	evaluator *expression.Evaluator
}

// NewConditionalExecutor creates a conditional step executor using eval
// for expression evaluation.
func NewConditionalExecutor(eval *expression.Evaluator) *ConditionalExecutor {
	return &ConditionalExecutor{evaluator: eval}
}

// Execute flattens run.Context (runtime overrides profile overrides
// static, per spec.md §4.4) and evaluates config.when against it.
func (e *ConditionalExecutor) Execute(ctx context.Context, run *Run, step *Step) (*Result, error) {
	var cfg ConditionalConfig
	if err := json.Unmarshal(step.Config, &cfg); err != nil {
		return nil, &errors.ValidationError{Field: "config", Message: "invalid conditional step config: " + err.Error()}
	}

	ns := run.Context.Flatten()
	result, err := e.evaluator.Evaluate(ctx, cfg.When, ns)
	if err != nil {
		return nil, err
	}

	return &Result{
		Pause: false,
		Output: map[string]interface{}{
			"result":     result,
			"expression": cfg.When,
		},
	}, nil
}
