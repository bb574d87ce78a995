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

	"github.com/tombarlow/stepwise/pkg/engine/schema"
	"github.com/tombarlow/stepwise/pkg/errors"
)

// MaxAIRetries bounds the AI-generate executor's retry budget: up to
// MaxAIRetries retries, MaxAIRetries+1 attempts total, per spec.md §4.5/§8.
const MaxAIRetries = 2

// AIGenerateExecutor resolves template variables from context, calls the
// provider, validates the result against a JSON Schema, and retries on
// failure before pausing for manual intervention.
type AIGenerateExecutor struct {
	provider  AIProvider
	validator schema.Validator
}

// NewAIGenerateExecutor creates an ai_generate step executor.
func NewAIGenerateExecutor(provider AIProvider, validator schema.Validator) *AIGenerateExecutor {
	return &AIGenerateExecutor{provider: provider, validator: validator}
}

// Execute resolves config.variables from context (static, then profile,
// then runtime; first hit wins), then attempts generation up to
// MaxAIRetries+1 times, returning a manual_fix pause when the budget is
// exhausted.
func (e *AIGenerateExecutor) Execute(ctx context.Context, run *Run, step *Step) (*Result, error) {
	var cfg AIGenerateConfig
	if err := json.Unmarshal(step.Config, &cfg); err != nil {
		return nil, &errors.ValidationError{Field: "config", Message: "invalid ai_generate step config: " + err.Error()}
	}

	variables := make(map[string]interface{}, len(cfg.Variables))
	for _, name := range cfg.Variables {
		v, ok := run.Context.Lookup(name)
		if !ok {
			return nil, &errors.ValidationError{
				Field:   name,
				Message: fmt.Sprintf("variable %q is not defined in static, profile, or runtime context", name),
			}
		}
		variables[name] = v
	}

	var lastErr error
	for attempt := 0; attempt <= MaxAIRetries; attempt++ {
		provider := e.provider
		if escalator, ok := provider.(interface{ WithRetryAttempt(int) *LLMAdapter }); ok {
			provider = escalator.WithRetryAttempt(attempt)
		}

		output, err := provider.Generate(ctx, cfg.TemplateID, variables, cfg.JSONSchema)
		if err == nil {
			if verr := e.validator.Validate(cfg.JSONSchema, output); verr == nil {
				run.Context.Runtime[step.StepID+"_output"] = output
				return &Result{
					Pause:      false,
					Output:     output,
					RetryCount: attempt,
				}, nil
			} else {
				lastErr = verr
			}
		} else {
			// A timeout or provider error still counts as a failed attempt,
			// not an immediate abort: the retry budget absorbs transient
			// provider slowness and errors alike, per spec.md §4.5.
			lastErr = err
		}
	}

	return &Result{
		Pause:      true,
		WaitingFor: "manual_fix",
		Error:      lastErr.Error(),
		RetryCount: MaxAIRetries,
	}, nil
}
