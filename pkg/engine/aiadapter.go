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
	"errors"
	"fmt"
	"strings"

	"github.com/tombarlow/stepwise/pkg/engine/schema"
	stepwiseerrors "github.com/tombarlow/stepwise/pkg/errors"
)

// Completer is the minimal surface the AI-generate executor needs from an
// LLM integration: a prompt in, text out. internal/llm.ProviderAdapter
// satisfies it already.
type Completer interface {
	Complete(ctx context.Context, prompt string, options map[string]interface{}) (string, error)
}

// AIProvider is the provider contract consumed by the AI-generate executor
// (spec.md §6): given a template id, resolved variables, and a JSON Schema,
// return a decoded object. Implementations must surface a deadline as a
// distinct *errors.TimeoutError rather than a generic error.
type AIProvider interface {
	Generate(ctx context.Context, templateID string, variables map[string]interface{}, jsonSchema map[string]interface{}) (map[string]interface{}, error)
}

// TemplateSource resolves a template id to its prompt text. A workflow's
// ai_generate steps name templates by id; this implementation does not
// define template storage, leaving it to the caller (out of scope, per
// SPEC_FULL.md §1).
type TemplateSource interface {
	Template(templateID string) (string, error)
}

// LLMAdapter implements AIProvider on top of a Completer (in practice,
// internal/llm.ProviderAdapter wrapping a pkg/llm.Provider), grounded on
// that adapter's Complete(ctx, prompt, options) contract.
type LLMAdapter struct {
	completer Completer
	templates TemplateSource
	retry     int // which retry attempt this call represents, for prompt escalation
}

// NewLLMAdapter creates an AIProvider backed by completer and templates.
func NewLLMAdapter(completer Completer, templates TemplateSource) *LLMAdapter {
	return &LLMAdapter{completer: completer, templates: templates}
}

// WithRetryAttempt returns a copy of the adapter that will build its prompt
// for the given retry attempt (0-indexed), escalating the schema
// instructions the way schema.BuildPromptWithSchema expects.
func (a *LLMAdapter) WithRetryAttempt(attempt int) *LLMAdapter {
	return &LLMAdapter{completer: a.completer, templates: a.templates, retry: attempt}
}

// Generate resolves the template, renders it with variables and the target
// schema, calls the completer, and extracts the first JSON object from the
// response text.
func (a *LLMAdapter) Generate(ctx context.Context, templateID string, variables map[string]interface{}, jsonSchema map[string]interface{}) (map[string]interface{}, error) {
	base, err := a.templates.Template(templateID)
	if err != nil {
		return nil, &stepwiseerrors.ValidationError{Field: "template_id", Message: err.Error()}
	}
	base = renderVariables(base, variables)
	prompt := schema.BuildPromptWithSchema(base, jsonSchema, a.retry)

	text, err := a.completer.Complete(ctx, prompt, map[string]interface{}{})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &stepwiseerrors.TimeoutError{Operation: "ai_generate", Duration: 0}
		}
		return nil, fmt.Errorf("provider generate: %w", err)
	}

	decoded, err := schema.ExtractJSON(text)
	if err != nil {
		return nil, &stepwiseerrors.ValidationError{Field: "output", Message: "response did not contain valid JSON: " + err.Error()}
	}
	obj, ok := decoded.(map[string]interface{})
	if !ok {
		return nil, &stepwiseerrors.ValidationError{Field: "output", Message: "response JSON was not an object"}
	}
	return obj, nil
}

// renderVariables does a minimal {{name}} substitution of resolved
// variables into the template text. ai_generate templates are short,
// single-purpose prompts (spec.md §3), not general-purpose templates, so
// a full text/template pipeline would be more machinery than the contract
// needs.
func renderVariables(tmpl string, variables map[string]interface{}) string {
	out := tmpl
	for k, v := range variables {
		out = strings.ReplaceAll(out, "{{"+k+"}}", fmt.Sprintf("%v", v))
	}
	return out
}
