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

package cli

import (
	"os"
	"path/filepath"
	"testing"
)

const yamlWorkflow = `
id: onboard
name: Onboard a user
start_step: collect
steps:
  - id: collect
    type: form
    name: Collect details
    next: summarize
    config:
      fields:
        - key: name
          type: text
          required: true
  - id: summarize
    type: ai_generate
    name: Summarize
    config:
      template_id: summary
templates:
  summary: "Summarize: {{name}}"
`

const jsonWorkflow = `{
  "id": "onboard",
  "name": "Onboard a user",
  "start_step": "collect",
  "steps": [
    {"id": "collect", "type": "form", "name": "Collect details", "next": "", "config": {"fields": []}}
  ]
}`

func writeTempFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

func TestLoadWorkflowFile_YAML(t *testing.T) {
	path := writeTempFile(t, "workflow.yaml", yamlWorkflow)

	wf, steps, templates, err := LoadWorkflowFile(path)
	if err != nil {
		t.Fatalf("LoadWorkflowFile: %v", err)
	}
	if wf.ID != "onboard" || wf.StartStep != "collect" {
		t.Fatalf("unexpected workflow: %+v", wf)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].Type != "form" || steps[1].Type != "ai_generate" {
		t.Fatalf("unexpected step types: %s, %s", steps[0].Type, steps[1].Type)
	}
	if templates["summary"] == "" {
		t.Fatalf("expected summary template to be loaded")
	}
}

func TestLoadWorkflowFile_JSON(t *testing.T) {
	path := writeTempFile(t, "workflow.json", jsonWorkflow)

	wf, steps, _, err := LoadWorkflowFile(path)
	if err != nil {
		t.Fatalf("LoadWorkflowFile: %v", err)
	}
	if wf.ID != "onboard" || len(steps) != 1 {
		t.Fatalf("unexpected result: %+v, %d steps", wf, len(steps))
	}
}

func TestLoadWorkflowFile_MissingID(t *testing.T) {
	path := writeTempFile(t, "workflow.yaml", "start_step: a\nsteps: []\n")
	if _, _, _, err := LoadWorkflowFile(path); err == nil {
		t.Fatalf("expected error for missing id")
	}
}

func TestLoadWorkflowFile_MissingStartStep(t *testing.T) {
	path := writeTempFile(t, "workflow.yaml", "id: a\nsteps: []\n")
	if _, _, _, err := LoadWorkflowFile(path); err == nil {
		t.Fatalf("expected error for missing start_step")
	}
}

func TestStaticTemplateSource_Lookup(t *testing.T) {
	src := NewStaticTemplateSource(map[string]string{"greet": "hello {{name}}"})

	tpl, err := src.Template("greet")
	if err != nil || tpl != "hello {{name}}" {
		t.Fatalf("unexpected template lookup: %q, %v", tpl, err)
	}

	if _, err := src.Template("missing"); err == nil {
		t.Fatalf("expected error for missing template")
	}
}
