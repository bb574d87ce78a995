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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tombarlow/stepwise/internal/store"
)

// stepFile is one step entry of a workflow definition file.
type stepFile struct {
	ID     string                 `yaml:"id" json:"id"`
	Type   string                 `yaml:"type" json:"type"`
	Name   string                 `yaml:"name" json:"name"`
	Next   string                 `yaml:"next" json:"next"`
	Config map[string]interface{} `yaml:"config" json:"config"`
}

// workflowFile is the on-disk shape of a workflow definition, accepted as
// either JSON or YAML. Templates is an ambient addition: named prompt
// templates referenced by an ai_generate step's template_id, resolved by
// the CLI's in-memory engine.TemplateSource rather than stored server-side.
type workflowFile struct {
	ID        string             `yaml:"id" json:"id"`
	Name      string             `yaml:"name" json:"name"`
	StartStep string             `yaml:"start_step" json:"start_step"`
	Steps     []stepFile         `yaml:"steps" json:"steps"`
	Templates map[string]string `yaml:"templates,omitempty" json:"templates,omitempty"`
}

// LoadWorkflowFile parses a JSON or YAML workflow definition (selected by
// file extension) into the store-column shape CreateWorkflow expects, plus
// its template map.
func LoadWorkflowFile(path string) (*store.Workflow, []*store.Step, map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading workflow file: %w", err)
	}

	var wf workflowFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &wf); err != nil {
			return nil, nil, nil, fmt.Errorf("parsing YAML workflow: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &wf); err != nil {
			return nil, nil, nil, fmt.Errorf("parsing JSON workflow: %w", err)
		}
	}

	if wf.ID == "" {
		return nil, nil, nil, fmt.Errorf("workflow file %s: id is required", path)
	}
	if wf.StartStep == "" {
		return nil, nil, nil, fmt.Errorf("workflow file %s: start_step is required", path)
	}

	steps := make([]*store.Step, 0, len(wf.Steps))
	for _, s := range wf.Steps {
		cfgJSON, err := json.Marshal(s.Config)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("step %s: encoding config: %w", s.ID, err)
		}
		steps = append(steps, &store.Step{
			WorkflowID: wf.ID,
			StepID:     s.ID,
			Type:       s.Type,
			Name:       s.Name,
			Next:       s.Next,
			Config:     cfgJSON,
		})
	}

	definition, err := json.Marshal(wf)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encoding workflow definition: %w", err)
	}

	sw := &store.Workflow{
		ID:         wf.ID,
		Version:    1,
		Name:       wf.Name,
		StartStep:  wf.StartStep,
		Definition: definition,
		CreatedAt:  time.Now(),
	}

	return sw, steps, wf.Templates, nil
}

// staticTemplateSource implements engine.TemplateSource over the
// Templates map loaded from a workflow file.
type staticTemplateSource struct {
	templates map[string]string
}

// NewStaticTemplateSource wraps a plain map of template_id to prompt
// template text, the source format a workflow file's `templates:` section
// loads into.
func NewStaticTemplateSource(templates map[string]string) *staticTemplateSource {
	return &staticTemplateSource{templates: templates}
}

func (s *staticTemplateSource) Template(id string) (string, error) {
	tpl, ok := s.templates[id]
	if !ok {
		return "", fmt.Errorf("template %q not found", id)
	}
	return tpl, nil
}
