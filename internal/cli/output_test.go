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
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tombarlow/stepwise/pkg/engine"
)

func TestPrintRun_Text(t *testing.T) {
	run := &engine.Run{
		ID:          "run-1",
		WorkflowID:  "wf-1",
		Status:      engine.RunStatusWaiting,
		CurrentStep: "collect",
	}

	var buf bytes.Buffer
	if err := PrintRun(&buf, &Flags{}, run); err != nil {
		t.Fatalf("PrintRun: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "run-1") || !strings.Contains(out, "waiting") || !strings.Contains(out, "collect") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestPrintRun_JSON(t *testing.T) {
	run := &engine.Run{ID: "run-1", WorkflowID: "wf-1", Status: engine.RunStatusCompleted}

	var buf bytes.Buffer
	if err := PrintRun(&buf, &Flags{JSON: true}, run); err != nil {
		t.Fatalf("PrintRun: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["ID"] != "run-1" {
		t.Fatalf("expected ID run-1, got %v", decoded["ID"])
	}
}
