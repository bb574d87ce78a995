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
	"io"

	"github.com/tombarlow/stepwise/pkg/engine"
)

// PrintRun renders a run to w as JSON (flags.JSON) or a short human
// summary, the same shape `run` and `resume` both need to report back.
func PrintRun(w io.Writer, flags *Flags, run *engine.Run) error {
	if flags.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	fmt.Fprintf(w, "Run:       %s\n", run.ID)
	fmt.Fprintf(w, "Workflow:  %s (v%d)\n", run.WorkflowID, run.WorkflowVersion)
	fmt.Fprintf(w, "Status:    %s\n", run.Status)
	if run.CurrentStep != "" {
		fmt.Fprintf(w, "Step:      %s\n", run.CurrentStep)
	}
	if run.Error != "" {
		fmt.Fprintf(w, "Error:     %s\n", run.Error)
	}
	return nil
}
