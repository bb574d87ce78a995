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

// Package validate implements `stepwise validate`: parse a workflow file
// and check its step graph without registering it or starting a run.
package validate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombarlow/stepwise/internal/cli"
	"github.com/tombarlow/stepwise/internal/store"
)

// NewCommand builds the `validate` subcommand.
func NewCommand(flags *cli.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <workflow-file>",
		Short: "Check a workflow file's step graph for structural errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateFile(cmd, flags, args[0])
		},
	}
	return cmd
}

func validateFile(cmd *cobra.Command, flags *cli.Flags, path string) error {
	sw, steps, _, err := cli.LoadWorkflowFile(path)
	if err != nil {
		return cli.NewInvalidWorkflowError("invalid workflow file", err)
	}

	if err := store.ValidateWorkflowGraph(sw, steps); err != nil {
		return cli.NewInvalidWorkflowError(fmt.Sprintf("workflow %s failed validation", sw.ID), err)
	}

	if flags.JSON {
		fmt.Fprintf(cmd.OutOrStdout(), `{"workflow_id":%q,"valid":true,"steps":%d}`+"\n", sw.ID, len(steps))
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d steps)\n", sw.ID, len(steps))
	return nil
}
