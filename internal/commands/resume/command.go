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

// Package resume implements `stepwise resume`: supply the input a waiting
// run needs to continue, either from --input flags/--input-json or, when
// the session is interactive, via terminal prompts.
package resume

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombarlow/stepwise/internal/cli"
	"github.com/tombarlow/stepwise/internal/cli/prompt"
	"github.com/tombarlow/stepwise/internal/store"
	"github.com/tombarlow/stepwise/pkg/engine"
)

// NewCommand builds the `resume` subcommand.
func NewCommand(flags *cli.Flags) *cobra.Command {
	var inputPairs []string
	var inputJSONPath string
	var noInteractive bool
	var approve bool
	var reject bool
	var comments string

	cmd := &cobra.Command{
		Use:   "resume <run-id>",
		Short: "Supply input to a run waiting on a form or approval step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := resumeOptions{
				runID:         args[0],
				inputPairs:    inputPairs,
				inputJSONPath: inputJSONPath,
				noInteractive: noInteractive,
				approve:       approve,
				reject:        reject,
				comments:      comments,
			}
			return resumeRun(cmd, flags, opts)
		},
	}

	cmd.Flags().StringArrayVar(&inputPairs, "input", nil, "A key=value form field value, repeatable")
	cmd.Flags().StringVar(&inputJSONPath, "input-json", "", "Path to a JSON file of form field values")
	cmd.Flags().BoolVar(&noInteractive, "no-interactive", false, "Never fall back to terminal prompts for missing input")
	cmd.Flags().BoolVar(&approve, "approve", false, "Approve a run waiting on an approval step")
	cmd.Flags().BoolVar(&reject, "reject", false, "Reject a run waiting on an approval step")
	cmd.Flags().StringVar(&comments, "comments", "", "Optional comments to record with an approval decision")

	return cmd
}

type resumeOptions struct {
	runID         string
	inputPairs    []string
	inputJSONPath string
	noInteractive bool
	approve       bool
	reject        bool
	comments      string
}

func resumeRun(cmd *cobra.Command, flags *cli.Flags, opts resumeOptions) error {
	ctx := cmd.Context()

	cfg, err := cli.LoadConfig(flags)
	if err != nil {
		return err
	}
	logger := cli.NewLogger(cfg, flags)

	backend, err := cli.OpenBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	reg, shutdownObservability, err := cli.SetupObservability(ctx, cfg)
	if err != nil {
		return fmt.Errorf("setting up observability: %w", err)
	}
	defer shutdownObservability(ctx)

	sr, err := backend.GetRun(ctx, opts.runID)
	if err != nil {
		return cli.ClassifyEngineError(err)
	}
	if sr.Status != "waiting" {
		return cli.NewInvalidWorkflowError(fmt.Sprintf("run %s is not waiting for input (status: %s)", sr.ID, sr.Status), nil)
	}

	_, steps, err := backend.GetWorkflow(ctx, sr.WorkflowID)
	if err != nil {
		return cli.ClassifyEngineError(err)
	}

	var step *store.Step
	for _, s := range steps {
		if s.StepID == sr.CurrentStep {
			step = s
			break
		}
	}
	if step == nil {
		return cli.NewInvalidWorkflowError(fmt.Sprintf("step %s no longer exists in workflow %s", sr.CurrentStep, sr.WorkflowID), nil)
	}

	inputs, err := resolveResumeInputs(step, opts)
	if err != nil {
		return err
	}

	orch := cli.NewOrchestrator(backend, cfg, cli.NewStaticTemplateSource(nil), logger, reg)

	run, err := orch.ResumeRun(ctx, opts.runID, inputs)
	if err != nil {
		return cli.ClassifyEngineError(err)
	}

	return cli.PrintRun(cmd.OutOrStdout(), flags, run)
}

// resolveResumeInputs builds the inputs map ResumeRun expects for the
// waiting step's type, from flags first and interactive prompts second.
func resolveResumeInputs(step *store.Step, opts resumeOptions) (map[string]interface{}, error) {
	switch step.Type {
	case "form":
		return resolveFormInputs(step, opts)
	case "approval":
		return resolveApprovalInput(opts)
	case "ai_generate":
		return resolveManualFixInputs(opts)
	default:
		return nil, cli.NewInvalidWorkflowError(fmt.Sprintf("step type %q cannot be resumed from the CLI", step.Type), nil)
	}
}

// resolveManualFixInputs resumes an ai_generate step stuck after exhausting
// its retries: the patch fields are opaque to the CLI, so they must come
// from --input/--input-json rather than a generated prompt.
func resolveManualFixInputs(opts resumeOptions) (map[string]interface{}, error) {
	inputs, err := parseFlagInputs(opts.inputPairs, opts.inputJSONPath)
	if err != nil {
		return nil, cli.NewInvalidWorkflowError("could not parse --input values", err)
	}
	if len(inputs) == 0 {
		return nil, cli.NewMissingInputError("run is waiting on a failed ai_generate step; supply a fix via --input or --input-json", nil)
	}
	return inputs, nil
}

func resolveFormInputs(step *store.Step, opts resumeOptions) (map[string]interface{}, error) {
	inputs, err := parseFlagInputs(opts.inputPairs, opts.inputJSONPath)
	if err != nil {
		return nil, cli.NewInvalidWorkflowError("could not parse --input values", err)
	}

	var cfg engine.FormConfig
	if err := json.Unmarshal(step.Config, &cfg); err != nil {
		return nil, cli.NewInvalidWorkflowError("invalid form step config", err)
	}

	var missing []engine.FieldDescriptor
	for _, f := range cfg.Fields {
		if _, ok := inputs[f.Key]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) == 0 {
		return inputs, nil
	}

	if !cli.IsInteractiveModeAllowed(opts.noInteractive) {
		return nil, cli.NewMissingInputError(formatMissingFieldsError(missing), nil)
	}

	for _, f := range missing {
		value, err := prompt.Text(f.Key, f.Type == "textarea", f.Required)
		if err != nil {
			return nil, err
		}
		if value == "" && !f.Required {
			continue
		}
		inputs[f.Key] = value
	}

	return inputs, nil
}

func resolveApprovalInput(opts resumeOptions) (map[string]interface{}, error) {
	if opts.approve && opts.reject {
		return nil, cli.NewInvalidWorkflowError("--approve and --reject are mutually exclusive", nil)
	}

	if opts.approve || opts.reject {
		return map[string]interface{}{
			"approval": map[string]interface{}{
				"approved": opts.approve,
				"comments": opts.comments,
			},
		}, nil
	}

	if !cli.IsInteractiveModeAllowed(opts.noInteractive) {
		return nil, cli.NewMissingInputError("run is waiting on an approval; pass --approve or --reject", nil)
	}

	approved, comments, err := prompt.Approval(nil)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"approval": map[string]interface{}{
			"approved": approved,
			"comments": comments,
		},
	}, nil
}

func parseFlagInputs(pairs []string, jsonPath string) (map[string]interface{}, error) {
	inputs := map[string]interface{}{}

	if jsonPath != "" {
		data, err := os.ReadFile(jsonPath)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", jsonPath, err)
		}
		if err := json.Unmarshal(data, &inputs); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", jsonPath, err)
		}
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --input %q, expected key=value", pair)
		}
		inputs[key] = value
	}

	return inputs, nil
}

func formatMissingFieldsError(missing []engine.FieldDescriptor) string {
	var sb strings.Builder
	sb.WriteString("Missing required form fields:\n")
	for _, f := range missing {
		req := "optional"
		if f.Required {
			req = "required"
		}
		sb.WriteString(fmt.Sprintf("  - %s (%s, %s)\n", f.Key, f.Type, req))
	}
	sb.WriteString("\nPass each with --input key=value, or run interactively.")
	return sb.String()
}
