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

// Package run implements `stepwise run`: load a workflow definition file,
// register it with the chosen store backend if not already present, and
// start a run against it.
package run

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombarlow/stepwise/internal/cli"
	stepwiseerrors "github.com/tombarlow/stepwise/pkg/errors"
)

// NewCommand builds the `run` subcommand.
func NewCommand(flags *cli.Flags) *cobra.Command {
	var inputPairs []string
	var inputJSONPath string
	var idempotencyKey string

	cmd := &cobra.Command{
		Use:   "run <workflow-file>",
		Short: "Start a workflow run from a JSON or YAML workflow file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := parseInputs(inputPairs, inputJSONPath)
			if err != nil {
				return cli.NewInvalidWorkflowError("could not parse --input values", err)
			}
			return runWorkflow(cmd, flags, args[0], inputs, idempotencyKey)
		},
	}

	cmd.Flags().StringArrayVar(&inputPairs, "input", nil, "A key=value input pair, repeatable")
	cmd.Flags().StringVar(&inputJSONPath, "input-json", "", "Path to a JSON file of inputs (merged under --input pairs)")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency key; re-running with the same key and workflow returns the original run")

	return cmd
}

func runWorkflow(cmd *cobra.Command, flags *cli.Flags, workflowPath string, inputs map[string]interface{}, idempotencyKey string) error {
	ctx := cmd.Context()

	cfg, err := cli.LoadConfig(flags)
	if err != nil {
		return err
	}
	logger := cli.NewLogger(cfg, flags)

	sw, steps, templates, err := cli.LoadWorkflowFile(workflowPath)
	if err != nil {
		return cli.NewInvalidWorkflowError("invalid workflow file", err)
	}

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

	if err := backend.CreateWorkflow(ctx, sw, steps); err != nil {
		var conflict *stepwiseerrors.ConflictError
		if !errors.As(err, &conflict) {
			return cli.NewInvalidWorkflowError("failed to register workflow", err)
		}
		logger.Debug("workflow already registered, reusing existing definition", "workflow_id", sw.ID)
	}

	orch := cli.NewOrchestrator(backend, cfg, cli.NewStaticTemplateSource(templates), logger, reg)

	run, err := orch.StartRun(ctx, sw.ID, inputs, idempotencyKey)
	if err != nil {
		return cli.ClassifyEngineError(err)
	}

	return cli.PrintRun(cmd.OutOrStdout(), flags, run)
}

// parseInputs merges --input key=value pairs over a --input-json file's
// contents, key=value pairs winning on conflict (matching the precedence
// flags normally carry over a bulk file in this CLI's other commands).
func parseInputs(pairs []string, jsonPath string) (map[string]interface{}, error) {
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
		inputs[key] = coerceInputValue(value)
	}

	return inputs, nil
}

// coerceInputValue lets a --input value be given as bare JSON (numbers,
// booleans, arrays, objects) while falling back to a plain string when it
// doesn't parse as JSON, so `--input count=3` and `--input name=Ada` both
// do what they look like they should.
func coerceInputValue(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}
