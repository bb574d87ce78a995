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

// Package cli assembles the stepwise root Cobra command and the global
// flags every subcommand shares (config file, store backend, verbosity).
package cli

import (
	"github.com/spf13/cobra"
)

// Flags holds the global, persistent flag values shared by every
// subcommand. A single instance is created in NewRootCommand and threaded
// down to each command's RunE via closure.
type Flags struct {
	ConfigPath  string
	Store       string
	SQLitePath  string
	DatabaseURL string
	Verbose     bool
	JSON        bool
}

// NewRootCommand creates the root Cobra command for stepwise.
func NewRootCommand() (*cobra.Command, *Flags) {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:   "stepwise",
		Short: "stepwise - durable workflow orchestration",
		Long: `stepwise runs declarative, multi-step workflows to completion across
form, AI-generate, conditional and approval steps, suspending at each
step that needs outside input and resuming exactly where it left off.

Run 'stepwise run <workflow-file>' to start a workflow.
Run 'stepwise resume <run-id>' to supply input to a waiting run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "Path to config file (default: ~/.config/stepwise/config.yaml)")
	cmd.PersistentFlags().StringVar(&flags.Store, "store", "", "Storage backend: memory, sqlite or postgres (overrides config)")
	cmd.PersistentFlags().StringVar(&flags.SQLitePath, "sqlite-path", "", "SQLite database file path (overrides config)")
	cmd.PersistentFlags().StringVar(&flags.DatabaseURL, "database-url", "", "PostgreSQL connection string (overrides config)")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable debug-level logging")
	cmd.PersistentFlags().BoolVar(&flags.JSON, "json", false, "Output run/history as JSON")

	return cmd, flags
}

// HandleExit maps a command error to an exit code and exits the process.
// It is a thin wrapper around HandleExitError.
func HandleExit(err error) {
	HandleExitError(err)
}
