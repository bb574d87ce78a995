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

// Package schema implements `stepwise schema`: print the embedded
// workflow JSON Schema so it can be piped into an editor or a validator.
package schema

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombarlow/stepwise/internal/cli"
	"github.com/tombarlow/stepwise/pkg/engine/schema"
)

// NewCommand builds the `schema` subcommand.
func NewCommand(_ *cli.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the embedded workflow definition JSON Schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), schema.GetEmbeddedSchemaString())
			return nil
		},
	}
}
