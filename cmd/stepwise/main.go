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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tombarlow/stepwise/internal/cli"
	"github.com/tombarlow/stepwise/internal/commands/resume"
	"github.com/tombarlow/stepwise/internal/commands/run"
	"github.com/tombarlow/stepwise/internal/commands/schema"
	"github.com/tombarlow/stepwise/internal/commands/validate"
)

// Version information, injected via ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, flags := cli.NewRootCommand()
	root.Version = version + " (" + commit + ")"

	root.AddCommand(run.NewCommand(flags))
	root.AddCommand(resume.NewCommand(flags))
	root.AddCommand(validate.NewCommand(flags))
	root.AddCommand(schema.NewCommand(flags))

	if err := root.ExecuteContext(ctx); err != nil {
		cli.HandleExit(err)
	}
}
