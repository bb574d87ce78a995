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

package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracerName identifies this package's spans in exported traces.
const tracerName = "github.com/tombarlow/stepwise/pkg/engine"

// startStepSpan opens a span covering one advance-loop iteration. If no
// tracer provider has been configured, otel's default no-op tracer is used,
// so this is safe to call unconditionally.
func startStepSpan(ctx context.Context, run *Run, step *Step) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, "engine.advance_step",
		trace.WithAttributes(
			attribute.String("run.id", run.ID),
			attribute.String("workflow.id", run.WorkflowID),
			attribute.String("step.id", step.StepID),
			attribute.String("step.type", string(step.Type)),
		),
	)
}
