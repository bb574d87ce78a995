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

// Package observability builds the OpenTelemetry tracer provider and
// Prometheus registry the CLI bootstraps before running a workflow, so the
// spans pkg/engine already opens (otel.Tracer calls in tracing.go) and the
// counters it already records (metrics.go) actually leave the process
// instead of landing on the global no-op implementations.
package observability

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// TracingConfig selects how advance-loop spans are exported. It mirrors the
// teacher's own tracing config shape, trimmed to the exporter choice that
// matters for this engine: a human-readable stream for local development, or
// an OTLP collector for production.
type TracingConfig struct {
	// Enabled activates tracing. Off by default: otel.Tracer falls back to
	// the no-op global provider, so running with tracing disabled costs
	// nothing beyond the attribute-building already in pkg/engine.
	Enabled bool `yaml:"enabled"`

	// ServiceName and ServiceVersion identify this process in exported spans.
	ServiceName    string `yaml:"service_name,omitempty"`
	ServiceVersion string `yaml:"service_version,omitempty"`

	// Exporter selects the span destination: "stdout" (default, for local
	// dev), "otlp" (gRPC) or "otlp-http".
	Exporter string `yaml:"exporter,omitempty"`

	// OTLPEndpoint is the collector address when Exporter is otlp/otlp-http.
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`

	// OTLPInsecure disables TLS when talking to the collector, for a local
	// sidecar collector during development.
	OTLPInsecure bool `yaml:"otlp_insecure,omitempty"`
}

// setupTracing builds a TracerProvider from cfg and installs it as the
// global provider, so every otel.Tracer(...) call in pkg/engine starts
// producing real spans. It returns a shutdown func that flushes and closes
// the exporter; callers must invoke it before the process exits.
func setupTracing(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("building trace exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "stepwise"
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"", // empty schema URL avoids conflicts when merging with the default resource
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func newSpanExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "", "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	case "otlp":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case "otlp-http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown tracing exporter %q, must be stdout, otlp or otlp-http", cfg.Exporter)
	}
}
