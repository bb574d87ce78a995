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
	"context"
	"testing"

	"github.com/tombarlow/stepwise/internal/config"
)

func TestLoadConfig_FlagsOverrideDefaults(t *testing.T) {
	flags := &Flags{Store: "sqlite", SQLitePath: "/tmp/stepwise-test.db"}

	cfg, err := LoadConfig(flags)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store.Type != "sqlite" || cfg.Store.SQLitePath != "/tmp/stepwise-test.db" {
		t.Fatalf("flag overrides not applied: %+v", cfg.Store)
	}
}

func TestOpenBackend_Memory(t *testing.T) {
	cfg := config.Default()
	backend, err := OpenBackend(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenBackend: %v", err)
	}
	defer backend.Close()
}

func TestOpenBackend_UnknownType(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Type = "carrier-pigeon"

	if _, err := OpenBackend(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown store backend")
	}
}

func TestNewOrchestrator_NoProviderConfigured(t *testing.T) {
	cfg := config.Default()
	backend, err := OpenBackend(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenBackend: %v", err)
	}
	defer backend.Close()

	logger := NewLogger(cfg, &Flags{})
	orch := NewOrchestrator(backend, cfg, NewStaticTemplateSource(nil), logger, nil)
	if orch == nil {
		t.Fatal("expected a non-nil orchestrator")
	}
}
