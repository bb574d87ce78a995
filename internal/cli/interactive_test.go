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

import "testing"

func TestIsInteractiveModeAllowed_ExplicitFlagWins(t *testing.T) {
	if IsInteractiveModeAllowed(true) {
		t.Fatal("expected false when noInteractive flag is set")
	}
}

func TestIsInteractiveModeAllowed_EnvVarDisables(t *testing.T) {
	t.Setenv("STEPWISE_NO_INTERACTIVE", "true")
	if IsInteractiveModeAllowed(false) {
		t.Fatal("expected false when STEPWISE_NO_INTERACTIVE=true")
	}
}

func TestIsInteractiveModeAllowed_CIEnvDisables(t *testing.T) {
	t.Setenv("CI", "true")
	if IsInteractiveModeAllowed(false) {
		t.Fatal("expected false when CI env var is set")
	}
}

func TestIsInteractiveModeAllowed_GitHubActionsDisables(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "true")
	if IsInteractiveModeAllowed(false) {
		t.Fatal("expected false when GITHUB_ACTIONS env var is set")
	}
}
