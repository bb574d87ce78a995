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
	"os"
	"strings"

	"golang.org/x/term"
)

// IsInteractiveModeAllowed decides whether resume may fall back to
// terminal prompts for missing input. Interactive mode is refused if the
// caller passed --no-interactive, STEPWISE_NO_INTERACTIVE is set, a known
// CI environment variable is present, or stdin isn't a TTY.
func IsInteractiveModeAllowed(noInteractive bool) bool {
	if noInteractive {
		return false
	}

	if envVal := os.Getenv("STEPWISE_NO_INTERACTIVE"); envVal != "" {
		switch strings.ToLower(envVal) {
		case "true", "1", "yes":
			return false
		}
	}

	ciEnvVars := []string{
		"CI",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"CIRCLECI",
		"TRAVIS",
		"BUILDKITE",
		"DRONE",
		"JENKINS_HOME",
		"TEAMCITY_VERSION",
	}
	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return false
		}
	}

	return term.IsTerminal(int(os.Stdin.Fd()))
}
