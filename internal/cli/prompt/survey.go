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

// Package prompt wraps survey for the two interactive prompts `resume`
// needs: a text field (form steps) and an approve/reject decision
// (approval steps).
package prompt

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
)

// Text collects one form field's value via survey.Input or survey.Multiline.
func Text(key string, multiline bool, required bool) (string, error) {
	message := key
	if required {
		message = key + " (required)"
	}

	var result string
	var p survey.Prompt
	if multiline {
		p = &survey.Multiline{Message: message}
	} else {
		p = &survey.Input{Message: message}
	}

	opts := []survey.AskOpt{}
	if required {
		opts = append(opts, survey.WithValidator(survey.Required))
	}

	if err := survey.AskOne(p, &result, opts...); err != nil {
		return "", fmt.Errorf("prompting for %s: %w", key, err)
	}
	return result, nil
}

// Approval asks the operator to approve or reject, plus an optional
// comment, for a run paused at an approval step.
func Approval(approvers []string) (approved bool, comments string, err error) {
	message := "Approve this step?"
	if len(approvers) > 0 {
		message = fmt.Sprintf("Approve this step? (requested of: %v)", approvers)
	}

	confirmPrompt := &survey.Confirm{Message: message, Default: false}
	if err := survey.AskOne(confirmPrompt, &approved); err != nil {
		return false, "", fmt.Errorf("prompting for approval: %w", err)
	}

	commentPrompt := &survey.Input{Message: "Comments (optional):"}
	if err := survey.AskOne(commentPrompt, &comments); err != nil {
		return false, "", fmt.Errorf("prompting for comments: %w", err)
	}

	return approved, comments, nil
}
