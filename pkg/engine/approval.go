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
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tombarlow/stepwise/pkg/errors"
)

// approvalTokenBytes is the raw entropy behind the approval token before
// URL-safe base64 encoding; 32 raw bytes encode to 43 characters, safely
// above the "at least 32 url-safe chars" bound in spec.md §4.6.
const approvalTokenBytes = 32

// Notifier is the out-of-scope hand-off hook invoked once per approver
// (spec.md §6's Notification contract): best-effort, fire-and-forget,
// failures never fail the step.
type Notifier interface {
	Notify(ctx context.Context, recipient, approvalURL string) error
}

// ApprovalExecutor mints an opaque approval token, records pending
// approvers in the run's runtime context, and notifies each approver.
type ApprovalExecutor struct {
	notifier Notifier
	logger   *slog.Logger
}

// NewApprovalExecutor creates an approval step executor. notify is invoked
// once per approver; its errors are logged, not propagated.
func NewApprovalExecutor(notifier Notifier, logger *slog.Logger) *ApprovalExecutor {
	return &ApprovalExecutor{notifier: notifier, logger: logger}
}

// Execute generates the approval token, writes
// context.runtime[<step_id>_approval], notifies every approver, and pauses.
func (e *ApprovalExecutor) Execute(ctx context.Context, run *Run, step *Step) (*Result, error) {
	var cfg ApprovalConfig
	if err := json.Unmarshal(step.Config, &cfg); err != nil {
		return nil, &errors.ValidationError{Field: "config", Message: "invalid approval step config: " + err.Error()}
	}

	token, err := generateApprovalToken()
	if err != nil {
		return nil, fmt.Errorf("generate approval token: %w", err)
	}

	approval := map[string]interface{}{
		"token":     token,
		"approvers": cfg.Approvers,
		"status":    "pending",
	}
	run.Context.Runtime[step.StepID+"_approval"] = approval

	for _, approver := range cfg.Approvers {
		url := fmt.Sprintf("https://approve.local/%s/%s", run.ID, token)
		if e.notifier == nil {
			continue
		}
		if err := e.notifier.Notify(ctx, approver, url); err != nil && e.logger != nil {
			e.logger.Warn("approval notification failed", "approver", approver, "run_id", run.ID, "error", err)
		}
	}

	return &Result{
		Pause:      true,
		WaitingFor: "approval",
		Output: map[string]interface{}{
			"approval_token": token,
			"approvers":      cfg.Approvers,
		},
	}, nil
}

func generateApprovalToken() (string, error) {
	buf := make([]byte, approvalTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
