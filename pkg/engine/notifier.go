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
	"log/slog"
)

// LogNotifier is the default Notifier: it logs the approval hand-off
// instead of delivering it, grounded in the same interface-plus-logging-
// implementation shape as pkg/tools/approval's CLI/unattended approvers.
// Real delivery (email, Slack, etc.) is out of scope for this core; a
// production deployment supplies its own Notifier.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a Notifier that logs hand-offs via logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the approval hand-off. It never returns an error: delivery
// is best-effort per spec.md §6, and a logging notifier can't fail.
func (n *LogNotifier) Notify(_ context.Context, recipient, approvalURL string) error {
	if n.logger != nil {
		n.logger.Info("approval notification", "recipient", recipient, "approval_url", approvalURL)
	}
	return nil
}
