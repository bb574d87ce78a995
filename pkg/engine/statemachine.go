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

import "github.com/tombarlow/stepwise/pkg/errors"

// transitions enumerates every Run.status edge this engine allows. Anything
// not listed here is forbidden and surfaces as *errors.ConflictError, per
// spec.md §9's "guard every transition by canTransition" design note.
var transitions = map[RunStatus]map[RunStatus]bool{
	RunStatusRunning: {
		RunStatusRunning:   true, // advance loop looping within one run
		RunStatusWaiting:   true,
		RunStatusCompleted: true,
		RunStatusFailed:    true,
		RunStatusCanceled:  true,
	},
	RunStatusWaiting: {
		RunStatusRunning:  true, // resume
		RunStatusFailed:   true,
		RunStatusCanceled: true,
	},
	RunStatusCompleted: {},
	RunStatusFailed:    {},
	RunStatusCanceled:  {},
}

// canTransition reports whether a Run may move from `from` to `to`.
func canTransition(from, to RunStatus) bool {
	if from == to {
		return from == RunStatusRunning
	}
	edges, ok := transitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// guardTransition returns *errors.ConflictError if the transition is not
// permitted, nil otherwise.
func guardTransition(runID string, from, to RunStatus) error {
	if canTransition(from, to) {
		return nil
	}
	return &errors.ConflictError{
		Resource: "run",
		ID:       runID,
		Reason:   "cannot transition from " + string(from) + " to " + string(to),
	}
}
