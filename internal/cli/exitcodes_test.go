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
	"errors"
	"testing"

	pkgerrors "github.com/tombarlow/stepwise/pkg/errors"
)

func TestClassifyEngineError_NotFound(t *testing.T) {
	err := &pkgerrors.NotFoundError{Resource: "run", ID: "r1"}
	exitErr := ClassifyEngineError(err)
	if exitErr.Code != ExitNotFound {
		t.Fatalf("expected ExitNotFound, got %d", exitErr.Code)
	}
}

func TestClassifyEngineError_Conflict(t *testing.T) {
	err := &pkgerrors.ConflictError{Resource: "workflow", ID: "w1", Reason: "already exists"}
	exitErr := ClassifyEngineError(err)
	if exitErr.Code != ExitConflict {
		t.Fatalf("expected ExitConflict, got %d", exitErr.Code)
	}
}

func TestClassifyEngineError_Validation(t *testing.T) {
	err := &pkgerrors.ValidationError{Field: "id", Message: "required"}
	exitErr := ClassifyEngineError(err)
	if exitErr.Code != ExitInvalidWorkflow {
		t.Fatalf("expected ExitInvalidWorkflow, got %d", exitErr.Code)
	}
}

func TestClassifyEngineError_Unknown(t *testing.T) {
	err := errors.New("boom")
	exitErr := ClassifyEngineError(err)
	if exitErr.Code != ExitExecutionFailed {
		t.Fatalf("expected ExitExecutionFailed, got %d", exitErr.Code)
	}
}

func TestExitError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	exitErr := &ExitError{Code: ExitInvalidWorkflow, Message: "bad workflow", Cause: cause}

	if got := exitErr.Error(); got != "bad workflow: underlying" {
		t.Fatalf("unexpected message: %q", got)
	}
	if !errors.Is(exitErr, cause) {
		t.Fatalf("expected errors.Is to unwrap to cause")
	}
}

func TestExitError_ErrorWithoutCause(t *testing.T) {
	exitErr := &ExitError{Code: ExitMissingInput, Message: "missing input"}
	if got := exitErr.Error(); got != "missing input" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestNewInvalidWorkflowError(t *testing.T) {
	exitErr := NewInvalidWorkflowError("bad file", errors.New("parse error"))
	if exitErr.Code != ExitInvalidWorkflow {
		t.Fatalf("expected ExitInvalidWorkflow, got %d", exitErr.Code)
	}
}

func TestNewMissingInputError(t *testing.T) {
	exitErr := NewMissingInputError("missing field", nil)
	if exitErr.Code != ExitMissingInput {
		t.Fatalf("expected ExitMissingInput, got %d", exitErr.Code)
	}
}
