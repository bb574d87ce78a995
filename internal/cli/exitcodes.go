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
	stderrors "errors"
	"fmt"
	"os"

	pkgerrors "github.com/tombarlow/stepwise/pkg/errors"
)

// Exit codes for the stepwise CLI. Chosen to be distinguishable by a caller
// scripting against the binary, not merely "zero or nonzero".
const (
	ExitSuccess         = 0
	ExitExecutionFailed = 1
	ExitInvalidWorkflow = 2
	ExitMissingInput    = 3
	ExitProviderError   = 4
	ExitNotFound        = 5
	ExitConflict        = 6
)

// ExitError is an error that carries the process exit code it should
// produce, so command handlers can return a plain error and let main map
// it to the right code.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Cause }

// NewInvalidWorkflowError wraps a workflow-file parsing/validation failure.
func NewInvalidWorkflowError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitInvalidWorkflow, Message: msg, Cause: cause}
}

// NewMissingInputError wraps a missing required run-input failure.
func NewMissingInputError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitMissingInput, Message: msg, Cause: cause}
}

// ClassifyEngineError maps a pkg/errors class to a CLI exit code, so the
// same orchestrator error surfaces a consistent code across run/resume.
func ClassifyEngineError(err error) *ExitError {
	var notFound *pkgerrors.NotFoundError
	if stderrors.As(err, &notFound) {
		return &ExitError{Code: ExitNotFound, Message: "not found", Cause: err}
	}
	var conflict *pkgerrors.ConflictError
	if stderrors.As(err, &conflict) {
		return &ExitError{Code: ExitConflict, Message: "conflict", Cause: err}
	}
	var validation *pkgerrors.ValidationError
	if stderrors.As(err, &validation) {
		return &ExitError{Code: ExitInvalidWorkflow, Message: "validation failed", Cause: err}
	}
	var timeout *pkgerrors.TimeoutError
	if stderrors.As(err, &timeout) {
		return &ExitError{Code: ExitProviderError, Message: "provider timeout", Cause: err}
	}
	return &ExitError{Code: ExitExecutionFailed, Message: "execution failed", Cause: err}
}

// HandleExitError prints err to stderr and exits with its carried code, or,
// for any other error, with the code ClassifyEngineError maps it to. A nil
// err is a no-op.
func HandleExitError(err error) {
	if err == nil {
		return
	}

	var exitErr *ExitError
	if !stderrors.As(err, &exitErr) {
		exitErr = ClassifyEngineError(err)
	}

	fmt.Fprintln(os.Stderr, "Error:", exitErr.Error())
	printSuggestion(err)
	os.Exit(exitErr.Code)
}

func printSuggestion(err error) {
	for err != nil {
		if userErr, ok := err.(pkgerrors.UserVisibleError); ok {
			if userErr.IsUserVisible() {
				if s := userErr.Suggestion(); s != "" {
					fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", s)
				}
			}
			return
		}
		err = stderrors.Unwrap(err)
	}
}
