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

package errors

// Class is one of the five error categories the engine surfaces to callers.
// An external HTTP layer (out of scope here) maps these to status codes:
// NotFound->404, Conflict->409, Invalid->400, Timeout->504, Security->400.
type Class string

const (
	ClassNotFound Class = "not_found"
	ClassConflict Class = "conflict"
	ClassInvalid  Class = "invalid"
	ClassTimeout  Class = "timeout"
	ClassSecurity Class = "security"
)

func (e *NotFoundError) ErrorType() string { return string(ClassNotFound) }
func (e *NotFoundError) IsRetryable() bool { return false }

func (e *ConflictError) ErrorType() string { return string(ClassConflict) }
func (e *ConflictError) IsRetryable() bool { return false }

func (e *ValidationError) ErrorType() string { return string(ClassInvalid) }
func (e *ValidationError) IsRetryable() bool { return false }

func (e *TimeoutError) ErrorType() string { return string(ClassTimeout) }
func (e *TimeoutError) IsRetryable() bool { return true }

func (e *SecurityError) ErrorType() string { return string(ClassSecurity) }
func (e *SecurityError) IsRetryable() bool { return false }

func (e *NameError) ErrorType() string { return string(ClassInvalid) }
func (e *NameError) IsRetryable() bool { return false }

// ClassOf classifies an error into one of the five engine error classes.
// It returns ("", false) for errors that don't implement ErrorClassifier,
// which the caller should treat as an unclassified internal error.
func ClassOf(err error) (Class, bool) {
	classifier, ok := err.(ErrorClassifier)
	if !ok {
		return "", false
	}
	return Class(classifier.ErrorType()), true
}
