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

package shared

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tombee/conductor-googleforms/internal/integration/googleforms"
	pkgerrors "github.com/tombee/conductor-googleforms/pkg/errors"
)

// Exit codes for conductor-googleforms commands
const (
	ExitSuccess         = 0
	ExitExecutionFailed = 1
	ExitInvalidInput    = 2
	ExitConfigError     = 3
	ExitAPIError        = 4
)

// ExitError is an error that carries an exit code
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

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewExecutionError creates an error for unexpected execution failures
func NewExecutionError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitExecutionFailed,
		Message: msg,
		Cause:   cause,
	}
}

// NewInvalidInputError creates an error for malformed items or flags
func NewInvalidInputError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitInvalidInput,
		Message: msg,
		Cause:   cause,
	}
}

// NewConfigError creates an error for configuration and credential problems
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitConfigError,
		Message: msg,
		Cause:   cause,
	}
}

// NewAPIError creates an error for failed Google Forms API calls
func NewAPIError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitAPIError,
		Message: msg,
		Cause:   cause,
	}
}

// ClassifyRunError wraps a batch failure in an ExitError whose code reflects
// the failure class: parameter problems are invalid input, everything the
// API or transport rejected is an API error.
func ClassifyRunError(err error) *ExitError {
	var (
		exitErr    *ExitError
		validation *googleforms.ValidationError
		body       *googleforms.BodyParseError
		upstream   *googleforms.UpstreamError
	)
	switch {
	case errors.As(err, &exitErr):
		return exitErr
	case errors.As(err, &validation), errors.As(err, &body):
		return &ExitError{Code: ExitInvalidInput, Message: "invalid parameters", Cause: err}
	case errors.As(err, &upstream):
		return &ExitError{Code: ExitAPIError, Message: "request failed", Cause: err}
	default:
		return &ExitError{Code: ExitExecutionFailed, Message: "execution failed", Cause: err}
	}
}

// HandleExitError checks if an error is an ExitError and exits with the appropriate code
func HandleExitError(err error) {
	if err == nil {
		return
	}
	os.Exit(reportError(os.Stderr, err))
}

// reportError prints err and its suggestion to w and returns the exit code.
func reportError(w io.Writer, err error) int {
	code := ExitExecutionFailed

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.Code
	}

	if msg := err.Error(); msg != "" {
		fmt.Fprintln(w, "Error:", msg)
	}

	if suggestion := pkgerrors.Suggest(err); suggestion != "" {
		fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
	}

	return code
}
