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
	"net/http"

	"github.com/tombee/conductor-googleforms/internal/integration/googleforms"
	"github.com/tombee/conductor-googleforms/internal/operation"
)

// Error codes for structured JSON output
const (
	// Parameter errors (E001-E099)
	ErrorCodeMissingField = "E001" // Missing required identifier
	ErrorCodeInvalidBody  = "E002" // Request body is not valid JSON
	ErrorCodeInvalidInput = "E003" // Malformed items file or flags

	// API errors (E100-E199)
	ErrorCodeUpstream = "E101" // Google Forms API rejected the request
	ErrorCodeAuth     = "E102" // Missing or rejected credentials
	ErrorCodeNotFound = "E103" // Form, response or watch not found

	// Configuration errors (E200-E299)
	ErrorCodeInvalidConfig = "E201" // Invalid configuration file or value

	// Internal errors (E400-E499)
	ErrorCodeExecutionFailed = "E403" // Execution failed
)

// ErrorCodeFor maps an error to its JSON error code.
func ErrorCodeFor(err error) string {
	var (
		validation *googleforms.ValidationError
		body       *googleforms.BodyParseError
		upstream   *googleforms.UpstreamError
		opErr      *operation.Error
		exitErr    *ExitError
	)

	switch {
	case errors.As(err, &validation):
		return ErrorCodeMissingField
	case errors.As(err, &body):
		return ErrorCodeInvalidBody
	case errors.As(err, &opErr) && opErr.Type == operation.ErrorTypeAuth:
		return ErrorCodeAuth
	case errors.As(err, &upstream) && upstream.StatusCode == http.StatusNotFound:
		return ErrorCodeNotFound
	case errors.As(err, &upstream):
		return ErrorCodeUpstream
	case errors.As(err, &exitErr):
		return mapExitErrorToCode(exitErr)
	default:
		return ErrorCodeExecutionFailed
	}
}

// mapExitErrorToCode maps ExitError codes to JSON error codes
func mapExitErrorToCode(exitErr *ExitError) string {
	switch exitErr.Code {
	case ExitInvalidInput:
		return ErrorCodeInvalidInput
	case ExitConfigError:
		return ErrorCodeInvalidConfig
	case ExitAPIError:
		return ErrorCodeUpstream
	default:
		return ErrorCodeExecutionFailed
	}
}
