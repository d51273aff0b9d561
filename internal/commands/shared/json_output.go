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
	"encoding/json"
	"io"

	"github.com/tombee/conductor-googleforms/internal/integration/googleforms"
	pkgerrors "github.com/tombee/conductor-googleforms/pkg/errors"
)

// JSONResponse is the base envelope for JSON output
type JSONResponse struct {
	Version string `json:"@version"`
	Command string `json:"command"`
	Success bool   `json:"success"`
}

// JSONError represents a structured error with code, message and suggestion
type JSONError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
	Item       *int   `json:"item,omitempty"`
}

// EmitJSON writes v as indented JSON to w.
func EmitJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// EmitJSONError writes a failed-command envelope describing err.
func EmitJSONError(w io.Writer, command string, err error) error {
	type errorResponse struct {
		JSONResponse
		Errors []JSONError `json:"errors"`
	}

	resp := errorResponse{
		JSONResponse: JSONResponse{
			Version: "1.0",
			Command: command,
			Success: false,
		},
		Errors: []JSONError{NewJSONError(err)},
	}

	return EmitJSON(w, resp)
}

// NewJSONError converts err into its structured form.
func NewJSONError(err error) JSONError {
	je := JSONError{
		Code:       ErrorCodeFor(err),
		Message:    err.Error(),
		Suggestion: pkgerrors.Suggest(err),
	}

	var uve pkgerrors.UserVisibleError
	if pkgerrors.As(err, &uve) && uve.IsUserVisible() {
		je.Message = uve.UserMessage()
	}

	var nodeErr *googleforms.NodeAPIError
	if pkgerrors.As(err, &nodeErr) {
		item := nodeErr.Item
		je.Item = &item
	}

	return je
}
