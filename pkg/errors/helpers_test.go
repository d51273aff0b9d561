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

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type visibleErr struct{ suggestion string }

func (e *visibleErr) Error() string       { return "visible" }
func (e *visibleErr) IsUserVisible() bool { return true }
func (e *visibleErr) UserMessage() string { return "visible" }
func (e *visibleErr) Suggestion() string  { return e.suggestion }

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))

	base := New("boom")
	wrapped := Wrap(base, "loading config")
	assert.EqualError(t, wrapped, "loading config: boom")
	assert.True(t, Is(wrapped, base))

	assert.EqualError(t, Wrapf(base, "loading %s", "file.yaml"), "loading file.yaml: boom")
}

func TestChainAndTrace(t *testing.T) {
	root := New("connection refused")
	mid := fmt.Errorf("request failed: %w", root)
	top := fmt.Errorf("dispatch: %w", mid)

	assert.Equal(t, []string{
		"dispatch: request failed: connection refused",
		"request failed: connection refused",
		"connection refused",
	}, Chain(top))

	assert.Equal(t, "", Trace(root))
	assert.Equal(t,
		"dispatch: request failed: connection refused\n  caused by: request failed: connection refused\n  caused by: connection refused",
		Trace(top))
}

func TestSuggest(t *testing.T) {
	err := fmt.Errorf("outer: %w", &visibleErr{suggestion: "re-run with --verbose"})
	assert.Equal(t, "re-run with --verbose", Suggest(err))
	assert.Equal(t, "", Suggest(New("plain")))
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Key: "credential.client_id", Reason: "is required"}
	assert.EqualError(t, err, "config error at credential.client_id: is required")

	cause := New("no such file")
	err = &ConfigError{Reason: "failed to load", Cause: cause}
	assert.EqualError(t, err, "config error: failed to load: no such file")
	assert.True(t, Is(err, cause))
}

func TestValidationError(t *testing.T) {
	assert.EqualError(t, &ValidationError{Field: "formId", Message: "is required"},
		"validation failed on formId: is required")
	assert.EqualError(t, &ValidationError{Message: "bad input"}, "validation failed: bad input")
}
