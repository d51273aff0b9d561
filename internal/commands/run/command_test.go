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

package run

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/conductor-googleforms/internal/commands/shared"
	"github.com/tombee/conductor-googleforms/internal/integration/googleforms"
	"github.com/tombee/conductor-googleforms/internal/jq"
	"github.com/tombee/conductor-googleforms/internal/operation/api"
	"github.com/tombee/conductor-googleforms/internal/operation/transport"
)

// testRuntime builds a runtime whose integration talks to handler.
func testRuntime(t *testing.T, handler http.HandlerFunc, opts ...googleforms.Option) *shared.Runtime {
	t.Helper()

	upstream := httptest.NewServer(handler)
	t.Cleanup(upstream.Close)

	tr, err := transport.NewOAuth2Transport(&transport.OAuth2TransportConfig{
		Flow:        transport.FlowAccessToken,
		AccessToken: "test-token",
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]googleforms.Option{googleforms.WithLogger(logger)}, opts...)
	integration, err := googleforms.NewGoogleFormsIntegration(&api.ProviderConfig{Transport: tr, BaseURL: upstream.URL + "/v1"}, opts...)
	require.NoError(t, err)

	return &shared.Runtime{
		Logger:      logger,
		Integration: integration,
		JQ:          jq.NewExecutor(0, 0),
	}
}

func formsHandler(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	case strings.HasSuffix(r.URL.Path, "/missing"):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`)
	default:
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"formId":%q}`, strings.TrimPrefix(r.URL.Path, "/v1/forms/"))
	}
}

func TestNewCommand(t *testing.T) {
	cmd := NewCommand()

	assert.Equal(t, "run", cmd.Use)
	for _, flag := range []string{"items", "resource", "operation", "form-id", "response-id", "watch-id", "query", "body", "jq", "continue-on-fail"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "--%s flag not defined", flag)
	}
}

func TestRunCommand_RequiresItems(t *testing.T) {
	cmd := NewCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	var exitErr *shared.ExitError
	require.True(t, errors.As(err, &exitErr), "expected ExitError, got %v", err)
	assert.Equal(t, shared.ExitInvalidInput, exitErr.Code)
}

func TestExecute_RecordsInOrder(t *testing.T) {
	rt := testRuntime(t, formsHandler)
	items := []googleforms.Parameters{
		{Resource: googleforms.ResourceForms, Operation: "formsGet", FormID: "a", RequestBody: "{}"},
		{Resource: googleforms.ResourceFormWatches, Operation: "formWatchesDelete", FormID: "a", WatchID: "w", RequestBody: "{}"},
		{Resource: googleforms.ResourceForms, Operation: "formsGet", FormID: "b", RequestBody: "{}"},
	}

	var out bytes.Buffer
	require.NoError(t, execute(context.Background(), rt, items, "", &out))

	assert.JSONEq(t, `[
		{"json": {"formId": "a"}},
		{"Status Code": "204 No Content"},
		{"json": {"formId": "b"}}
	]`, out.String())
}

func TestExecute_JQFilter(t *testing.T) {
	rt := testRuntime(t, formsHandler)
	items := []googleforms.Parameters{
		{Resource: googleforms.ResourceForms, Operation: "formsGet", FormID: "a", RequestBody: "{}"},
		{Resource: googleforms.ResourceForms, Operation: "formsGet", FormID: "b", RequestBody: "{}"},
	}

	var out bytes.Buffer
	require.NoError(t, execute(context.Background(), rt, items, "[.[].json.formId]", &out))
	assert.JSONEq(t, `["a","b"]`, out.String())
}

func TestExecute_InvalidJQ(t *testing.T) {
	calls := 0
	rt := testRuntime(t, func(w http.ResponseWriter, r *http.Request) { calls++ })

	err := execute(context.Background(), rt, []googleforms.Parameters{googleforms.DefaultParameters()}, ".[", &bytes.Buffer{})

	var exitErr *shared.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, shared.ExitInvalidInput, exitErr.Code)
	assert.Equal(t, 0, calls, "no request may be sent for an invalid filter")
}

func TestExecute_FailFast(t *testing.T) {
	rt := testRuntime(t, formsHandler)
	items := []googleforms.Parameters{
		{Resource: googleforms.ResourceForms, Operation: "formsGet", FormID: "missing", RequestBody: "{}"},
		{Resource: googleforms.ResourceForms, Operation: "formsGet", FormID: "b", RequestBody: "{}"},
	}

	var out bytes.Buffer
	err := execute(context.Background(), rt, items, "", &out)

	var exitErr *shared.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, shared.ExitAPIError, exitErr.Code)
	assert.Contains(t, err.Error(), "Error calling Google Forms API")
	assert.Contains(t, err.Error(), "Requested entity was not found.")
	assert.Empty(t, out.String())
}

func TestExecute_ContinueOnFail(t *testing.T) {
	rt := testRuntime(t, formsHandler, googleforms.WithContinueOnFail(true))
	items := []googleforms.Parameters{
		{Resource: googleforms.ResourceForms, Operation: "formsGet", RequestBody: "{}"},
		{Resource: googleforms.ResourceForms, Operation: "formsGet", FormID: "b", RequestBody: "{}"},
	}

	var out bytes.Buffer
	require.NoError(t, execute(context.Background(), rt, items, "", &out))

	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Contains(t, records[0]["error"], "Form ID is required")
	assert.Equal(t, map[string]interface{}{"formId": "b"}, records[1]["json"])
}

func TestExecute_JSONErrorEnvelope(t *testing.T) {
	shared.SetJSONForTest(true)
	defer shared.ResetFlagsForTest()

	rt := testRuntime(t, formsHandler)
	items := []googleforms.Parameters{
		{Resource: googleforms.ResourceForms, Operation: "formsGet", RequestBody: "{}"},
	}

	var out bytes.Buffer
	err := execute(context.Background(), rt, items, "", &out)
	require.Error(t, err)

	var envelope struct {
		Success bool               `json:"success"`
		Errors  []shared.JSONError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &envelope))
	assert.False(t, envelope.Success)
	require.Len(t, envelope.Errors, 1)
	assert.Equal(t, shared.ErrorCodeMissingField, envelope.Errors[0].Code)
	require.NotNil(t, envelope.Errors[0].Item)
	assert.Equal(t, 0, *envelope.Errors[0].Item)
}
