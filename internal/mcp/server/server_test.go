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

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/conductor-googleforms/internal/integration/googleforms"
	"github.com/tombee/conductor-googleforms/internal/operation"
	"github.com/tombee/conductor-googleforms/internal/operation/api"
	"github.com/tombee/conductor-googleforms/internal/operation/transport"
)

type toolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type rpcResponse struct {
	Result struct {
		Tools []struct {
			Name        string                 `json:"name"`
			InputSchema map[string]interface{} `json:"inputSchema"`
			Annotations map[string]interface{} `json:"annotations"`
		} `json:"tools"`
		Content []toolContent `json:"content"`
		IsError bool          `json:"isError"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// send dispatches one JSON-RPC message to the server in-process.
func send(t *testing.T, s *Server, method string, params interface{}) rpcResponse {
	t.Helper()
	msg := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	reply := s.MCPServer().HandleMessage(context.Background(), raw)
	data, err := json.Marshal(reply)
	require.NoError(t, err)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	require.Nil(t, resp.Error, "unexpected JSON-RPC error")
	return resp
}

func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) rpcResponse {
	t.Helper()
	return send(t, s, "tools/call", map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
}

// newTestServer builds a server over a registry holding one integration.
// A nil handler leaves the integration without credentials.
func newTestServer(t *testing.T, handler http.HandlerFunc) (*Server, *bytes.Buffer) {
	t.Helper()

	cfg := &api.ProviderConfig{}
	if handler != nil {
		upstream := httptest.NewServer(handler)
		t.Cleanup(upstream.Close)

		tr, err := transport.NewOAuth2Transport(&transport.OAuth2TransportConfig{
			Flow:        transport.FlowAccessToken,
			AccessToken: "test-token",
		})
		require.NoError(t, err)
		cfg = &api.ProviderConfig{Transport: tr, BaseURL: upstream.URL + "/v1"}
	}

	integration, err := googleforms.NewGoogleFormsIntegration(cfg)
	require.NoError(t, err)

	registry := operation.NewRegistry()
	registry.Register(googleforms.ConnectorName, integration)

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s, err := NewServer(ServerConfig{Version: "1.0.0", Logger: logger, Registry: registry})
	require.NoError(t, err)
	return s, &logs
}

func TestCreateLogger_ValidLevels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"info level", "info", slog.LevelInfo},
		{"warn level", "warn", slog.LevelWarn},
		{"error level", "error", slog.LevelError},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := createLogger(tt.level)
			if err != nil {
				t.Fatalf("createLogger(%q) returned error: %v", tt.level, err)
			}
			if !logger.Enabled(context.Background(), tt.expected) {
				t.Errorf("logger not enabled for level %v", tt.expected)
			}
		})
	}
}

func TestCreateLogger_InvalidLevel(t *testing.T) {
	for _, level := range []string{"invalid", "1", "verbose"} {
		t.Run(level, func(t *testing.T) {
			logger, err := createLogger(level)
			if err == nil {
				t.Errorf("createLogger(%q) should return error, got nil", level)
			}
			if logger != nil {
				t.Errorf("createLogger(%q) should return nil logger on error", level)
			}
		})
	}
}

func TestNewServer_Defaults(t *testing.T) {
	s, err := NewServer(ServerConfig{Registry: operation.NewRegistry()})
	require.NoError(t, err)
	assert.Equal(t, "conductor-googleforms", s.name)
	assert.Equal(t, "dev", s.version)
}

func TestNewServer_RequiresRegistry(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry is required")
}

func TestNewServer_InvalidLogLevel(t *testing.T) {
	_, err := NewServer(ServerConfig{LogLevel: "loud", Registry: operation.NewRegistry()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestToolsList(t *testing.T) {
	s, _ := newTestServer(t, nil)

	resp := send(t, s, "tools/list", nil)

	byName := map[string]int{}
	for i, tool := range resp.Result.Tools {
		byName[tool.Name] = i
	}
	assert.Len(t, resp.Result.Tools, len(googleforms.OperationSpecs())+1)
	assert.Contains(t, byName, DescribeToolName)

	for _, spec := range googleforms.OperationSpecs() {
		i, ok := byName[spec.Name]
		if !assert.True(t, ok, "missing tool %s", spec.Name) {
			continue
		}
		tool := resp.Result.Tools[i]

		props, _ := tool.InputSchema["properties"].(map[string]interface{})
		for _, field := range spec.Required {
			assert.Contains(t, props, field, "%s schema", spec.Name)
		}
		_, hasBody := props[googleforms.ParamRequestBody]
		assert.Equal(t, spec.Body, hasBody, "%s requestBody", spec.Name)
		assert.Equal(t, spec.Method == http.MethodGet, tool.Annotations["readOnlyHint"], "%s readOnlyHint", spec.Name)
	}

	required, _ := resp.Result.Tools[byName["formResponsesGet"]].InputSchema["required"].([]interface{})
	assert.Equal(t, []interface{}{"formId", "responseId"}, required)
}

func TestCallTool_FormsGet(t *testing.T) {
	var gotPath, gotAuth string
	s, logs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"formId":"abc","info":{"title":"Survey"}}`)
	})

	resp := callTool(t, s, "formsGet", map[string]interface{}{"formId": "abc"})

	require.False(t, resp.Result.IsError, "tool returned error: %+v", resp.Result.Content)
	require.Len(t, resp.Result.Content, 1)
	assert.Equal(t, "/v1/forms/abc", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)

	var record struct {
		JSON map[string]interface{} `json:"json"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Content[0].Text), &record))
	assert.Equal(t, "abc", record.JSON["formId"])

	assert.Contains(t, logs.String(), "tool call received")
	assert.Contains(t, logs.String(), "tool call completed")
}

func TestCallTool_ValidationError(t *testing.T) {
	calls := 0
	s, logs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	resp := callTool(t, s, "formWatchesDelete", map[string]interface{}{"formId": "abc"})

	require.True(t, resp.Result.IsError)
	require.Len(t, resp.Result.Content, 1)
	assert.Contains(t, resp.Result.Content[0].Text, "Watch ID")
	assert.Equal(t, 0, calls)
	assert.Contains(t, logs.String(), "tool call failed")
}

func TestCallTool_MissingCredentials(t *testing.T) {
	s, _ := newTestServer(t, nil)

	resp := callTool(t, s, "formsGet", map[string]interface{}{"formId": "abc"})

	require.True(t, resp.Result.IsError)
	text := resp.Result.Content[0].Text
	assert.Contains(t, text, "Missing Google Forms API Credentials")
	assert.Contains(t, text, "Suggestion:")
}

func TestCallTool_Describe(t *testing.T) {
	s, _ := newTestServer(t, nil)

	resp := callTool(t, s, DescribeToolName, map[string]interface{}{})

	require.False(t, resp.Result.IsError)
	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Content[0].Text), &payload))
	for _, key := range []string{"node", "credential", "parameters", "connectors"} {
		assert.Contains(t, payload, key)
	}
	assert.True(t, strings.Contains(string(payload["connectors"]), googleforms.ConnectorName))
}

func TestFormatResponse(t *testing.T) {
	assert.Equal(t, "Operation completed successfully", formatResponse(nil).Content[0].(mcp.TextContent).Text)
	assert.Equal(t, "plain", formatResponse("plain").Content[0].(mcp.TextContent).Text)
	assert.JSONEq(t, `{"Status Code":"204 No Content"}`, formatResponse(map[string]interface{}{"Status Code": "204 No Content"}).Content[0].(mcp.TextContent).Text)
}
