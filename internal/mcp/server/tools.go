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
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tombee/conductor-googleforms/internal/integration/googleforms"
	"github.com/tombee/conductor-googleforms/internal/log"
	conductorerrors "github.com/tombee/conductor-googleforms/pkg/errors"
)

// DescribeToolName is the tool returning the node description.
const DescribeToolName = "googleforms_describe"

// operationTool builds the MCP tool for one operation from its input schema.
func operationTool(spec googleforms.OperationSpec) (mcp.Tool, error) {
	schema, ok := googleforms.OperationInputSchema(spec.Name)
	if !ok {
		return mcp.Tool{}, fmt.Errorf("no input schema")
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("marshal input schema: %w", err)
	}

	var decoded struct {
		Properties map[string]interface{} `json:"properties"`
		Required   []string               `json:"required"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return mcp.Tool{}, fmt.Errorf("decode input schema: %w", err)
	}

	return mcp.Tool{
		Name:        spec.Name,
		Description: fmt.Sprintf("%s (%s %s)", spec.Description, spec.Method, spec.Path),
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: decoded.Properties,
			Required:   decoded.Required,
		},
		Annotations: mcp.ToolAnnotation{
			Title:           spec.DisplayName,
			ReadOnlyHint:    mcp.ToBoolPtr(spec.Method == http.MethodGet),
			DestructiveHint: mcp.ToBoolPtr(spec.Method == http.MethodDelete),
			OpenWorldHint:   mcp.ToBoolPtr(true),
		},
	}, nil
}

// operationHandler routes a tool call to the registry.
func (s *Server) operationHandler(op string) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reference := googleforms.ConnectorName + "." + op

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}

		call := &log.ToolCall{
			Tool:      op,
			RequestID: uuid.NewString(),
			Metadata: map[string]interface{}{
				"reference": reference,
			},
		}

		var response interface{}
		err := s.middleware.Handler(call, func() error {
			result, err := s.registry.Execute(ctx, reference, args)
			if err != nil {
				return err
			}
			response = result.GetResponse()
			return nil
		})
		if err != nil {
			return errorResponse(formatError(err)), nil
		}

		return formatResponse(response), nil
	}
}

func (s *Server) handleDescribe(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload := map[string]interface{}{
		"node":       googleforms.Describe(),
		"credential": googleforms.Credential(),
		"parameters": googleforms.ParameterSchema(),
		"connectors": s.registry.List(),
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errorResponse(fmt.Sprintf("Failed to encode description: %v", err)), nil
	}
	return textResponse(string(data)), nil
}

// formatResponse renders an operation response as tool text.
func formatResponse(response interface{}) *mcp.CallToolResult {
	if response == nil {
		return textResponse("Operation completed successfully")
	}

	if s, ok := response.(string); ok {
		return textResponse(s)
	}

	data, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return textResponse(fmt.Sprintf("%v", response))
	}
	return textResponse(string(data))
}

// formatError renders the user-facing message and suggestion of err.
func formatError(err error) string {
	msg := err.Error()

	var uve conductorerrors.UserVisibleError
	if conductorerrors.As(err, &uve) && uve.IsUserVisible() {
		msg = uve.UserMessage()
	}

	if suggestion := conductorerrors.Suggest(err); suggestion != "" {
		msg = fmt.Sprintf("%s\n\nSuggestion: %s", msg, suggestion)
	}
	return msg
}
