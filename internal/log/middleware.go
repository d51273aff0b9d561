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

package log

import (
	"context"
	"log/slog"
	"time"
)

// ToolCall describes one MCP tool invocation for logging purposes.
type ToolCall struct {
	// Tool is the invoked tool (operation) name.
	Tool string

	// RequestID identifies the call.
	RequestID string

	// Metadata contains additional call metadata.
	Metadata map[string]interface{}
}

// ToolResult describes the outcome of a tool invocation.
type ToolResult struct {
	// Success indicates whether the call succeeded.
	Success bool

	// Error is the error message if the call failed.
	Error string

	// DurationMs is the duration of the call in milliseconds.
	DurationMs int64
}

// LogToolCall logs an incoming tool call.
func LogToolCall(logger *slog.Logger, call *ToolCall) {
	attrs := []any{
		EventKey, "tool_call",
		"tool", call.Tool,
	}

	if call.RequestID != "" {
		attrs = append(attrs, "request_id", call.RequestID)
	}

	for k, v := range call.Metadata {
		attrs = append(attrs, k, v)
	}

	logger.Info("tool call received", attrs...)
}

// LogToolResult logs the outcome of a tool call.
func LogToolResult(logger *slog.Logger, call *ToolCall, result *ToolResult) {
	attrs := []any{
		EventKey, "tool_result",
		"tool", call.Tool,
		"success", result.Success,
		DurationKey, result.DurationMs,
	}

	if call.RequestID != "" {
		attrs = append(attrs, "request_id", call.RequestID)
	}

	level := slog.LevelInfo
	message := "tool call completed"

	if !result.Success {
		attrs = append(attrs, "error", result.Error)
		level = slog.LevelError
		message = "tool call failed"
	}

	logger.Log(context.Background(), level, message, attrs...)
}

// ToolMiddleware wraps tool handlers with call/result logging.
type ToolMiddleware struct {
	logger *slog.Logger
}

// NewToolMiddleware creates a new tool logging middleware.
func NewToolMiddleware(logger *slog.Logger) *ToolMiddleware {
	return &ToolMiddleware{
		logger: logger,
	}
}

// Handler runs handler, logging the call when it arrives and the result when it completes.
func (m *ToolMiddleware) Handler(call *ToolCall, handler func() error) error {
	start := time.Now()

	LogToolCall(m.logger, call)

	err := handler()

	result := &ToolResult{
		Success:    err == nil,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Error = err.Error()
	}

	LogToolResult(m.logger, call, result)

	return err
}
