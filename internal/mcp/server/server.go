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

// Package server implements an MCP server that exposes the Google Forms
// operations as tools.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tombee/conductor-googleforms/internal/integration/googleforms"
	"github.com/tombee/conductor-googleforms/internal/log"
	"github.com/tombee/conductor-googleforms/internal/operation"
)

// OperationRegistry executes "connector.operation" references.
type OperationRegistry interface {
	Execute(ctx context.Context, reference string, inputs map[string]interface{}) (*operation.Result, error)
	List() []string
}

// Server wraps the MCP server and provides the Google Forms tools
type Server struct {
	mcpServer  *server.MCPServer
	name       string
	version    string
	registry   OperationRegistry
	logger     *slog.Logger
	middleware *log.ToolMiddleware
}

// ServerConfig configures the MCP server
type ServerConfig struct {
	// Name is the server name (default: "conductor-googleforms")
	Name string

	// Version is the server version
	Version string

	// LogLevel controls logging verbosity when Logger is nil
	// (trace, debug, info, warn, error)
	LogLevel string

	// Logger overrides the default stderr logger.
	Logger *slog.Logger

	// Registry executes the operations behind each tool. Required.
	Registry OperationRegistry
}

// createLogger creates a logger with the specified log level.
// Writes to stderr to avoid interfering with MCP stdio protocol.
func createLogger(levelStr string) (*slog.Logger, error) {
	if levelStr == "" {
		levelStr = "info"
	}
	if !log.ValidLevel(levelStr) {
		return nil, fmt.Errorf("invalid log level: %s (must be trace, debug, info, warn, or error)", levelStr)
	}

	return log.New(&log.Config{
		Level:  levelStr,
		Format: log.FormatText,
		Output: os.Stderr,
	}), nil
}

// NewServer creates a new MCP server instance
func NewServer(config ServerConfig) (*Server, error) {
	if config.Name == "" {
		config.Name = "conductor-googleforms"
	}
	if config.Version == "" {
		config.Version = "dev"
	}
	if config.Registry == nil {
		return nil, fmt.Errorf("operation registry is required")
	}

	logger := config.Logger
	if logger == nil {
		var err error
		logger, err = createLogger(config.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}
	logger = log.WithComponent(logger, "mcp")

	s := &Server{
		mcpServer:  server.NewMCPServer(config.Name, config.Version, server.WithToolCapabilities(false)),
		name:       config.Name,
		version:    config.Version,
		registry:   config.Registry,
		logger:     logger,
		middleware: log.NewToolMiddleware(logger),
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// registerTools registers the catalogue tool and one tool per operation.
func (s *Server) registerTools() error {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        DescribeToolName,
		Description: "Describe the Google Forms node: resources, operations, parameters and the credential it requires.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
		Annotations: mcp.ToolAnnotation{
			ReadOnlyHint: mcp.ToBoolPtr(true),
		},
	}, s.handleDescribe)

	for _, spec := range googleforms.OperationSpecs() {
		tool, err := operationTool(spec)
		if err != nil {
			return fmt.Errorf("tool %s: %w", spec.Name, err)
		}
		s.mcpServer.AddTool(tool, s.operationHandler(spec.Name))
	}

	return nil
}

// Run starts the MCP server using stdio transport
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server",
		slog.String("name", s.name),
		slog.String("version", s.version),
		slog.Int("tools", len(googleforms.OperationSpecs())+1),
	)

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}

	return nil
}

// MCPServer exposes the underlying server, mainly for in-process transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Helper function to create error response
func errorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

// Helper function to create success response
func textResponse(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}
