// Package operation provides the shared framework for integration operations.
//
// An integration (internal/integration) is a Connector: a named client for an
// external service that executes named operations against it. The framework
// provides:
//   - The Connector interface and the Result type returned by operations
//   - A Registry for looking up connectors and executing "connector.operation" references
//   - Classified errors with suggestions for CLI and MCP surfaces
//
// Protocol concerns (OAuth2, retries, timeouts) live in the transport
// subpackage; shared request helpers for HTTP APIs live in the api subpackage.
package operation
