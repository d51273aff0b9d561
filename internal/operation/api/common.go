// Package api provides common types and utilities for API integrations.
package api

import (
	"github.com/tombee/conductor-googleforms/internal/operation/transport"
)

// ProviderConfig holds configuration for API integrations.
type ProviderConfig struct {
	// Transport is the authenticated transport for making requests
	Transport transport.Transport

	// BaseURL is the API base URL
	BaseURL string
}

// OperationInfo provides metadata about an integration operation.
type OperationInfo struct {
	// Name is the operation identifier (e.g., "formsGet")
	Name string `json:"name"`

	// Description is a human-readable description
	Description string `json:"description"`

	// Category groups related operations (e.g., "forms", "formResponses")
	Category string `json:"category"`

	// Method is the HTTP method the operation issues
	Method string `json:"method,omitempty"`

	// Tags classify operations (e.g., "read", "write", "destructive")
	Tags []string `json:"tags,omitempty"`
}

// OperationSchema describes an operation's inputs and outputs.
type OperationSchema struct {
	// Description is a human-readable description
	Description string `json:"description"`

	// Parameters describes the operation inputs
	Parameters []ParameterInfo `json:"parameters"`

	// ResponseFields describes the response structure
	ResponseFields []ResponseFieldInfo `json:"responseFields,omitempty"`
}

// ParameterInfo describes an operation parameter.
type ParameterInfo struct {
	// Name is the parameter identifier
	Name string `json:"name"`

	// Type is the parameter type (string, integer, boolean, array, object)
	Type string `json:"type"`

	// Description is a human-readable description
	Description string `json:"description"`

	// Required indicates if the parameter is required
	Required bool `json:"required"`

	// Default is the default value (nil if no default)
	Default interface{} `json:"default,omitempty"`
}

// ResponseFieldInfo describes a response field.
type ResponseFieldInfo struct {
	// Name is the field identifier
	Name string `json:"name"`

	// Type is the field type (string, integer, boolean, array, object)
	Type string `json:"type"`

	// Description is a human-readable description
	Description string `json:"description"`
}

// TypedProvider exposes operation metadata alongside execution.
type TypedProvider interface {
	// Operations returns the list of available operations with metadata.
	Operations() []OperationInfo

	// OperationSchema returns the operation description and parameter information.
	// Returns nil if the operation doesn't exist.
	OperationSchema(operation string) *OperationSchema
}
