package operation

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tombee/conductor-googleforms/internal/operation/transport"
)

// ErrorType classifies operation errors for appropriate handling.
type ErrorType string

const (
	// ErrorTypeAuth indicates authentication or authorization failure (401, 403)
	ErrorTypeAuth ErrorType = "auth_error"

	// ErrorTypeNotFound indicates resource not found (404)
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeValidation indicates invalid request data (400, 422)
	ErrorTypeValidation ErrorType = "validation_error"

	// ErrorTypeRateLimit indicates rate limit exceeded (429)
	ErrorTypeRateLimit ErrorType = "rate_limited"

	// ErrorTypeServer indicates server-side error (500, 502, 503, 504)
	ErrorTypeServer ErrorType = "server_error"

	// ErrorTypeTimeout indicates operation timeout
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeConnection indicates network/DNS error
	ErrorTypeConnection ErrorType = "connection_error"

	// ErrorTypeCancelled indicates the caller cancelled the operation
	ErrorTypeCancelled ErrorType = "cancelled"
)

// Error represents an operation execution error with classification.
type Error struct {
	// Type classifies the error
	Type ErrorType

	// Message is the human-readable error description
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// SuggestText provides guidance on how to resolve the error.
	// Named to avoid conflict with the Suggestion() method.
	SuggestText string

	// RequestID from the external service
	RequestID string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("OperationError: %s", e.Message)

	if e.Type != "" {
		msg = fmt.Sprintf("%s (type: %s)", msg, e.Type)
	}

	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s [HTTP %d]", msg, e.StatusCode)
	}

	if e.RequestID != "" {
		msg = fmt.Sprintf("%s (request-id: %s)", msg, e.RequestID)
	}

	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}

	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorType implements pkg/errors.ErrorClassifier.
func (e *Error) ErrorType() string {
	return string(e.Type)
}

// IsRetryable returns true if this error type could succeed on a later attempt.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeServer, ErrorTypeTimeout, ErrorTypeConnection:
		return true
	default:
		return false
	}
}

// IsUserVisible implements pkg/errors.UserVisibleError.
func (e *Error) IsUserVisible() bool {
	return true
}

// UserMessage implements pkg/errors.UserVisibleError.
func (e *Error) UserMessage() string {
	return e.Message
}

// Suggestion implements pkg/errors.UserVisibleError.
func (e *Error) Suggestion() string {
	return e.SuggestText
}

// ClassifyHTTPError classifies an HTTP status code into an error type.
func ClassifyHTTPError(statusCode int) ErrorType {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return ErrorTypeAuth
	case statusCode == http.StatusNotFound:
		return ErrorTypeNotFound
	case statusCode == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case statusCode >= 500:
		return ErrorTypeServer
	default:
		return ErrorTypeValidation
	}
}

// ErrorFromHTTPStatus creates an Error from an HTTP status.
// The response body is not included in the message; callers log it separately.
func ErrorFromHTTPStatus(statusCode int, statusText, requestID string) *Error {
	errType := ClassifyHTTPError(statusCode)

	err := &Error{
		Type:       errType,
		StatusCode: statusCode,
		Message:    fmt.Sprintf("%d %s", statusCode, statusText),
		RequestID:  requestID,
	}
	err.SuggestText = suggestionFor(errType)

	return err
}

// FromTransportError converts a transport failure into a classified operation error.
// Errors that are not transport errors are returned as connection errors.
func FromTransportError(err error) *Error {
	var te *transport.TransportError
	if !errors.As(err, &te) {
		return &Error{
			Type:        ErrorTypeConnection,
			Message:     "request failed",
			Cause:       err,
			SuggestText: suggestionFor(ErrorTypeConnection),
		}
	}

	var errType ErrorType
	switch te.Type {
	case transport.ErrorTypeAuth:
		errType = ErrorTypeAuth
	case transport.ErrorTypeRateLimit:
		errType = ErrorTypeRateLimit
	case transport.ErrorTypeServer:
		errType = ErrorTypeServer
	case transport.ErrorTypeTimeout:
		errType = ErrorTypeTimeout
	case transport.ErrorTypeCancelled:
		errType = ErrorTypeCancelled
	case transport.ErrorTypeConnection:
		errType = ErrorTypeConnection
	default:
		if te.StatusCode != 0 {
			opErr := ErrorFromHTTPStatus(te.StatusCode, http.StatusText(te.StatusCode), te.RequestID)
			opErr.Cause = err
			return opErr
		}
		errType = ErrorTypeValidation
	}

	return &Error{
		Type:        errType,
		Message:     te.Message,
		StatusCode:  te.StatusCode,
		RequestID:   te.RequestID,
		Cause:       err,
		SuggestText: suggestionFor(errType),
	}
}

func suggestionFor(errType ErrorType) string {
	switch errType {
	case ErrorTypeAuth:
		return "Check authentication credentials and granted scopes"
	case ErrorTypeNotFound:
		return "Verify the resource exists and the identifiers are correct"
	case ErrorTypeValidation:
		return "Check request inputs against the operation schema. See logs for details"
	case ErrorTypeRateLimit:
		return "Wait for the quota window to reset before retrying"
	case ErrorTypeServer:
		return "Retry or check the service status"
	case ErrorTypeTimeout:
		return "Increase transport.timeout or check service responsiveness"
	case ErrorTypeConnection:
		return "Check network connectivity and DNS resolution"
	default:
		return ""
	}
}
