package googleforms

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/tombee/conductor-googleforms/internal/operation"
	"github.com/tombee/conductor-googleforms/internal/operation/transport"
	pkgerrors "github.com/tombee/conductor-googleforms/pkg/errors"
)

// NodeErrorPrefix starts the message of every error returned to the host.
const NodeErrorPrefix = "Error calling Google Forms API: "

const noTraceDescription = "No stack trace available"

// ValidationError reports missing or inconsistent parameters. No request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsUserVisible implements pkg/errors.UserVisibleError.
func (e *ValidationError) IsUserVisible() bool { return true }

// UserMessage implements pkg/errors.UserVisibleError.
func (e *ValidationError) UserMessage() string { return e.Message }

// Suggestion implements pkg/errors.UserVisibleError.
func (e *ValidationError) Suggestion() string {
	switch e.Field {
	case ParamResource, ParamOperation:
		return "Run 'conductor-googleforms operations' to list valid resource and operation pairs"
	default:
		return fmt.Sprintf("Set the %s parameter", e.Field)
	}
}

// BodyParseError reports a requestBody that is not valid JSON. No request is sent.
type BodyParseError struct {
	Operation string
	Cause     error
}

func (e *BodyParseError) Error() string {
	return fmt.Sprintf("request body is not valid JSON: %v", e.Cause)
}

func (e *BodyParseError) Unwrap() error {
	return e.Cause
}

// IsUserVisible implements pkg/errors.UserVisibleError.
func (e *BodyParseError) IsUserVisible() bool { return true }

// UserMessage implements pkg/errors.UserVisibleError.
func (e *BodyParseError) UserMessage() string { return e.Error() }

// Suggestion implements pkg/errors.UserVisibleError.
func (e *BodyParseError) Suggestion() string {
	return "Provide requestBody as a JSON document, e.g. {\"info\":{\"title\":\"My form\"}}"
}

// UpstreamError reports a failed call: transport failure or a non-2xx response.
type UpstreamError struct {
	Operation  string
	StatusCode int

	// Google is the decoded {"error": {...}} envelope, when the response carried one.
	Google *googleapi.Error

	message string

	// Cause is the classified *operation.Error.
	Cause error
}

func (e *UpstreamError) Error() string {
	return e.message
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// newUpstreamError classifies a transport failure and decodes any Google error envelope.
func newUpstreamError(op string, err error) *UpstreamError {
	opErr := operation.FromTransportError(err)

	ue := &UpstreamError{
		Operation:  op,
		StatusCode: opErr.StatusCode,
		Cause:      opErr,
	}

	var te *transport.TransportError
	if errors.As(err, &te) && te.StatusCode != 0 {
		ue.Google = decodeGoogleError(te.StatusCode, te.ResponseBody())
	}

	switch {
	case ue.Google != nil:
		ue.message = fmt.Sprintf("request failed with status code %d: %s", ue.StatusCode, ue.Google.Message)
	case ue.StatusCode != 0:
		ue.message = fmt.Sprintf("request failed with status code %d", ue.StatusCode)
	default:
		ue.message = opErr.Message
	}

	return ue
}

// decodeGoogleError parses the standard Google API error envelope.
// Returns nil when the body carries no error message.
func decodeGoogleError(statusCode int, body []byte) *googleapi.Error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	res := &http.Response{
		StatusCode: statusCode,
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader(body)),
	}

	var gErr *googleapi.Error
	if errors.As(googleapi.CheckResponse(res), &gErr) && gErr.Message != "" {
		return gErr
	}
	return nil
}

// NodeAPIError is the single error type returned to the host for a failed item.
type NodeAPIError struct {
	// Item is the zero-based index of the failed input item
	Item int

	Operation string

	// Message is "Error calling Google Forms API: <cause>"
	Message string

	// Description is the cause chain, or "No stack trace available"
	Description string

	Cause error
}

func newNodeAPIError(item int, op string, err error) *NodeAPIError {
	desc := pkgerrors.Trace(err)
	if desc == "" {
		desc = noTraceDescription
	}

	return &NodeAPIError{
		Item:        item,
		Operation:   op,
		Message:     NodeErrorPrefix + err.Error(),
		Description: desc,
		Cause:       err,
	}
}

func (e *NodeAPIError) Error() string {
	return e.Message
}

func (e *NodeAPIError) Unwrap() error {
	return e.Cause
}

// IsUserVisible implements pkg/errors.UserVisibleError.
func (e *NodeAPIError) IsUserVisible() bool { return true }

// UserMessage implements pkg/errors.UserVisibleError.
func (e *NodeAPIError) UserMessage() string { return e.Message }

// Suggestion implements pkg/errors.UserVisibleError.
func (e *NodeAPIError) Suggestion() string {
	return pkgerrors.Suggest(e.Cause)
}
