package googleforms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// BuiltRequest is a fully constructed outbound call. It is produced before
// any I/O; a failed build never yields a partial request.
type BuiltRequest struct {
	Operation string
	Method    string
	URL       string
	Headers   map[string]string

	// Payload is the parsed request body, nil when no body is sent.
	Payload interface{}

	// Body is the compact encoding of Payload, nil when no body is sent.
	Body []byte
}

// HasBody reports whether a body is attached.
func (r *BuiltRequest) HasBody() bool {
	return r.Body != nil
}

// BuildRequest maps one item's parameters to a BuiltRequest.
func (c *GoogleFormsIntegration) BuildRequest(p Parameters) (*BuiltRequest, error) {
	spec, err := resolveOperation(p)
	if err != nil {
		return nil, err
	}

	values := p.pathValues()
	if missing := c.ValidateRequired(values, spec.Required); missing != "" {
		return nil, &ValidationError{
			Field:   missing,
			Message: fmt.Sprintf("%s is required", fieldLabel(missing)),
		}
	}

	url, err := c.BuildURL(spec.Path, values)
	if err != nil {
		return nil, &ValidationError{Field: ParamOperation, Message: err.Error()}
	}
	url += c.BuildQueryString(p.QueryParameters)

	req := &BuiltRequest{
		Operation: spec.Name,
		Method:    spec.Method,
		URL:       url,
		Headers:   map[string]string{"Content-Type": "application/json"},
	}

	if !spec.Body || !methodCarriesBody(spec.Method) {
		return req, nil
	}

	payload, compact, err := parseBody(string(p.RequestBody))
	if err != nil {
		return nil, &BodyParseError{Operation: spec.Name, Cause: err}
	}
	if truthy(payload) {
		req.Payload = payload
		req.Body = compact
	}

	return req, nil
}

// resolveOperation checks the resource/operation pair against the table.
func resolveOperation(p Parameters) (OperationSpec, error) {
	if !isValidResource(p.Resource) {
		return OperationSpec{}, &ValidationError{
			Field:   ParamResource,
			Message: fmt.Sprintf("unknown resource %q", p.Resource),
		}
	}

	if p.Operation == "" {
		return OperationSpec{}, &ValidationError{Field: ParamOperation, Message: "Operation is required"}
	}

	spec, ok := LookupOperation(p.Operation)
	if !ok {
		return OperationSpec{}, &ValidationError{
			Field:   ParamOperation,
			Message: fmt.Sprintf("unknown operation %q", p.Operation),
		}
	}
	if spec.Resource != p.Resource {
		return OperationSpec{}, &ValidationError{
			Field:   ParamOperation,
			Message: fmt.Sprintf("operation %q does not belong to resource %q", p.Operation, p.Resource),
		}
	}

	return spec, nil
}

func methodCarriesBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// parseBody parses the body text as a single JSON value. Numbers keep their
// literal form.
func parseBody(text string) (interface{}, []byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, fmt.Errorf("unexpected end of JSON input")
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var payload interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, nil, fmt.Errorf("unexpected data after top-level JSON value")
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(strings.TrimSpace(text))); err != nil {
		return nil, nil, err
	}

	return payload, buf.Bytes(), nil
}

// truthy reports whether a parsed JSON value counts as present. null, false,
// 0 and "" do not; objects and arrays always do, even when empty.
func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case json.Number:
		f, err := val.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}
