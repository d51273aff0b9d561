package api

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/tombee/conductor-googleforms/internal/operation"
	"github.com/tombee/conductor-googleforms/internal/operation/transport"
)

// QueryParam is one ordered query-string entry.
type QueryParam struct {
	Key   string
	Value interface{}
}

// BaseProvider provides common functionality for API integrations.
type BaseProvider struct {
	name      string
	transport transport.Transport
	baseURL   string
}

// NewBaseProvider creates a new base provider.
func NewBaseProvider(name string, config *ProviderConfig) *BaseProvider {
	return &BaseProvider{
		name:      name,
		transport: config.Transport,
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
	}
}

// Name returns the integration identifier.
func (c *BaseProvider) Name() string {
	return c.name
}

// HasTransport reports whether a transport is configured.
func (c *BaseProvider) HasTransport() bool {
	return c.transport != nil
}

// BuildURL constructs a full URL from a path template and path values.
// Path templates use {param} syntax (e.g., "/forms/{formId}/responses").
// Values are path-escaped so they cannot alter the path structure.
func (c *BaseProvider) BuildURL(pathTemplate string, values map[string]string) (string, error) {
	var b strings.Builder
	rest := pathTemplate

	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated placeholder in path template %q", pathTemplate)
		}
		end += start

		key := rest[start+1 : end]
		value, ok := values[key]
		if !ok || value == "" {
			return "", fmt.Errorf("missing required parameter: %s", key)
		}

		b.WriteString(rest[:start])
		b.WriteString(url.PathEscape(value))
		rest = rest[end+1:]
	}

	return c.baseURL + b.String(), nil
}

// BuildQueryString encodes params in the given order, skipping falsy values
// ("", false, nil, 0, NaN). Returns "" when nothing remains, otherwise a
// string starting with "?".
func (c *BaseProvider) BuildQueryString(params []QueryParam) string {
	var parts []string
	for _, p := range params {
		s, ok := QueryValue(p.Value)
		if !ok {
			continue
		}
		parts = append(parts, url.QueryEscape(p.Key)+"="+url.QueryEscape(s))
	}

	if len(parts) == 0 {
		return ""
	}
	return "?" + strings.Join(parts, "&")
}

// QueryValue renders a query value as text. The boolean result is false for
// values that are omitted from the query string.
func QueryValue(v interface{}) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, val != ""
	case bool:
		return "true", val
	case interface{ String() string }:
		// json.Number and similar textual numbers
		s := val.String()
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return formatNumber(f), f != 0 && !math.IsNaN(f)
		}
		return s, s != ""
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		return strconv.FormatInt(n, 10), n != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n := rv.Uint()
		return strconv.FormatUint(n, 10), n != 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return formatNumber(f), f != 0 && !math.IsNaN(f)
	case reflect.Bool:
		return "true", rv.Bool()
	case reflect.String:
		return rv.String(), rv.Len() > 0
	default:
		s := fmt.Sprint(v)
		return s, s != ""
	}
}

// formatNumber renders integral floats without a fractional part.
func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ExecuteRequest sends an HTTP request and returns the response.
// Authentication is the transport's responsibility.
func (c *BaseProvider) ExecuteRequest(ctx context.Context, method, url string, headers map[string]string, body []byte) (*transport.Response, error) {
	if c.transport == nil {
		return nil, &operation.Error{
			Type:        operation.ErrorTypeAuth,
			Message:     fmt.Sprintf("%s: no transport configured", c.name),
			SuggestText: "Configure credentials before executing operations",
		}
	}

	req := &transport.Request{
		Method:  method,
		URL:     url,
		Headers: headers,
		Body:    body,
	}

	return c.transport.Execute(ctx, req)
}

// ValidateRequired checks that all required parameters are present and non-empty.
// It returns the name of the first missing parameter, or "".
func (c *BaseProvider) ValidateRequired(values map[string]string, required []string) string {
	for _, param := range required {
		if values[param] == "" {
			return param
		}
	}
	return ""
}
