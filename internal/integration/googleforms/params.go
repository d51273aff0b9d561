package googleforms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/tombee/conductor-googleforms/internal/operation/api"
)

// DefaultRequestBody is the requestBody value used when none is supplied.
const DefaultRequestBody = "{}"

// Parameters are the resolved parameter values of one input item.
type Parameters struct {
	Resource        Resource        `json:"resource" yaml:"resource"`
	Operation       string          `json:"operation" yaml:"operation"`
	FormID          string          `json:"formId,omitempty" yaml:"formId"`
	ResponseID      string          `json:"responseId,omitempty" yaml:"responseId"`
	WatchID         string          `json:"watchId,omitempty" yaml:"watchId"`
	QueryParameters QueryParameters `json:"queryParameters,omitempty" yaml:"queryParameters"`
	RequestBody     RequestBody     `json:"requestBody" yaml:"requestBody"`
}

// DefaultParameters returns the schema defaults. Decoding an item on top of
// the returned value leaves absent fields at their defaults.
func DefaultParameters() Parameters {
	return Parameters{RequestBody: DefaultRequestBody}
}

// fillSelector completes a partially specified resource/operation pair.
// An operation without a resource selects the operation's resource; a
// resource without an operation selects the resource's default operation.
func (p *Parameters) fillSelector() {
	if p.Resource == "" {
		if spec, ok := LookupOperation(p.Operation); ok {
			p.Resource = spec.Resource
		} else {
			p.Resource = ResourceForms
		}
	}
	if p.Operation == "" {
		p.Operation = DefaultOperation(p.Resource)
	}
}

func (p Parameters) pathValues() map[string]string {
	return map[string]string{
		ParamFormID:     p.FormID,
		ParamResponseID: p.ResponseID,
		ParamWatchID:    p.WatchID,
	}
}

// QueryParameters is an ordered mapping of query names to scalar values.
// Decoding from YAML or JSON keeps document order.
type QueryParameters []api.QueryParam

// Get returns the value stored under key.
func (q QueryParameters) Get(key string) (interface{}, bool) {
	for _, p := range q {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Map returns the entries as an unordered map.
func (q QueryParameters) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(q))
	for _, p := range q {
		m[p.Key] = p.Value
	}
	return m
}

// QueryParametersFromMap converts an unordered map, sorting keys so the
// resulting query string is deterministic.
func QueryParametersFromMap(m map[string]interface{}) QueryParameters {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := make(QueryParameters, 0, len(keys))
	for _, k := range keys {
		q = append(q, api.QueryParam{Key: k, Value: m[k]})
	}
	return q
}

// UnmarshalYAML decodes a YAML mapping in document order.
func (q *QueryParameters) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*q = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: queryParameters must be a mapping", node.Line)
	}

	out := make(QueryParameters, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var value interface{}
		if err := node.Content[i+1].Decode(&value); err != nil {
			return fmt.Errorf("queryParameters.%s: %w", node.Content[i].Value, err)
		}
		out = append(out, api.QueryParam{Key: node.Content[i].Value, Value: value})
	}
	*q = out
	return nil
}

// UnmarshalJSON decodes a JSON object in document order.
func (q *QueryParameters) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*q = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("queryParameters must be a JSON object")
	}

	out := QueryParameters{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)

		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("queryParameters.%s: %w", key, err)
		}
		out = append(out, api.QueryParam{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*q = out
	return nil
}

// MarshalJSON encodes the entries as a JSON object in order.
func (q QueryParameters) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range q {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(p.Value)
		if err != nil {
			return nil, fmt.Errorf("queryParameters.%s: %w", p.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RequestBody is the raw JSON text of the request body. Item files may give
// it either as a string or as inline structured data.
type RequestBody string

// UnmarshalJSON accepts a JSON string holding the body text, or any other
// JSON value which is kept verbatim.
func (b *RequestBody) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*b = RequestBody(s)
		return nil
	}
	*b = RequestBody(trimmed)
	return nil
}

// UnmarshalYAML accepts a string scalar holding the body text, or inline
// YAML which is converted to JSON text.
func (b *RequestBody) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!str" {
		*b = RequestBody(node.Value)
		return nil
	}

	var value interface{}
	if err := node.Decode(&value); err != nil {
		return err
	}
	text, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("line %d: requestBody cannot be expressed as JSON: %w", node.Line, err)
	}
	*b = RequestBody(text)
	return nil
}

// DecodeItemsYAML decodes a YAML (or JSON) document holding either a single
// item mapping or a sequence of items. Each item starts from DefaultParameters.
func DecodeItemsYAML(data []byte) ([]Parameters, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse items: %w", err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, nil
	}

	doc := root.Content[0]
	nodes := []*yaml.Node{doc}
	if doc.Kind == yaml.SequenceNode {
		nodes = doc.Content
	}

	items := make([]Parameters, 0, len(nodes))
	for i, n := range nodes {
		p := DefaultParameters()
		if err := n.Decode(&p); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		p.fillSelector()
		items = append(items, p)
	}
	return items, nil
}
