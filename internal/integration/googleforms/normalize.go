package googleforms

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"strings"
)

// NoContentStatus is the marker value recorded for empty responses.
const NoContentStatus = "204 No Content"

// OutputKind identifies the shape of a normalized record.
type OutputKind int

const (
	// OutputJSON wraps a parsed JSON response as {json: value}.
	OutputJSON OutputKind = iota
	// OutputText wraps a non-JSON textual response as {text: string}.
	OutputText
	// OutputStatus is the {"Status Code": "204 No Content"} marker.
	OutputStatus
	// OutputPassthrough is a structured response returned unchanged.
	OutputPassthrough
	// OutputError is a per-item failure recorded when continue-on-fail is enabled.
	OutputError
)

func (k OutputKind) String() string {
	switch k {
	case OutputJSON:
		return "json"
	case OutputText:
		return "text"
	case OutputStatus:
		return "status"
	case OutputPassthrough:
		return "passthrough"
	case OutputError:
		return "error"
	default:
		return "unknown"
	}
}

// Output is the normalized result of one item.
type Output struct {
	Kind  OutputKind
	JSON  interface{}
	Text  string
	Value interface{}
	Err   error
}

// Record returns the item record emitted to the host.
func (o Output) Record() interface{} {
	switch o.Kind {
	case OutputJSON:
		return map[string]interface{}{"json": o.JSON}
	case OutputText:
		return map[string]interface{}{"text": o.Text}
	case OutputPassthrough:
		return o.Value
	case OutputError:
		return map[string]interface{}{"error": o.Err.Error()}
	default:
		return map[string]interface{}{"Status Code": NoContentStatus}
	}
}

// MarshalJSON encodes the record.
func (o Output) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Record())
}

// Records converts outputs to their host records, preserving order.
func Records(outputs []Output) []interface{} {
	records := make([]interface{}, len(outputs))
	for i, o := range outputs {
		records[i] = o.Record()
	}
	return records
}

// Normalize interprets a raw response value. Text (string or []byte) is
// trimmed and parsed as JSON, falling back to a text record; empty or absent
// responses become the status marker, as do the falsy scalars false, 0 and
// NaN; other values, including empty maps and slices, pass through unchanged.
func Normalize(raw interface{}) Output {
	switch v := raw.(type) {
	case nil:
		return Output{Kind: OutputStatus}
	case string:
		return normalizeText(v)
	case []byte:
		return normalizeText(string(v))
	case json.RawMessage:
		return normalizeText(string(v))
	}

	if isFalsyValue(raw) {
		return Output{Kind: OutputStatus}
	}
	return Output{Kind: OutputPassthrough, Value: raw}
}

func normalizeText(s string) Output {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Output{Kind: OutputStatus}
	}

	// A parse failure is absorbed into a text record.
	if v, ok := parseJSONText(trimmed); ok {
		return Output{Kind: OutputJSON, JSON: v}
	}
	return Output{Kind: OutputText, Text: trimmed}
}

func parseJSONText(s string) (interface{}, bool) {
	if !json.Valid([]byte(s)) {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

// isFalsyValue reports typed nils (nil maps, slices, pointers) held in an
// interface, false, and numeric zero or NaN.
func isFalsyValue(v interface{}) bool {
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		return err == nil && (f == 0 || math.IsNaN(f))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface, reflect.Chan, reflect.Func:
		return rv.IsNil()
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0 || math.IsNaN(rv.Float())
	default:
		return false
	}
}
