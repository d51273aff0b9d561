package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/conductor-googleforms/internal/operation"
)

func newTestProvider() *BaseProvider {
	return NewBaseProvider("test", &ProviderConfig{BaseURL: "https://forms.googleapis.com/v1/"})
}

func TestBuildURL(t *testing.T) {
	p := newTestProvider()

	tests := []struct {
		name     string
		template string
		values   map[string]string
		want     string
		wantErr  string
	}{
		{
			name:     "no placeholders",
			template: "/forms",
			want:     "https://forms.googleapis.com/v1/forms",
		},
		{
			name:     "custom method suffix",
			template: "/forms/{formId}:batchUpdate",
			values:   map[string]string{"formId": "F1"},
			want:     "https://forms.googleapis.com/v1/forms/F1:batchUpdate",
		},
		{
			name:     "two placeholders",
			template: "/forms/{formId}/watches/{watchId}:renew",
			values:   map[string]string{"formId": "F1", "watchId": "W9"},
			want:     "https://forms.googleapis.com/v1/forms/F1/watches/W9:renew",
		},
		{
			name:     "escaped value",
			template: "/forms/{formId}",
			values:   map[string]string{"formId": "a/b c"},
			want:     "https://forms.googleapis.com/v1/forms/a%2Fb%20c",
		},
		{
			name:     "missing value",
			template: "/forms/{formId}/responses/{responseId}",
			values:   map[string]string{"formId": "F1"},
			wantErr:  "missing required parameter: responseId",
		},
		{
			name:     "unterminated",
			template: "/forms/{formId",
			values:   map[string]string{"formId": "F1"},
			wantErr:  "unterminated placeholder",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.BuildURL(tt.template, tt.values)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type (
	pageFilter string
	toggle     bool
)

func TestBuildQueryString(t *testing.T) {
	p := newTestProvider()

	tests := []struct {
		name   string
		params []QueryParam
		want   string
	}{
		{"empty", nil, ""},
		{
			name:   "order preserved",
			params: []QueryParam{{"pageSize", 10}, {"filter", "timestamp > 2024-01-01T00:00:00Z"}},
			want:   "?pageSize=10&filter=timestamp+%3E+2024-01-01T00%3A00%3A00Z",
		},
		{
			name:   "falsy dropped",
			params: []QueryParam{{"a", ""}, {"b", false}, {"c", nil}, {"d", 0}, {"e", math.NaN()}, {"f", 0.0}},
			want:   "",
		},
		{
			name:   "mixed",
			params: []QueryParam{{"filter", "x"}, {"pageToken", ""}, {"unpublished", true}, {"pageSize", 2.5}},
			want:   "?filter=x&unpublished=true&pageSize=2.5",
		},
		{
			name:   "json number",
			params: []QueryParam{{"pageSize", json.Number("50")}, {"zero", json.Number("0")}},
			want:   "?pageSize=50",
		},
		{
			name: "zero of every numeric kind dropped",
			params: []QueryParam{
				{"a", int8(0)}, {"b", int16(0)}, {"c", int32(0)}, {"d", int64(0)},
				{"e", uint(0)}, {"f", uint8(0)}, {"g", uint16(0)}, {"h", uint32(0)}, {"i", uint64(0)},
				{"j", float32(0)}, {"k", float32(math.NaN())},
			},
			want: "",
		},
		{
			name:   "non-zero numeric kinds kept",
			params: []QueryParam{{"pageSize", uint64(25)}, {"offset", int32(-3)}, {"ratio", float32(0.5)}},
			want:   "?pageSize=25&offset=-3&ratio=0.5",
		},
		{
			name:   "named scalar types",
			params: []QueryParam{{"filter", pageFilter("x")}, {"empty", pageFilter("")}, {"flag", toggle(false)}},
			want:   "?filter=x",
		},
		{
			name:   "integral float",
			params: []QueryParam{{"pageSize", 100.0}},
			want:   "?pageSize=100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.BuildQueryString(tt.params))
		})
	}
}

func TestValidateRequired(t *testing.T) {
	p := newTestProvider()

	assert.Equal(t, "", p.ValidateRequired(map[string]string{"formId": "F1"}, []string{"formId"}))
	assert.Equal(t, "watchId", p.ValidateRequired(map[string]string{"formId": "F1", "watchId": ""}, []string{"formId", "watchId"}))
	assert.Equal(t, "formId", p.ValidateRequired(nil, []string{"formId"}))
}

func TestExecuteRequest_NoTransport(t *testing.T) {
	p := newTestProvider()

	_, err := p.ExecuteRequest(context.Background(), "GET", "https://forms.googleapis.com/v1/forms", nil, nil)

	var opErr *operation.Error
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, operation.ErrorTypeAuth, opErr.Type)
}
