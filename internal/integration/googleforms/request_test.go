package googleforms

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/conductor-googleforms/internal/operation/api"
)

func newTestIntegration(t *testing.T, opts ...Option) *GoogleFormsIntegration {
	t.Helper()
	c, err := NewGoogleFormsIntegration(&api.ProviderConfig{}, opts...)
	require.NoError(t, err)
	return c
}

func params(resource Resource, op string) Parameters {
	p := DefaultParameters()
	p.Resource = resource
	p.Operation = op
	return p
}

func TestBuildRequest_URLs(t *testing.T) {
	c := newTestIntegration(t)

	tests := []struct {
		op       string
		resource Resource
		want     string
	}{
		{"formsBatchUpdatePost", ResourceForms, APIBaseURL + "/forms/F1:batchUpdate"},
		{"formsCreatePost", ResourceForms, APIBaseURL + "/forms"},
		{"formsGet", ResourceForms, APIBaseURL + "/forms/F1"},
		{"formsPublishSettingsUpdatePost", ResourceForms, APIBaseURL + "/forms/F1:setPublishSettings"},
		{"formResponsesGet", ResourceFormResponses, APIBaseURL + "/forms/F1/responses/R1"},
		{"formResponsesList", ResourceFormResponses, APIBaseURL + "/forms/F1/responses"},
		{"formWatchesCreatePost", ResourceFormWatches, APIBaseURL + "/forms/F1/watches"},
		{"formWatchesDelete", ResourceFormWatches, APIBaseURL + "/forms/F1/watches/W1"},
		{"formWatchesList", ResourceFormWatches, APIBaseURL + "/forms/F1/watches"},
		{"formWatchesRenewPost", ResourceFormWatches, APIBaseURL + "/forms/F1/watches/W1:renew"},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			p := params(tt.resource, tt.op)
			p.FormID, p.ResponseID, p.WatchID = "F1", "R1", "W1"

			req, err := c.BuildRequest(p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.URL)
			assert.Equal(t, MethodForOperation(tt.op), req.Method)
			assert.Equal(t, "application/json", req.Headers["Content-Type"])
		})
	}
}

func TestBuildRequest_RequiredFields(t *testing.T) {
	c := newTestIntegration(t)

	tests := []struct {
		name      string
		resource  Resource
		op        string
		formID    string
		other     string
		wantField string
		wantMsg   string
	}{
		{"form id for get", ResourceForms, "formsGet", "", "", "formId", "Form ID is required"},
		{"form id checked first", ResourceFormResponses, "formResponsesGet", "", "", "formId", "Form ID is required"},
		{"response id", ResourceFormResponses, "formResponsesGet", "F1", "", "responseId", "Response ID is required"},
		{"watch id for delete", ResourceFormWatches, "formWatchesDelete", "F1", "", "watchId", "Watch ID is required"},
		{"watch id for renew", ResourceFormWatches, "formWatchesRenewPost", "F1", "", "watchId", "Watch ID is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := params(tt.resource, tt.op)
			p.FormID = tt.formID

			req, err := c.BuildRequest(p)
			assert.Nil(t, req)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantField, ve.Field)
			assert.Equal(t, tt.wantMsg, ve.Error())
		})
	}
}

func TestBuildRequest_CreateNeedsNoID(t *testing.T) {
	c := newTestIntegration(t)

	req, err := c.BuildRequest(params(ResourceForms, "formsCreatePost"))
	require.NoError(t, err)
	assert.Equal(t, APIBaseURL+"/forms", req.URL)
}

func TestBuildRequest_Selector(t *testing.T) {
	c := newTestIntegration(t)

	tests := []struct {
		name      string
		resource  Resource
		op        string
		wantField string
	}{
		{"unknown resource", "spreadsheets", "formsGet", ParamResource},
		{"unknown operation", ResourceForms, "formsDelete", ParamOperation},
		{"operation from other resource", ResourceFormWatches, "formsGet", ParamOperation},
		{"empty operation", ResourceForms, "", ParamOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := params(tt.resource, tt.op)
			p.FormID = "F1"

			_, err := c.BuildRequest(p)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestBuildRequest_QueryString(t *testing.T) {
	c := newTestIntegration(t)

	tests := []struct {
		name  string
		query QueryParameters
		want  string
	}{
		{
			name:  "falsy values omitted",
			query: QueryParameters{{Key: "pageSize", Value: 10}, {Key: "filter", Value: ""}},
			want:  "/forms/F1/responses?pageSize=10",
		},
		{
			name:  "all falsy",
			query: QueryParameters{{Key: "filter", Value: ""}, {Key: "unpublished", Value: false}, {Key: "pageToken", Value: nil}, {Key: "pageSize", Value: 0}},
			want:  "/forms/F1/responses",
		},
		{
			name:  "insertion order and encoding",
			query: QueryParameters{{Key: "pageToken", Value: "a b&c"}, {Key: "filter", Value: "timestamp >= 2024-01-01T00:00:00Z"}},
			want:  "/forms/F1/responses?pageToken=a+b%26c&filter=timestamp+%3E%3D+2024-01-01T00%3A00%3A00Z",
		},
		{
			name:  "boolean true",
			query: QueryParameters{{Key: "unpublished", Value: true}},
			want:  "/forms/F1/responses?unpublished=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := params(ResourceFormResponses, "formResponsesList")
			p.FormID = "F1"
			p.QueryParameters = tt.query

			req, err := c.BuildRequest(p)
			require.NoError(t, err)
			assert.Equal(t, APIBaseURL+tt.want, req.URL)
		})
	}
}

func TestBuildRequest_PathEscaping(t *testing.T) {
	c := newTestIntegration(t)

	p := params(ResourceForms, "formsGet")
	p.FormID = "../admin?x=1"

	req, err := c.BuildRequest(p)
	require.NoError(t, err)
	assert.Equal(t, APIBaseURL+"/forms/..%2Fadmin%3Fx=1", req.URL)
}

func TestBuildRequest_Body(t *testing.T) {
	c := newTestIntegration(t)

	tests := []struct {
		name     string
		resource Resource
		op       string
		body     RequestBody
		wantBody string
	}{
		{"default empty object is sent", ResourceForms, "formsCreatePost", DefaultRequestBody, "{}"},
		{"compacted", ResourceForms, "formsCreatePost", "{ \"info\": { \"title\": \"Survey\" } }", `{"info":{"title":"Survey"}}`},
		{"large numbers kept", ResourceForms, "formsBatchUpdatePost", `{"n":12345678901234567890}`, `{"n":12345678901234567890}`},
		{"empty array is sent", ResourceForms, "formsBatchUpdatePost", `[]`, `[]`},
		{"null sends nothing", ResourceForms, "formsCreatePost", "null", ""},
		{"false sends nothing", ResourceForms, "formsCreatePost", "false", ""},
		{"zero sends nothing", ResourceForms, "formsCreatePost", "0", ""},
		{"get ignores body", ResourceForms, "formsGet", `{"ignored":true}`, ""},
		{"renew never sends body", ResourceFormWatches, "formWatchesRenewPost", `{"x":1}`, ""},
		{"delete never sends body", ResourceFormWatches, "formWatchesDelete", `{"x":1}`, ""},
		{"invalid body ignored when not sent", ResourceFormWatches, "formWatchesRenewPost", `{invalid`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := params(tt.resource, tt.op)
			p.FormID, p.WatchID = "F1", "W1"
			p.RequestBody = tt.body

			req, err := c.BuildRequest(p)
			require.NoError(t, err)
			if tt.wantBody == "" {
				assert.False(t, req.HasBody())
				assert.Nil(t, req.Payload)
				return
			}
			require.True(t, req.HasBody())
			assert.Equal(t, tt.wantBody, string(req.Body))
		})
	}
}

func TestBuildRequest_BodyParseError(t *testing.T) {
	c := newTestIntegration(t)

	for _, body := range []RequestBody{"{invalid", "", "   ", `{"a":1} {"b":2}`} {
		t.Run(string(body), func(t *testing.T) {
			p := params(ResourceForms, "formsCreatePost")
			p.RequestBody = body

			req, err := c.BuildRequest(p)
			assert.Nil(t, req)

			var bpe *BodyParseError
			require.True(t, errors.As(err, &bpe))
			assert.Equal(t, "formsCreatePost", bpe.Operation)
		})
	}
}

func TestBuildRequest_RenewIsPostWithoutBody(t *testing.T) {
	c := newTestIntegration(t)

	p := params(ResourceFormWatches, "formWatchesRenewPost")
	p.FormID, p.WatchID = "F1", "W1"
	p.RequestBody = `{"anything":"here"}`

	req, err := c.BuildRequest(p)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, APIBaseURL+"/forms/F1/watches/W1:renew", req.URL)
	assert.False(t, req.HasBody())
}
