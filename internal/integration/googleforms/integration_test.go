package googleforms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tombee/conductor-googleforms/internal/operation"
	"github.com/tombee/conductor-googleforms/internal/operation/api"
	"github.com/tombee/conductor-googleforms/internal/operation/transport"
	pkgerrors "github.com/tombee/conductor-googleforms/pkg/errors"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
	Auth   string
}

type fakeForms struct {
	server   *httptest.Server
	requests []recordedRequest
	calls    atomic.Int32
}

// newFakeForms serves handler behind an httptest server and records every request.
func newFakeForms(t *testing.T, handler http.HandlerFunc) *fakeForms {
	t.Helper()
	f := &fakeForms{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		f.requests = append(f.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.EscapedPath(),
			Query:  r.URL.RawQuery,
			Body:   string(body),
			Auth:   r.Header.Get("Authorization"),
		})
		handler(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeForms) integration(t *testing.T, opts ...Option) *GoogleFormsIntegration {
	t.Helper()
	tr, err := transport.NewOAuth2Transport(&transport.OAuth2TransportConfig{
		Flow:        transport.FlowAccessToken,
		AccessToken: "test-token",
	})
	require.NoError(t, err)

	c, err := NewGoogleFormsIntegration(&api.ProviderConfig{Transport: tr, BaseURL: f.server.URL + "/v1"}, opts...)
	require.NoError(t, err)
	return c
}

func respondJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

func TestScenarioA_GetForm(t *testing.T) {
	f := newFakeForms(t, respondJSON(`{"formId":"F1"}`))
	c := f.integration(t)

	p := params(ResourceForms, "formsGet")
	p.FormID = "F1"

	outputs, err := c.ExecuteBatch(context.Background(), []Parameters{p})
	require.NoError(t, err)

	require.Len(t, f.requests, 1)
	assert.Equal(t, http.MethodGet, f.requests[0].Method)
	assert.Equal(t, "/v1/forms/F1", f.requests[0].Path)
	assert.Empty(t, f.requests[0].Body)
	assert.Equal(t, "Bearer test-token", f.requests[0].Auth)

	assert.Equal(t, []interface{}{map[string]interface{}{"json": map[string]interface{}{"formId": "F1"}}}, Records(outputs))
}

func TestScenarioB_RenewWatchSendsNoBody(t *testing.T) {
	f := newFakeForms(t, respondJSON(`{"id":"W1","expireTime":"2026-01-01T00:00:00Z"}`))
	c := f.integration(t)

	p := params(ResourceFormWatches, "formWatchesRenewPost")
	p.FormID, p.WatchID = "F1", "W1"
	p.RequestBody = `{"watch":{"target":{}}}`

	_, err := c.ExecuteBatch(context.Background(), []Parameters{p})
	require.NoError(t, err)

	require.Len(t, f.requests, 1)
	assert.Equal(t, http.MethodPost, f.requests[0].Method)
	assert.Equal(t, "/v1/forms/F1/watches/W1:renew", f.requests[0].Path)
	assert.Empty(t, f.requests[0].Body)
}

func TestScenarioC_ListResponsesQuery(t *testing.T) {
	f := newFakeForms(t, respondJSON(`{"responses":[]}`))
	c := f.integration(t)

	p := params(ResourceFormResponses, "formResponsesList")
	p.FormID = "F1"
	p.QueryParameters = QueryParameters{{Key: "pageSize", Value: 10}, {Key: "filter", Value: ""}}

	_, err := c.ExecuteBatch(context.Background(), []Parameters{p})
	require.NoError(t, err)

	require.Len(t, f.requests, 1)
	assert.Equal(t, "/v1/forms/F1/responses", f.requests[0].Path)
	assert.Equal(t, "pageSize=10", f.requests[0].Query)
}

func TestScenarioD_InvalidBodyFailsBeforeIO(t *testing.T) {
	f := newFakeForms(t, respondJSON(`{}`))
	c := f.integration(t)

	p := params(ResourceForms, "formsCreatePost")
	p.RequestBody = "{invalid"

	outputs, err := c.ExecuteBatch(context.Background(), []Parameters{p})
	assert.Nil(t, outputs)
	require.Error(t, err)

	var nodeErr *NodeAPIError
	require.True(t, errors.As(err, &nodeErr))
	var bpe *BodyParseError
	assert.True(t, errors.As(err, &bpe))
	assert.Contains(t, nodeErr.Message, "Error calling Google Forms API: request body is not valid JSON")
	assert.Equal(t, int32(0), f.calls.Load())
}

func TestExecuteBatch_PostSendsBody(t *testing.T) {
	var contentType string
	f := newFakeForms(t, func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		fmt.Fprint(w, `{"formId":"NEW"}`)
	})
	c := f.integration(t)

	p := params(ResourceForms, "formsCreatePost")
	p.RequestBody = `{"info": {"title": "Survey"}}`

	outputs, err := c.ExecuteBatch(context.Background(), []Parameters{p})
	require.NoError(t, err)

	assert.Equal(t, "application/json", contentType)
	assert.JSONEq(t, `{"info":{"title":"Survey"}}`, f.requests[0].Body)
	assert.Equal(t, OutputJSON, outputs[0].Kind)
}

func TestExecuteBatch_ResponseShapes(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    interface{}
	}{
		{
			name:    "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) },
			want:    map[string]interface{}{"Status Code": "204 No Content"},
		},
		{
			name:    "empty json object",
			handler: respondJSON(`{}`),
			want:    map[string]interface{}{"json": map[string]interface{}{}},
		},
		{
			name:    "plain text",
			handler: func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, "  OK  ") },
			want:    map[string]interface{}{"text": "OK"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeForms(t, tt.handler)
			c := f.integration(t)

			p := params(ResourceFormWatches, "formWatchesDelete")
			p.FormID, p.WatchID = "F1", "W1"

			outputs, err := c.ExecuteBatch(context.Background(), []Parameters{p})
			require.NoError(t, err)
			assert.Equal(t, http.MethodDelete, f.requests[0].Method)
			assert.Equal(t, tt.want, outputs[0].Record())
		})
	}
}

func TestExecuteBatch_FailFast(t *testing.T) {
	f := newFakeForms(t, respondJSON(`{"formId":"F1"}`))
	c := f.integration(t)

	ok := params(ResourceForms, "formsGet")
	ok.FormID = "F1"
	missing := params(ResourceForms, "formsGet")

	outputs, err := c.ExecuteBatch(context.Background(), []Parameters{ok, missing, ok})
	assert.Nil(t, outputs)

	var nodeErr *NodeAPIError
	require.True(t, errors.As(err, &nodeErr))
	assert.Equal(t, 1, nodeErr.Item)
	assert.Equal(t, "Error calling Google Forms API: Form ID is required", nodeErr.Error())
	assert.Equal(t, "No stack trace available", nodeErr.Description)
	assert.NotEmpty(t, nodeErr.Suggestion())
	assert.Equal(t, int32(1), f.calls.Load(), "items after the failure are not sent")
}

func TestExecuteBatch_ContinueOnFail(t *testing.T) {
	f := newFakeForms(t, respondJSON(`{"formId":"F1"}`))
	c := f.integration(t, WithContinueOnFail(true))

	ok := params(ResourceForms, "formsGet")
	ok.FormID = "F1"
	missing := params(ResourceForms, "formsGet")

	outputs, err := c.ExecuteBatch(context.Background(), []Parameters{ok, missing, ok})
	require.NoError(t, err)
	require.Len(t, outputs, 3)

	assert.Equal(t, OutputJSON, outputs[0].Kind)
	assert.Equal(t, map[string]interface{}{"error": "Error calling Google Forms API: Form ID is required"}, outputs[1].Record())
	assert.Equal(t, OutputJSON, outputs[2].Kind)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestExecuteBatch_OrderPreserved(t *testing.T) {
	f := newFakeForms(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"path":%q}`, r.URL.Path)
	})
	c := f.integration(t)

	var items []Parameters
	for _, id := range []string{"A", "B", "C"} {
		p := params(ResourceForms, "formsGet")
		p.FormID = id
		items = append(items, p)
	}

	outputs, err := c.ExecuteBatch(context.Background(), items)
	require.NoError(t, err)
	for i, id := range []string{"A", "B", "C"} {
		assert.Equal(t, map[string]interface{}{"path": "/v1/forms/" + id}, outputs[i].JSON)
	}
}

func TestExecuteBatch_GoogleErrorEnvelope(t *testing.T) {
	f := newFakeForms(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`)
	})
	c := f.integration(t)

	p := params(ResourceForms, "formsGet")
	p.FormID = "missing"

	_, err := c.ExecuteBatch(context.Background(), []Parameters{p})

	var nodeErr *NodeAPIError
	require.True(t, errors.As(err, &nodeErr))
	assert.Equal(t, "Error calling Google Forms API: request failed with status code 404: Requested entity was not found.", nodeErr.Message)
	assert.Contains(t, nodeErr.Description, "caused by:")

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	require.NotNil(t, ue.Google)
	assert.Equal(t, 404, ue.Google.Code)

	var opErr *operation.Error
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, operation.ErrorTypeNotFound, opErr.Type)
	assert.Equal(t, opErr.SuggestText, pkgerrors.Suggest(err))
}

func TestExecuteBatch_ErrorWithoutEnvelope(t *testing.T) {
	f := newFakeForms(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "<html>bad gateway</html>")
	})
	c := f.integration(t)

	p := params(ResourceForms, "formsGet")
	p.FormID = "F1"

	_, err := c.ExecuteBatch(context.Background(), []Parameters{p})

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Nil(t, ue.Google)
	assert.Equal(t, "request failed with status code 502", ue.Error())
}

func TestExecuteBatch_MissingCredentials(t *testing.T) {
	c := newTestIntegration(t)

	_, err := c.ExecuteBatch(context.Background(), []Parameters{params(ResourceForms, "formsCreatePost")})

	var opErr *operation.Error
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "Missing Google Forms API Credentials", opErr.Message)
}

func TestExecute_Connector(t *testing.T) {
	f := newFakeForms(t, respondJSON(`{"watches":[]}`))
	c := f.integration(t)

	registry := operation.NewRegistry()
	registry.Register(c.Name(), c)

	result, err := registry.Execute(context.Background(), "googleforms.formWatchesList", map[string]interface{}{
		"formId": "F1",
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/forms/F1/watches", f.requests[0].Path)
	assert.Equal(t, map[string]interface{}{"json": map[string]interface{}{"watches": []interface{}{}}}, result.GetResponse())
	assert.Equal(t, "json", result.GetMetadata()["output_kind"])

	_, err = registry.Execute(context.Background(), "googleforms.formWatchesList", map[string]interface{}{
		"formId":          "F1",
		"queryParameters": "nope",
	})
	var nodeErr *NodeAPIError
	assert.True(t, errors.As(err, &nodeErr))
}

func TestExecuteBatch_SpansAndMetrics(t *testing.T) {
	f := newFakeForms(t, respondJSON(`{}`))

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	c := f.integration(t, WithTracerProvider(tp), WithMeterProvider(mp), WithContinueOnFail(true))

	ok := params(ResourceForms, "formsGet")
	ok.FormID = "F1"
	bad := params(ResourceForms, "formsGet")

	_, err := c.ExecuteBatch(context.Background(), []Parameters{ok, bad})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "googleforms.formsGet", spans[0].Name())
	assert.Equal(t, "Error", spans[1].Status().Code.String())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	outcomes := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "googleforms.requests" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				outcome, _ := dp.Attributes.Value("outcome")
				outcomes[outcome.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{"success": 1, "validation_error": 1}, outcomes)
}

func TestOperationsMetadata(t *testing.T) {
	c := newTestIntegration(t)

	ops := c.Operations()
	require.Len(t, ops, 10)
	assert.Equal(t, "formsBatchUpdatePost", ops[0].Name)
	assert.Equal(t, "forms", ops[0].Category)

	schema := c.OperationSchema("formWatchesRenewPost")
	require.NotNil(t, schema)
	var names []string
	for _, p := range schema.Parameters {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"resource", "formId", "watchId", "queryParameters"}, names)

	assert.Nil(t, c.OperationSchema("formsDelete"))
}
