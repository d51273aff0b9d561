// Package googleforms implements the Google Forms connector: the operation
// table, request construction, response normalization and the per-item
// execution loop.
package googleforms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/conductor-googleforms/internal/log"
	"github.com/tombee/conductor-googleforms/internal/operation"
	"github.com/tombee/conductor-googleforms/internal/operation/api"
)

// APIBaseURL is the Google Forms REST endpoint requests are built against.
const APIBaseURL = "https://forms.googleapis.com/v1"

const instrumentationName = "github.com/tombee/conductor-googleforms/internal/integration/googleforms"

var (
	_ operation.Connector = (*GoogleFormsIntegration)(nil)
	_ api.TypedProvider   = (*GoogleFormsIntegration)(nil)
)

// GoogleFormsIntegration implements the Provider interface for the Google Forms API.
type GoogleFormsIntegration struct {
	*api.BaseProvider

	logger         *slog.Logger
	tracer         trace.Tracer
	meterProvider  metric.MeterProvider
	instruments    *instruments
	continueOnFail bool
}

// Option configures a GoogleFormsIntegration.
type Option func(*GoogleFormsIntegration)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *GoogleFormsIntegration) {
		c.logger = logger
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *GoogleFormsIntegration) {
		c.tracer = tp.Tracer(instrumentationName)
	}
}

// WithMeterProvider sets the meter provider. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *GoogleFormsIntegration) {
		c.meterProvider = mp
	}
}

// WithContinueOnFail records failed items as {error: ...} records instead of
// aborting the batch.
func WithContinueOnFail(enabled bool) Option {
	return func(c *GoogleFormsIntegration) {
		c.continueOnFail = enabled
	}
}

// NewGoogleFormsIntegration creates a new Google Forms integration.
func NewGoogleFormsIntegration(config *api.ProviderConfig, opts ...Option) (*GoogleFormsIntegration, error) {
	if config == nil {
		config = &api.ProviderConfig{}
	}
	if config.BaseURL == "" {
		config.BaseURL = APIBaseURL
	}

	c := &GoogleFormsIntegration{
		BaseProvider:  api.NewBaseProvider(ConnectorName, config),
		logger:        slog.Default(),
		tracer:        otel.GetTracerProvider().Tracer(instrumentationName),
		meterProvider: otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(c)
	}

	inst, err := newInstruments(c.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("googleforms: create metric instruments: %w", err)
	}
	c.instruments = inst
	c.logger = log.WithComponent(c.logger, ConnectorName)

	return c, nil
}

// ExecuteBatch processes items in order, issuing one request per item. By
// default the first failure aborts the batch and is returned as a
// *NodeAPIError; with continue-on-fail the failure is recorded in place.
func (c *GoogleFormsIntegration) ExecuteBatch(ctx context.Context, items []Parameters) ([]Output, error) {
	if !c.HasTransport() {
		return nil, &operation.Error{
			Type:        operation.ErrorTypeAuth,
			Message:     "Missing Google Forms API Credentials",
			SuggestText: "Configure a googleFormsOAuth2Api credential (client ID, client secret and refresh token)",
		}
	}

	runID := uuid.NewString()
	logger := log.WithRunContext(c.logger, runID, NodeName)
	logger.Debug("executing batch", slog.Int("items", len(items)))

	outputs := make([]Output, 0, len(items))
	for i, p := range items {
		out, err := c.executeItem(ctx, logger, i, p)
		if err != nil {
			if !c.continueOnFail {
				return nil, err
			}
			out = Output{Kind: OutputError, Err: err}
		}
		outputs = append(outputs, out)
	}

	return outputs, nil
}

// Execute runs a single operation with raw inputs. It implements operation.Connector.
func (c *GoogleFormsIntegration) Execute(ctx context.Context, op string, inputs map[string]interface{}) (*operation.Result, error) {
	raw := make(map[string]interface{}, len(inputs)+1)
	for k, v := range inputs {
		raw[k] = v
	}
	raw[ParamOperation] = op

	params, err := ResolveParameters(raw)
	if err != nil {
		return nil, newNodeAPIError(0, op, err)
	}

	outputs, err := c.ExecuteBatch(ctx, []Parameters{params})
	if err != nil {
		return nil, err
	}

	out := outputs[0]
	if out.Kind == OutputError {
		return nil, out.Err
	}

	return &operation.Result{
		Response: out.Record(),
		Metadata: map[string]interface{}{
			"operation":   params.Operation,
			"output_kind": out.Kind.String(),
		},
	}, nil
}

// executeItem runs one item inside its own span and records metrics.
func (c *GoogleFormsIntegration) executeItem(ctx context.Context, logger *slog.Logger, item int, p Parameters) (Output, error) {
	ctx, span := c.tracer.Start(ctx, "googleforms."+p.Operation, trace.WithAttributes(
		attribute.String("googleforms.resource", string(p.Resource)),
		attribute.String("googleforms.operation", p.Operation),
		attribute.Int("googleforms.item", item),
	))
	defer span.End()

	logger = logger.With(slog.Int(log.ItemKey, item), slog.String(log.OperationKey, p.Operation))

	start := time.Now()
	out, status, err := c.dispatch(ctx, logger, p)
	elapsed := time.Since(start)
	c.instruments.record(ctx, p.Operation, outcomeOf(err), elapsed)
	logger.Debug("request finished", slog.Int("status", status), log.Duration("elapsed", elapsed.Milliseconds()))

	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}

	if err != nil {
		nodeErr := newNodeAPIError(item, p.Operation, err)
		span.RecordError(nodeErr)
		span.SetStatus(codes.Error, nodeErr.Message)
		logger.Warn("item failed", log.Error(err))
		return Output{}, nodeErr
	}

	span.SetAttributes(attribute.String("googleforms.output_kind", out.Kind.String()))
	return out, nil
}

// dispatch builds, sends and normalizes one request.
func (c *GoogleFormsIntegration) dispatch(ctx context.Context, logger *slog.Logger, p Parameters) (Output, int, error) {
	req, err := c.BuildRequest(p)
	if err != nil {
		return Output{}, 0, err
	}

	logger.Debug("sending request", slog.String("method", req.Method), slog.String("url", req.URL))
	if req.HasBody() {
		log.Trace(logger, "request body", slog.String("body", string(req.Body)))
	}

	resp, err := c.ExecuteRequest(ctx, req.Method, req.URL, req.Headers, req.Body)
	if err != nil {
		var opErr *operation.Error
		if errors.As(err, &opErr) {
			return Output{}, 0, &UpstreamError{Operation: req.Operation, message: opErr.Message, Cause: opErr}
		}
		ue := newUpstreamError(req.Operation, err)
		return Output{}, ue.StatusCode, ue
	}

	log.Trace(logger, "response received", slog.Int("status", resp.StatusCode), slog.Int("bytes", len(resp.Body)))

	return Normalize(resp.Body), resp.StatusCode, nil
}

func outcomeOf(err error) string {
	var (
		validation *ValidationError
		body       *BodyParseError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &validation):
		return "validation_error"
	case errors.As(err, &body):
		return "body_parse_error"
	default:
		return "upstream_error"
	}
}

// Operations returns the list of available operations.
func (c *GoogleFormsIntegration) Operations() []api.OperationInfo {
	specs := OperationSpecs()
	infos := make([]api.OperationInfo, 0, len(specs))
	for _, spec := range specs {
		infos = append(infos, api.OperationInfo{
			Name:        spec.Name,
			Description: spec.Description,
			Category:    string(spec.Resource),
			Method:      spec.Method,
			Tags:        spec.Tags(),
		})
	}
	return infos
}

// OperationSchema returns the schema for an operation.
func (c *GoogleFormsIntegration) OperationSchema(op string) *api.OperationSchema {
	spec, ok := LookupOperation(op)
	if !ok {
		return nil
	}

	params := []api.ParameterInfo{
		{Name: ParamResource, Type: "string", Description: "Resource the operation belongs to", Default: string(spec.Resource)},
	}
	for _, field := range []string{ParamFormID, ParamResponseID, ParamWatchID} {
		if slices.Contains(spec.Required, field) {
			params = append(params, api.ParameterInfo{Name: field, Type: "string", Description: fieldLabel(field), Required: true})
		}
	}
	params = append(params, api.ParameterInfo{
		Name:        ParamQueryParameters,
		Type:        "object",
		Description: "Query string parameters (filter, unpublished, pageSize, pageToken); falsy values are omitted",
	})
	if spec.Body {
		params = append(params, api.ParameterInfo{
			Name:        ParamRequestBody,
			Type:        "string",
			Description: "JSON request body",
			Default:     DefaultRequestBody,
		})
	}

	return &api.OperationSchema{
		Description: spec.Description,
		Parameters:  params,
		ResponseFields: []api.ResponseFieldInfo{
			{Name: "json", Type: "object", Description: "Parsed JSON response"},
			{Name: "text", Type: "string", Description: "Response text when it is not JSON"},
			{Name: "Status Code", Type: "string", Description: "\"204 No Content\" when the response is empty"},
		},
	}
}
