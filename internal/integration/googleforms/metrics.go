package googleforms

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// instruments exported by the Prometheus exporter as
// googleforms_requests_total and googleforms_request_duration_seconds.
type instruments struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newInstruments(mp metric.MeterProvider) (*instruments, error) {
	meter := mp.Meter(instrumentationName)

	requests, err := meter.Int64Counter(
		"googleforms.requests",
		metric.WithDescription("Google Forms items processed, by operation and outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"googleforms.request.duration",
		metric.WithDescription("Time to build, send and normalize one Google Forms request"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &instruments{requests: requests, duration: duration}, nil
}

func (i *instruments) record(ctx context.Context, op, outcome string, elapsed time.Duration) {
	i.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
	i.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("operation", op),
	))
}
