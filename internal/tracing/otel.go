// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns the SDK tracer and meter providers.
type Provider struct {
	tp       *sdktrace.TracerProvider
	mp       *metric.MeterProvider
	registry *prom.Registry
}

// Option customizes NewProvider.
type Option func(*providerOptions)

type providerOptions struct {
	console       io.Writer
	logger        *slog.Logger
	spanOpts      []sdktrace.TracerProviderOption
	installGlobal bool
}

// WithConsoleWriter sets where the console exporter writes. Defaults to stderr.
func WithConsoleWriter(w io.Writer) Option {
	return func(o *providerOptions) { o.console = w }
}

// WithLogger sets the logger used for exporter setup warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(o *providerOptions) { o.logger = logger }
}

// WithSpanOptions appends raw SDK options, e.g. sdktrace.WithSyncer in tests.
func WithSpanOptions(opts ...sdktrace.TracerProviderOption) Option {
	return func(o *providerOptions) { o.spanOpts = append(o.spanOpts, opts...) }
}

// WithGlobal installs the providers and the W3C propagator as otel globals.
func WithGlobal() Option {
	return func(o *providerOptions) { o.installGlobal = true }
}

// NewProvider builds tracer and meter providers from cfg. Spans are exported
// only when cfg.Enabled is set; metrics are always collected into a private
// Prometheus registry.
func NewProvider(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	o := &providerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracing config: %w", err)
	}

	// Empty schema URL avoids conflicts when merging with the default resource.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(NewSampler(cfg.Sampling)),
	}
	if cfg.Enabled {
		for _, sp := range CreateSpanProcessors(ctx, cfg, o.console, o.logger) {
			tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
		}
	}
	tpOpts = append(tpOpts, o.spanOpts...)

	tp := sdktrace.NewTracerProvider(tpOpts...)

	registry := prom.NewRegistry()
	promExporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(promExporter),
	)

	p := &Provider{
		tp:       tp,
		mp:       mp,
		registry: registry,
	}

	if o.installGlobal {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		otel.SetTextMapPropagator(W3CPropagator())
	}

	return p, nil
}

// TracerProvider returns the SDK tracer provider.
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.tp
}

// MeterProvider returns the SDK meter provider.
func (p *Provider) MeterProvider() otelmetric.MeterProvider {
	return p.mp
}

// MetricsHandler returns an HTTP handler for the Prometheus metrics endpoint.
func (p *Provider) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes any pending spans and releases resources.
func (p *Provider) Shutdown(ctx context.Context) error {
	return errors.Join(p.tp.Shutdown(ctx), p.mp.Shutdown(ctx))
}
