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

/*
Package tracing wires OpenTelemetry tracing and metrics for the Google Forms
connector.

A Provider owns an SDK TracerProvider fed by the configured span exporters
(console, OTLP gRPC, OTLP HTTP) and a MeterProvider read by a Prometheus
exporter. The connector receives both through its options:

	provider, err := tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
	    return err
	}
	defer provider.Shutdown(context.Background())

	node, err := googleforms.NewGoogleFormsIntegration(providerCfg,
	    googleforms.WithTracerProvider(provider.TracerProvider()),
	    googleforms.WithMeterProvider(provider.MeterProvider()),
	)

MetricsHandler serves the Prometheus text exposition of the recorded
metrics (googleforms_requests_total, googleforms_request_duration_seconds).

The W3C trace context propagator is installed globally so outbound API
requests carry a traceparent header.
*/
package tracing
