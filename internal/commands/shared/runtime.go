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

package shared

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/tombee/conductor-googleforms/internal/config"
	"github.com/tombee/conductor-googleforms/internal/integration/googleforms"
	"github.com/tombee/conductor-googleforms/internal/jq"
	"github.com/tombee/conductor-googleforms/internal/log"
	"github.com/tombee/conductor-googleforms/internal/operation"
	"github.com/tombee/conductor-googleforms/internal/operation/api"
	"github.com/tombee/conductor-googleforms/internal/secrets"
	"github.com/tombee/conductor-googleforms/internal/tracing"
)

// RuntimeOptions control how a Runtime is assembled.
type RuntimeOptions struct {
	// ConfigPath is the --config value; empty selects the default location.
	ConfigPath string

	// Stderr receives logs and console spans. Stdout is left to command output.
	Stderr io.Writer

	// Verbose forces debug logging.
	Verbose bool

	// ContinueOnFail overrides node.continue_on_fail when non-nil.
	ContinueOnFail *bool

	// Resolver and Secrets override the default secret stores.
	Resolver *secrets.Resolver
	Secrets  *secrets.Registry
}

// Runtime is everything a command needs to execute operations.
type Runtime struct {
	Config      *config.Config
	Logger      *slog.Logger
	Provider    *tracing.Provider
	Integration *googleforms.GoogleFormsIntegration
	Registry    *operation.Registry
	JQ          *jq.Executor
}

// NewRuntime loads configuration, resolves credentials and builds the
// integration with its transport and telemetry. A missing credential is not
// an error here; the integration reports it when an item is executed.
func NewRuntime(ctx context.Context, opts RuntimeOptions) (*Runtime, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, NewConfigError("failed to load configuration", err)
	}
	if opts.ContinueOnFail != nil {
		cfg.Node.ContinueOnFail = *opts.ContinueOnFail
	}

	logCfg := cfg.Log.LoggerConfig(opts.Stderr)
	if opts.Verbose {
		logCfg.Level = "debug"
	}
	logger := log.New(logCfg)

	resolver := opts.Resolver
	if resolver == nil {
		resolver = secrets.NewDefaultResolver()
	}
	registry := opts.Secrets
	if registry == nil {
		registry = secrets.NewDefaultRegistry()
	}

	if err := cfg.ResolveSecrets(ctx, registry); err != nil {
		return nil, NewConfigError("failed to resolve credential", err)
	}
	if err := cfg.FillFromSecrets(ctx, resolver); err != nil {
		return nil, NewConfigError("failed to read stored credential", err)
	}
	if err := cfg.ValidateCredential(); err != nil {
		return nil, NewConfigError("invalid credential", err)
	}

	providerCfg := &api.ProviderConfig{}
	creds := CredentialValues(cfg)
	if !creds.IsZero() {
		tr, err := googleforms.NewTransport(creds, googleforms.TransportOptions{
			Timeout:  cfg.Transport.Timeout,
			Retry:    &cfg.Transport.Retry,
			TokenURL: cfg.Credential.TokenURL,
		})
		if err != nil {
			return nil, NewConfigError("failed to create transport", err)
		}
		providerCfg.Transport = tr
	}
	logger.Debug("credential resolved",
		slog.Bool("present", !creds.IsZero()),
		slog.Bool("refresh_token", creds.RefreshToken != ""),
	)

	provider, err := tracing.NewProvider(ctx, cfg.Tracing,
		tracing.WithConsoleWriter(opts.Stderr),
		tracing.WithLogger(logger),
		tracing.WithGlobal(),
	)
	if err != nil {
		return nil, NewConfigError("failed to initialize tracing", err)
	}

	integration, err := googleforms.NewGoogleFormsIntegration(providerCfg,
		googleforms.WithLogger(logger),
		googleforms.WithTracerProvider(provider.TracerProvider()),
		googleforms.WithMeterProvider(provider.MeterProvider()),
		googleforms.WithContinueOnFail(cfg.Node.ContinueOnFail),
	)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, NewExecutionError("failed to create integration", err)
	}

	ops := operation.NewRegistry()
	ops.Register(googleforms.ConnectorName, integration)

	return &Runtime{
		Config:      cfg,
		Logger:      logger,
		Provider:    provider,
		Integration: integration,
		Registry:    ops,
		JQ:          jq.FromConfig(cfg.JQ),
	}, nil
}

// Close flushes and stops telemetry.
func (r *Runtime) Close(ctx context.Context) error {
	if err := r.Provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown telemetry: %w", err)
	}
	return nil
}

// CredentialValues extracts the resolved credential from cfg.
func CredentialValues(cfg *config.Config) googleforms.CredentialValues {
	return googleforms.CredentialValues{
		ClientID:     cfg.Credential.ClientID,
		ClientSecret: cfg.Credential.ClientSecret,
		RefreshToken: cfg.Credential.RefreshToken,
		AccessToken:  cfg.Credential.AccessToken,
	}
}
