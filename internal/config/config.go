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

// Package config loads the connector configuration from YAML and the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tombee/conductor-googleforms/internal/jq"
	"github.com/tombee/conductor-googleforms/internal/log"
	"github.com/tombee/conductor-googleforms/internal/operation/transport"
	"github.com/tombee/conductor-googleforms/internal/secrets"
	"github.com/tombee/conductor-googleforms/internal/tracing"
	conductorerrors "github.com/tombee/conductor-googleforms/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Config represents the complete connector configuration.
type Config struct {
	Credential CredentialConfig `yaml:"credential"`
	Transport  TransportConfig  `yaml:"transport"`
	Node       NodeConfig       `yaml:"node"`
	Log        LogConfig        `yaml:"log"`
	Tracing    tracing.Config   `yaml:"tracing"`
	JQ         jq.Config        `yaml:"jq"`
}

// CredentialConfig holds the googleFormsOAuth2Api credential. Every field
// accepts a secret reference (${VAR}, env:VAR, keychain:<key>).
type CredentialConfig struct {
	// ClientID is the OAuth2 client ID.
	// Environment: GOOGLE_FORMS_CLIENT_ID
	ClientID string `yaml:"client_id,omitempty"`

	// ClientSecret is the OAuth2 client secret.
	// Environment: GOOGLE_FORMS_CLIENT_SECRET
	ClientSecret string `yaml:"client_secret,omitempty"`

	// RefreshToken is the offline refresh token from the consent flow.
	// Environment: GOOGLE_FORMS_REFRESH_TOKEN
	RefreshToken string `yaml:"refresh_token,omitempty"`

	// AccessToken is a pre-issued bearer token, used when no refresh token is set.
	// Environment: GOOGLE_FORMS_ACCESS_TOKEN
	AccessToken string `yaml:"access_token,omitempty"`

	// TokenURL overrides the Google token endpoint.
	TokenURL string `yaml:"token_url,omitempty"`

	// RedirectURL is the OAuth2 redirect URI used by auth-url and exchange.
	RedirectURL string `yaml:"redirect_url,omitempty"`
}

// TransportConfig tunes the authenticated HTTP transport.
type TransportConfig struct {
	// Timeout bounds each HTTP attempt.
	// Environment: GOOGLE_FORMS_TIMEOUT
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Retry configures transport retries. Disabled (one attempt) by default.
	// Environment: GOOGLE_FORMS_MAX_ATTEMPTS
	Retry transport.RetryConfig `yaml:"retry"`
}

// NodeConfig holds node-level execution switches.
type NodeConfig struct {
	// ContinueOnFail records a per-item error instead of aborting the batch.
	// Environment: GOOGLE_FORMS_CONTINUE_ON_FAIL
	ContinueOnFail bool `yaml:"continue_on_fail"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	// Environment: LOG_LEVEL, CONDUCTOR_LOG_LEVEL, CONDUCTOR_DEBUG
	// Default: info
	Level string `yaml:"level"`

	// Format sets the output format (json, text).
	// Environment: LOG_FORMAT
	// Default: json
	Format string `yaml:"format"`

	// AddSource adds source file and line information to logs.
	// Environment: LOG_SOURCE
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// LoggerConfig converts the section to a log.Config writing to out.
func (l LogConfig) LoggerConfig(out io.Writer) *log.Config {
	return &log.Config{
		Level:     l.Level,
		Format:    log.Format(l.Format),
		Output:    out,
		AddSource: l.AddSource,
	}
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Transport: TransportConfig{
			Timeout: 30 * time.Second,
			Retry:   *transport.DefaultRetryConfig(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: tracing.DefaultConfig(),
		JQ: jq.Config{
			Timeout:      jq.DefaultTimeout,
			MaxInputSize: jq.DefaultMaxInputSize,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file, then
// environment variables, then validation. An empty configPath falls back to
// DefaultPath when that file exists.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	path, err := resolvePath(configPath)
	if err != nil {
		return nil, &conductorerrors.ConfigError{
			Key:    "config_file",
			Reason: "failed to locate config file",
			Cause:  err,
		}
	}

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, &conductorerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", path),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, &conductorerrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// ResolveSecrets replaces secret references in the credential section with
// their values.
func (c *Config) ResolveSecrets(ctx context.Context, registry *secrets.Registry) error {
	fields := []struct {
		key   string
		value *string
	}{
		{"credential.client_id", &c.Credential.ClientID},
		{"credential.client_secret", &c.Credential.ClientSecret},
		{"credential.refresh_token", &c.Credential.RefreshToken},
		{"credential.access_token", &c.Credential.AccessToken},
	}

	for _, f := range fields {
		if *f.value == "" {
			continue
		}
		resolved, err := registry.Resolve(ctx, *f.value)
		if err != nil {
			return &conductorerrors.ConfigError{
				Key:    f.key,
				Reason: "failed to resolve secret reference",
				Cause:  err,
			}
		}
		*f.value = resolved
	}

	return nil
}

// FillFromSecrets sets empty credential fields from stored secrets
// (environment or keychain). Missing secrets are not an error.
func (c *Config) FillFromSecrets(ctx context.Context, resolver *secrets.Resolver) error {
	fields := []struct {
		key   string
		value *string
	}{
		{secrets.KeyClientID, &c.Credential.ClientID},
		{secrets.KeyClientSecret, &c.Credential.ClientSecret},
		{secrets.KeyRefreshToken, &c.Credential.RefreshToken},
		{secrets.KeyAccessToken, &c.Credential.AccessToken},
	}

	for _, f := range fields {
		if *f.value != "" {
			continue
		}
		value, err := resolver.Get(ctx, f.key)
		if err != nil {
			if errors.Is(err, secrets.ErrSecretNotFound) || errors.Is(err, secrets.ErrBackendUnavailable) {
				continue
			}
			return conductorerrors.Wrapf(err, "failed to read %s", f.key)
		}
		*f.value = value
	}

	return nil
}

// applyDefaults fills zero values left by a partial config file.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Transport.Timeout == 0 {
		c.Transport.Timeout = defaults.Transport.Timeout
	}
	if c.Transport.Retry.MaxAttempts == 0 {
		c.Transport.Retry.MaxAttempts = defaults.Transport.Retry.MaxAttempts
	}
	if c.Transport.Retry.InitialBackoff == 0 {
		c.Transport.Retry.InitialBackoff = defaults.Transport.Retry.InitialBackoff
	}
	if c.Transport.Retry.MaxBackoff == 0 {
		c.Transport.Retry.MaxBackoff = defaults.Transport.Retry.MaxBackoff
	}
	if c.Transport.Retry.BackoffFactor == 0 {
		c.Transport.Retry.BackoffFactor = defaults.Transport.Retry.BackoffFactor
	}
	if len(c.Transport.Retry.RetryableErrors) == 0 {
		c.Transport.Retry.RetryableErrors = defaults.Transport.Retry.RetryableErrors
	}

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = defaults.Tracing.ServiceName
	}
	if c.Tracing.ServiceVersion == "" {
		c.Tracing.ServiceVersion = defaults.Tracing.ServiceVersion
	}
	if c.Tracing.BatchSize == 0 {
		c.Tracing.BatchSize = defaults.Tracing.BatchSize
	}
	if c.Tracing.BatchInterval == 0 {
		c.Tracing.BatchInterval = defaults.Tracing.BatchInterval
	}

	if c.JQ.Timeout == 0 {
		c.JQ.Timeout = defaults.JQ.Timeout
	}
	if c.JQ.MaxInputSize == 0 {
		c.JQ.MaxInputSize = defaults.JQ.MaxInputSize
	}
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return conductorerrors.Wrapf(err, "failed to read config file %s", path)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("GOOGLE_FORMS_CLIENT_ID"); val != "" {
		c.Credential.ClientID = val
	}
	if val := os.Getenv("GOOGLE_FORMS_CLIENT_SECRET"); val != "" {
		c.Credential.ClientSecret = val
	}
	if val := os.Getenv("GOOGLE_FORMS_REFRESH_TOKEN"); val != "" {
		c.Credential.RefreshToken = val
	}
	if val := os.Getenv("GOOGLE_FORMS_ACCESS_TOKEN"); val != "" {
		c.Credential.AccessToken = val
	}

	if val := os.Getenv("GOOGLE_FORMS_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Transport.Timeout = duration
		}
	}
	if val := os.Getenv("GOOGLE_FORMS_MAX_ATTEMPTS"); val != "" {
		if attempts, err := strconv.Atoi(val); err == nil {
			c.Transport.Retry.MaxAttempts = attempts
		}
	}
	if val := os.Getenv("GOOGLE_FORMS_CONTINUE_ON_FAIL"); val != "" {
		c.Node.ContinueOnFail = val == "1" || strings.ToLower(val) == "true"
	}

	lc := log.ApplyEnv(c.Log.LoggerConfig(nil))
	c.Log.Level = lc.Level
	c.Log.Format = string(lc.Format)
	c.Log.AddSource = lc.AddSource
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Transport.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("transport.timeout must be positive, got %v", c.Transport.Timeout))
	}
	if err := c.Transport.Retry.Validate(); err != nil {
		errs = append(errs, "transport.retry."+err.Error())
	}

	if !log.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, error], got %q", c.Log.Level))
	}
	if c.Log.Format != string(log.FormatJSON) && c.Log.Format != string(log.FormatText) {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, "tracing."+err.Error())
	}

	if c.JQ.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("jq.timeout must not be negative, got %v", c.JQ.Timeout))
	}
	if c.JQ.MaxInputSize < 0 {
		errs = append(errs, fmt.Sprintf("jq.max_input_size must not be negative, got %d", c.JQ.MaxInputSize))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}

	return nil
}

// ValidateCredential checks the credential once secrets are resolved. It is
// separate from Validate because stored secrets are filled in after Load.
func (c *Config) ValidateCredential() error {
	if c.Credential.RefreshToken != "" && c.Credential.ClientID == "" {
		return &conductorerrors.ConfigError{
			Key:    "credential.client_id",
			Reason: "client_id is required when refresh_token is set",
		}
	}
	return nil
}

// resolvePath returns configPath, or DefaultPath when it exists, or "".
func resolvePath(configPath string) (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	path, err := DefaultPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return path, nil
}
