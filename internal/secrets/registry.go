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

package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Provider resolves the key part of a scheme-qualified secret reference.
type Provider interface {
	// Scheme returns the reference scheme this provider serves (e.g. "env").
	Scheme() string

	// Resolve returns the secret value for key.
	Resolve(ctx context.Context, key string) (string, error)
}

// ResolutionError reports a failed reference resolution without leaking
// the secret value.
type ResolutionError struct {
	Reference string
	Scheme    string
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	if e.Scheme != "" {
		return fmt.Sprintf("secret %s (%s): %s", e.Reference, e.Scheme, e.Message)
	}
	return fmt.Sprintf("secret %s: %s", e.Reference, e.Message)
}

// Unwrap returns the underlying error.
func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

// IsUserVisible implements pkg/errors.UserVisibleError.
func (e *ResolutionError) IsUserVisible() bool {
	return true
}

// UserMessage implements pkg/errors.UserVisibleError.
func (e *ResolutionError) UserMessage() string {
	return e.Error()
}

// Suggestion implements pkg/errors.UserVisibleError.
func (e *ResolutionError) Suggestion() string {
	switch e.Scheme {
	case "env":
		return "Export the referenced environment variable before running"
	case "keychain":
		return "Store the value with 'conductor-googleforms credentials set <key>'"
	default:
		return "Use ${VAR}, env:VAR or keychain:<key> to reference a secret"
	}
}

// Registry routes secret references to providers by scheme.
//
// Supported reference formats:
//   - ${VAR_NAME} -> environment variable provider
//   - env:VAR_NAME -> environment variable provider
//   - keychain:key -> keychain provider
//
// Anything else is treated as a literal value.
type Registry struct {
	providers map[string]Provider
}

var (
	envVarRegex = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)
	schemeRegex = regexp.MustCompile(`^([a-z][a-z0-9]*):(.*)$`)
)

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// NewDefaultRegistry returns a registry with the env and keychain providers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(NewEnvProvider())
	_ = r.Register(NewKeychainProvider(NewKeychainBackend()))
	return r
}

// Register adds a provider. Returns an error if the scheme is already taken.
func (r *Registry) Register(provider Provider) error {
	scheme := provider.Scheme()
	if _, exists := r.providers[scheme]; exists {
		return fmt.Errorf("provider for scheme %q already registered", scheme)
	}
	r.providers[scheme] = provider
	return nil
}

// IsReference reports whether value is a secret reference for a registered scheme.
func (r *Registry) IsReference(value string) bool {
	scheme, _, ok := parseReference(value)
	if !ok {
		return false
	}
	_, exists := r.providers[scheme]
	return exists
}

// Resolve returns the value behind reference. Literal values are returned as-is.
func (r *Registry) Resolve(ctx context.Context, reference string) (string, error) {
	scheme, key, ok := parseReference(reference)
	if !ok {
		return reference, nil
	}

	provider, exists := r.providers[scheme]
	if !exists {
		// A colon in a literal (e.g. a URL) is not a reference.
		return reference, nil
	}

	if strings.TrimSpace(key) == "" {
		return "", &ResolutionError{Reference: reference, Scheme: scheme, Message: "empty key"}
	}

	value, err := provider.Resolve(ctx, key)
	if err != nil {
		msg := "secret resolution failed"
		if errors.Is(err, ErrSecretNotFound) {
			msg = "not found"
		} else if errors.Is(err, ErrBackendUnavailable) {
			msg = "backend unavailable or locked"
		}
		return "", &ResolutionError{Reference: reference, Scheme: scheme, Message: msg, Cause: err}
	}

	return value, nil
}

func parseReference(reference string) (scheme, key string, ok bool) {
	if matches := envVarRegex.FindStringSubmatch(reference); matches != nil {
		return "env", matches[1], true
	}
	if matches := schemeRegex.FindStringSubmatch(reference); matches != nil {
		return matches[1], matches[2], true
	}
	return "", "", false
}

// EnvProvider resolves env:VAR and ${VAR} references.
type EnvProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvProvider creates an environment variable provider.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{lookup: os.LookupEnv}
}

// Scheme returns "env".
func (e *EnvProvider) Scheme() string {
	return "env"
}

// Resolve returns the value of the environment variable named key.
func (e *EnvProvider) Resolve(ctx context.Context, key string) (string, error) {
	value, ok := e.lookup(key)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: environment variable %s not set", ErrSecretNotFound, key)
	}
	return value, nil
}

// KeychainProvider resolves keychain:<key> references through a backend.
type KeychainProvider struct {
	backend SecretBackend
}

// NewKeychainProvider creates a keychain provider over backend.
func NewKeychainProvider(backend SecretBackend) *KeychainProvider {
	return &KeychainProvider{backend: backend}
}

// Scheme returns "keychain".
func (k *KeychainProvider) Scheme() string {
	return "keychain"
}

// Resolve returns the keychain entry named key.
func (k *KeychainProvider) Resolve(ctx context.Context, key string) (string, error) {
	if !k.backend.Available() {
		return "", fmt.Errorf("%w: keychain service unavailable", ErrBackendUnavailable)
	}
	return k.backend.Get(ctx, key)
}
