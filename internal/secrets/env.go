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
	"fmt"
	"os"
	"sort"
	"strings"
)

const (
	// EnvBackendPriority is the priority for environment variable backend.
	// This is the highest priority to allow environment overrides.
	EnvBackendPriority = 100

	envSecretPrefix = "CONDUCTOR_SECRET_"

	credentialPrefix    = "googleforms/"
	credentialEnvPrefix = "GOOGLE_FORMS_"
)

// EnvBackend provides read-only access to secrets via environment variables.
// It supports two naming conventions:
//  1. CONDUCTOR_SECRET_<KEY> (normalized, e.g., CONDUCTOR_SECRET_GOOGLEFORMS_REFRESH_TOKEN)
//  2. Credential variables (e.g., GOOGLE_FORMS_REFRESH_TOKEN for googleforms/refresh_token)
type EnvBackend struct {
	lookup func(string) string
}

// NewEnvBackend creates a new environment variable backend.
func NewEnvBackend() *EnvBackend {
	return &EnvBackend{lookup: os.Getenv}
}

// Name returns the backend identifier.
func (e *EnvBackend) Name() string {
	return "env"
}

// Get retrieves a secret from environment variables.
func (e *EnvBackend) Get(ctx context.Context, key string) (string, error) {
	if value := e.lookup(normalizeKey(key)); value != "" {
		return value, nil
	}

	if alias := credentialAlias(key); alias != "" {
		if value := e.lookup(alias); value != "" {
			return value, nil
		}
	}

	return "", fmt.Errorf("%w: environment variable not set", ErrSecretNotFound)
}

// Set returns ErrReadOnlyBackend as environment backend is read-only.
func (e *EnvBackend) Set(ctx context.Context, key string, value string) error {
	return ErrReadOnlyBackend
}

// Delete returns ErrReadOnlyBackend as environment backend is read-only.
func (e *EnvBackend) Delete(ctx context.Context, key string) error {
	return ErrReadOnlyBackend
}

// List returns the credential keys that are set through the environment.
func (e *EnvBackend) List(ctx context.Context) ([]string, error) {
	var keys []string
	for _, key := range CredentialKeys {
		if _, err := e.Get(ctx, key); err == nil {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Available returns true as environment variables are always available.
func (e *EnvBackend) Available() bool {
	return true
}

// Priority returns the backend priority (highest).
func (e *EnvBackend) Priority() int {
	return EnvBackendPriority
}

// ReadOnly returns true as environment backend is read-only.
func (e *EnvBackend) ReadOnly() bool {
	return true
}

// normalizeKey converts a secret key to an environment variable name.
// Example: "googleforms/refresh_token" -> "CONDUCTOR_SECRET_GOOGLEFORMS_REFRESH_TOKEN"
func normalizeKey(key string) string {
	normalized := strings.ToUpper(strings.NewReplacer("/", "_", "-", "_", ".", "_").Replace(key))
	return envSecretPrefix + normalized
}

// credentialAlias returns the GOOGLE_FORMS_* variable for a credential key.
// Example: "googleforms/client_secret" -> "GOOGLE_FORMS_CLIENT_SECRET"
func credentialAlias(key string) string {
	field, ok := strings.CutPrefix(key, credentialPrefix)
	if !ok || field == "" || strings.Contains(field, "/") {
		return ""
	}
	return credentialEnvPrefix + strings.ToUpper(field)
}
