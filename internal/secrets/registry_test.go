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
	"strings"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestRegistry_Resolve(t *testing.T) {
	keyring.MockInit()
	if err := keyring.Set(KeychainService, "googleforms/client_secret", "kc-secret"); err != nil {
		t.Fatalf("keyring.Set() error = %v", err)
	}
	t.Setenv("FORMS_TEST_SECRET", "env-secret")

	r := NewDefaultRegistry()
	ctx := context.Background()

	tests := []struct {
		reference string
		want      string
	}{
		{"${FORMS_TEST_SECRET}", "env-secret"},
		{"env:FORMS_TEST_SECRET", "env-secret"},
		{"keychain:googleforms/client_secret", "kc-secret"},
		{"plain-value", "plain-value"},
		{"https://oauth2.googleapis.com/token", "https://oauth2.googleapis.com/token"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.reference, func(t *testing.T) {
			got, err := r.Resolve(ctx, tt.reference)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegistry_ResolveErrors(t *testing.T) {
	keyring.MockInit()
	t.Setenv("FORMS_TEST_UNSET", "")

	r := NewDefaultRegistry()
	ctx := context.Background()

	tests := []struct {
		reference  string
		wantScheme string
		wantMsg    string
	}{
		{"${FORMS_TEST_UNSET}", "env", "not found"},
		{"keychain:missing", "keychain", "not found"},
		{"env:", "env", "empty key"},
	}

	for _, tt := range tests {
		t.Run(tt.reference, func(t *testing.T) {
			_, err := r.Resolve(ctx, tt.reference)

			var resErr *ResolutionError
			if !errors.As(err, &resErr) {
				t.Fatalf("Resolve() error = %v, want *ResolutionError", err)
			}
			if resErr.Scheme != tt.wantScheme {
				t.Errorf("Scheme = %q, want %q", resErr.Scheme, tt.wantScheme)
			}
			if !strings.Contains(resErr.Error(), tt.wantMsg) {
				t.Errorf("Error() = %q, want it to contain %q", resErr.Error(), tt.wantMsg)
			}
			if resErr.Suggestion() == "" {
				t.Errorf("expected a suggestion")
			}
		})
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(NewEnvProvider()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(NewEnvProvider()); err == nil {
		t.Errorf("expected duplicate scheme registration to fail")
	}
}

func TestRegistry_IsReference(t *testing.T) {
	keyring.MockInit()
	r := NewDefaultRegistry()

	for ref, want := range map[string]bool{
		"${A}":           true,
		"env:A":          true,
		"keychain:a":     true,
		"vault:a":        false,
		"https://x":      false,
		"literal-secret": false,
	} {
		if got := r.IsReference(ref); got != want {
			t.Errorf("IsReference(%q) = %v, want %v", ref, got, want)
		}
	}
}
