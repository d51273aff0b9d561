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
Package secrets stores and resolves the credential values used by the
Google Forms connector.

Secrets live in a priority-ordered chain of backends:

	env      - Environment variables (CONDUCTOR_SECRET_*, GOOGLE_FORMS_*)
	keychain - OS keychain (macOS Keychain, Linux Secret Service, Windows Credential Manager)

The Resolver queries backends in priority order (env first, so an exported
variable always overrides a stored value) and writes to the first writable one.

# References

Configuration values may be secret references instead of literal values.
The Registry routes a reference to a provider by scheme:

	${GOOGLE_FORMS_CLIENT_SECRET}  - environment variable
	env:GOOGLE_FORMS_CLIENT_SECRET - environment variable
	keychain:googleforms/refresh_token - keychain entry

Any other string is returned unchanged.

	registry := secrets.NewDefaultRegistry()
	secret, err := registry.Resolve(ctx, cfg.Credential.ClientSecret)

Resolution errors never include the resolved value.
*/
package secrets
