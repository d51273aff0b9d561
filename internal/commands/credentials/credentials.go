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

package credentials

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/tombee/conductor-googleforms/internal/commands/shared"
	"github.com/tombee/conductor-googleforms/internal/config"
	"github.com/tombee/conductor-googleforms/internal/integration/googleforms"
	"github.com/tombee/conductor-googleforms/internal/log"
	"github.com/tombee/conductor-googleforms/internal/secrets"
)

const keychainBackend = "keychain"

// newResolver returns the secret stores used by every subcommand.
var newResolver = secrets.NewDefaultResolver

// NewCommand creates the credentials command
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the googleFormsOAuth2Api credential",
		Long: `Inspect and configure the OAuth2 credential used to call the Google Forms API.

A credential needs a client ID, a client secret and a refresh token. Obtain
the refresh token once with:

  conductor-googleforms credentials auth-url
  conductor-googleforms credentials exchange <code>

Values are read from the config file, GOOGLE_FORMS_* environment variables
and the system keychain, in that order of precedence.`,
	}

	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newAuthURLCommand())
	cmd.AddCommand(newExchangeCommand())
	cmd.AddCommand(newSetCommand())
	cmd.AddCommand(newDeleteCommand())

	return cmd
}

// StoredKey describes where one credential field comes from.
type StoredKey struct {
	Key     string `json:"key"`
	Source  string `json:"source,omitempty"`
	Preview string `json:"preview,omitempty"`
}

// Status is the output of credentials show.
type Status struct {
	Credential googleforms.CredentialDescription `json:"credential"`
	Fields     []StoredKey                       `json:"fields"`
	Ready      bool                              `json:"ready"`
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the credential type and which fields are configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := loadStatus(cmd.Context())
			if err != nil {
				return err
			}

			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), status)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", shared.Header.Render(status.Credential.DisplayName), status.Credential.Name)
			fmt.Fprintf(out, "  %s %s\n", shared.RenderLabel("grant:    "), status.Credential.GrantType)
			fmt.Fprintf(out, "  %s %s\n", shared.RenderLabel("auth url: "), status.Credential.AuthURL)
			fmt.Fprintf(out, "  %s %s\n\n", shared.RenderLabel("scopes:   "), strings.Join(status.Credential.Scopes, " "))

			for _, f := range status.Fields {
				if f.Source == "" {
					fmt.Fprintln(out, shared.RenderWarn(fmt.Sprintf("%-28s not set", f.Key)))
					continue
				}
				fmt.Fprintln(out, shared.RenderOK(fmt.Sprintf("%-28s %s (%s)", f.Key, f.Preview, f.Source)))
			}

			fmt.Fprintln(out)
			if status.Ready {
				fmt.Fprintln(out, shared.RenderOK("credential is ready"))
			} else {
				fmt.Fprintln(out, shared.RenderError("credential is incomplete; run 'conductor-googleforms credentials auth-url'"))
			}
			return nil
		},
	}
}

// loadStatus reports each credential field with its source, without values.
func loadStatus(ctx context.Context) (*Status, error) {
	cfg, err := config.Load(shared.GetConfigPath())
	if err != nil {
		return nil, shared.NewConfigError("failed to load configuration", err)
	}

	fromConfig := map[string]string{
		secrets.KeyClientID:     cfg.Credential.ClientID,
		secrets.KeyClientSecret: cfg.Credential.ClientSecret,
		secrets.KeyRefreshToken: cfg.Credential.RefreshToken,
		secrets.KeyAccessToken:  cfg.Credential.AccessToken,
	}

	resolver := newResolver()
	stored := map[string]string{}
	if metas, err := resolver.List(ctx); err == nil {
		for _, m := range metas {
			stored[m.Key] = m.Backend
		}
	}

	registry := secrets.NewDefaultRegistry()
	present := map[string]bool{}

	status := &Status{Credential: googleforms.Credential()}
	for _, key := range secrets.CredentialKeys {
		field := StoredKey{Key: key}
		switch {
		case fromConfig[key] != "":
			field.Source = "config or environment"
			if registry.IsReference(fromConfig[key]) {
				field.Source = "config reference " + fromConfig[key]
				if value, err := registry.Resolve(ctx, fromConfig[key]); err == nil {
					field.Preview = preview(key, value)
				}
			} else {
				field.Preview = preview(key, fromConfig[key])
			}
		case stored[key] != "":
			field.Source = stored[key]
			if value, err := resolver.Get(ctx, key); err == nil {
				field.Preview = preview(key, value)
			}
		}
		present[key] = field.Source != ""
		status.Fields = append(status.Fields, field)
	}

	status.Ready = present[secrets.KeyAccessToken] ||
		(present[secrets.KeyClientID] && present[secrets.KeyClientSecret] && present[secrets.KeyRefreshToken])

	return status, nil
}

// preview shows client IDs in full, tokens by their last characters and
// the client secret not at all.
func preview(key, value string) string {
	switch key {
	case secrets.KeyClientID:
		return value
	case secrets.KeyClientSecret:
		return log.SanitizeSecret(value)
	default:
		return log.SanitizeToken(value)
	}
}

func newAuthURLCommand() *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "auth-url",
		Short: "Print the Google consent URL for offline access",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			oauthCfg, err := loadOAuth2Config(cmd.Context(), false)
			if err != nil {
				return err
			}
			if state == "" {
				state = uuid.NewString()
			}

			url := googleforms.AuthCodeURL(oauthCfg, state)
			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), map[string]string{"url": url, "state": state})
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "OAuth2 state value (default: random)")

	return cmd
}

func newExchangeCommand() *cobra.Command {
	var noStore bool

	cmd := &cobra.Command{
		Use:   "exchange [code]",
		Short: "Exchange an authorization code and store the refresh token",
		Long: `Exchange the authorization code returned by the consent screen for a token.
The refresh token is stored in the system keychain unless --no-store is set,
in which case the token is printed as JSON.

When the code is omitted it is read from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			oauthCfg, err := loadOAuth2Config(ctx, true)
			if err != nil {
				return err
			}

			var code string
			if len(args) == 1 {
				code = strings.TrimSpace(args[0])
			} else {
				code, err = shared.ReadSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "Authorization code: ")
				if err != nil {
					return shared.NewInvalidInputError("failed to read authorization code", err)
				}
			}

			token, err := googleforms.Exchange(ctx, oauthCfg, code)
			if err != nil {
				return shared.NewAPIError("authorization code exchange failed", err)
			}

			if noStore {
				return shared.EmitJSON(cmd.OutOrStdout(), token)
			}
			if token.RefreshToken == "" {
				return shared.NewAPIError("token response carried no refresh token", nil)
			}

			if err := newResolver().Set(ctx, secrets.KeyRefreshToken, token.RefreshToken, keychainBackend); err != nil {
				return shared.NewConfigError("failed to store refresh token", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(fmt.Sprintf("refresh token stored in keychain as %s", secrets.KeyRefreshToken)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noStore, "no-store", false, "Print the token instead of storing it")

	return cmd
}

// loadOAuth2Config builds the client configuration from config and stored
// secrets. The client secret is only required for the exchange.
func loadOAuth2Config(ctx context.Context, needSecret bool) (*oauth2.Config, error) {
	cfg, err := config.Load(shared.GetConfigPath())
	if err != nil {
		return nil, shared.NewConfigError("failed to load configuration", err)
	}
	if err := cfg.ResolveSecrets(ctx, secrets.NewDefaultRegistry()); err != nil {
		return nil, shared.NewConfigError("failed to resolve credential", err)
	}
	if err := cfg.FillFromSecrets(ctx, newResolver()); err != nil {
		return nil, shared.NewConfigError("failed to read stored credential", err)
	}

	if cfg.Credential.ClientID == "" {
		return nil, shared.NewConfigError("client ID is not configured", fmt.Errorf("set credential.client_id, GOOGLE_FORMS_CLIENT_ID or run 'credentials set client_id'"))
	}
	if needSecret && cfg.Credential.ClientSecret == "" {
		return nil, shared.NewConfigError("client secret is not configured", fmt.Errorf("set credential.client_secret, GOOGLE_FORMS_CLIENT_SECRET or run 'credentials set client_secret'"))
	}

	oauthCfg := googleforms.OAuth2Config(cfg.Credential.ClientID, cfg.Credential.ClientSecret, cfg.Credential.RedirectURL)
	if cfg.Credential.TokenURL != "" {
		oauthCfg.Endpoint.TokenURL = cfg.Credential.TokenURL
	}
	return oauthCfg, nil
}

// secretKey maps a short field name (client_id) or a full key to the stored key.
func secretKey(name string) (string, error) {
	key := name
	if !strings.Contains(name, "/") {
		key = "googleforms/" + name
	}
	for _, k := range secrets.CredentialKeys {
		if k == key {
			return key, nil
		}
	}

	valid := make([]string, 0, len(secrets.CredentialKeys))
	for _, k := range secrets.CredentialKeys {
		valid = append(valid, strings.TrimPrefix(k, "googleforms/"))
	}
	sort.Strings(valid)
	return "", shared.NewInvalidInputError(fmt.Sprintf("unknown credential field %q (valid: %s)", name, strings.Join(valid, ", ")), nil)
}

func newSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <field>",
		Short: "Store a credential field in the system keychain",
		Long: `Store one credential field (client_id, client_secret, refresh_token or
access_token) in the system keychain. The value is read from stdin, without
echo when stdin is a terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secretKey(args[0])
			if err != nil {
				return err
			}

			value, err := shared.ReadSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("%s: ", args[0]))
			if err != nil {
				return shared.NewInvalidInputError("failed to read value", err)
			}

			if err := newResolver().Set(cmd.Context(), key, value, keychainBackend); err != nil {
				return shared.NewConfigError(fmt.Sprintf("failed to store %s", key), err)
			}
			if !shared.GetQuiet() {
				fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(fmt.Sprintf("%s stored in keychain", key)))
			}
			return nil
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <field>",
		Short: "Remove a credential field from the system keychain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secretKey(args[0])
			if err != nil {
				return err
			}

			if err := newResolver().Delete(cmd.Context(), key, keychainBackend); err != nil {
				return shared.NewConfigError(fmt.Sprintf("failed to delete %s", key), err)
			}
			if !shared.GetQuiet() {
				fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(fmt.Sprintf("%s removed from keychain", key)))
			}
			return nil
		},
	}
}
