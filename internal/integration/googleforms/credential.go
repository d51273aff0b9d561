package googleforms

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	forms "google.golang.org/api/forms/v1"

	"github.com/tombee/conductor-googleforms/internal/operation/transport"
)

// CredentialName identifies the credential type the node requires.
const CredentialName = "googleFormsOAuth2Api"

// OAuth2 endpoints and fixed authorization parameters.
const (
	AuthURL             = "https://accounts.google.com/o/oauth2/v2/auth"
	AuthQueryParameters = "access_type=offline&prompt=consent"
)

// TokenURL is Google's OAuth2 token endpoint.
var TokenURL = google.Endpoint.TokenURL

// Scopes requested by the credential.
var Scopes = []string{
	forms.DriveScope,
	forms.DriveFileScope,
	forms.DriveReadonlyScope,
	forms.FormsBodyScope,
	forms.FormsBodyReadonlyScope,
	forms.FormsResponsesReadonlyScope,
}

// CredentialDescription describes the credential type to the host.
type CredentialDescription struct {
	Name                string   `json:"name"`
	DisplayName         string   `json:"displayName"`
	Extends             []string `json:"extends"`
	DocumentationURL    string   `json:"documentationUrl"`
	GrantType           string   `json:"grantType"`
	AuthURL             string   `json:"authUrl"`
	AccessTokenURL      string   `json:"accessTokenUrl"`
	AuthQueryParameters string   `json:"authQueryParameters"`
	Authentication      string   `json:"authentication"`
	Scopes              []string `json:"scopes"`
}

// Credential returns the credential type description.
func Credential() CredentialDescription {
	return CredentialDescription{
		Name:                CredentialName,
		DisplayName:         "Google Forms OAuth2 API",
		Extends:             []string{"googleOAuth2Api"},
		DocumentationURL:    "https://developers.google.com/workspace/forms/api/guides",
		GrantType:           "authorizationCode",
		AuthURL:             AuthURL,
		AccessTokenURL:      TokenURL,
		AuthQueryParameters: AuthQueryParameters,
		Authentication:      "header",
		Scopes:              append([]string(nil), Scopes...),
	}
}

// CredentialValues are the resolved secrets of a configured credential.
type CredentialValues struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccessToken  string
}

// IsZero reports whether no credential material is present.
func (v CredentialValues) IsZero() bool {
	return v.ClientID == "" && v.ClientSecret == "" && v.RefreshToken == "" && v.AccessToken == ""
}

// OAuth2Config builds the authorization-code client configuration.
func OAuth2Config(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  AuthURL,
			TokenURL: TokenURL,
		},
		Scopes: append([]string(nil), Scopes...),
	}
}

// AuthCodeURL returns the consent URL requesting offline access with forced consent.
func AuthCodeURL(cfg *oauth2.Config, state string) string {
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token.
func Exchange(ctx context.Context, cfg *oauth2.Config, code string) (*oauth2.Token, error) {
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return token, nil
}

// TransportOptions tune the OAuth2 transport built for a credential.
type TransportOptions struct {
	Timeout time.Duration
	Retry   *transport.RetryConfig

	// TokenURL overrides the Google token endpoint.
	TokenURL string
}

// NewTransport builds the authenticated transport for a credential. A
// refresh token selects the authorization-code flow; otherwise a bare access
// token is used as-is.
func NewTransport(creds CredentialValues, opts TransportOptions) (*transport.OAuth2Transport, error) {
	if creds.IsZero() {
		return nil, fmt.Errorf("missing Google Forms API credentials")
	}

	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = TokenURL
	}

	cfg := &transport.OAuth2TransportConfig{
		BaseURL: APIBaseURL,
		Scopes:  Scopes,
		Timeout: opts.Timeout,
		Retry:   opts.Retry,
	}

	switch {
	case creds.RefreshToken != "":
		cfg.Flow = transport.FlowAuthorizationCode
		cfg.ClientID = creds.ClientID
		cfg.ClientSecret = creds.ClientSecret
		cfg.TokenURL = tokenURL
		cfg.RefreshToken = creds.RefreshToken
	case creds.AccessToken != "":
		cfg.Flow = transport.FlowAccessToken
		cfg.AccessToken = creds.AccessToken
	default:
		return nil, fmt.Errorf("credential needs a refresh_token or an access_token")
	}

	return transport.NewOAuth2Transport(cfg)
}
