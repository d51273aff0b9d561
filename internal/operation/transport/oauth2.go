package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tombee/conductor-googleforms/internal/tracing"
	"golang.org/x/oauth2"
)

// Supported OAuth2 flows.
const (
	FlowAuthorizationCode = "authorization_code"
	FlowAccessToken       = "access_token"
)

// tokenRefreshThreshold is how long before expiry a cached token is refreshed.
const tokenRefreshThreshold = 5 * time.Minute

// OAuth2TransportConfig configures the OAuth2 transport.
type OAuth2TransportConfig struct {
	// BaseURL is prepended to relative request URLs (optional)
	BaseURL string

	// Flow is one of authorization_code, client_credentials or access_token (required)
	Flow string

	// ClientID is the OAuth2 client ID
	ClientID string

	// ClientSecret is the OAuth2 client secret
	ClientSecret string

	// TokenURL is the OAuth2 token endpoint
	TokenURL string

	// Scopes are the OAuth2 scopes (optional)
	Scopes []string

	// RefreshToken is the refresh token for authorization_code flow
	RefreshToken string

	// AccessToken is a pre-issued bearer token for the access_token flow
	AccessToken string

	// TokenSource overrides the flow-derived token source when set
	TokenSource oauth2.TokenSource

	// HTTPClient is used for both API and token requests (optional)
	HTTPClient *http.Client

	// Timeout for requests (default: 30s)
	Timeout time.Duration

	// Retry configuration (default: single attempt)
	Retry *RetryConfig
}

// TransportType returns the transport type identifier.
func (c *OAuth2TransportConfig) TransportType() string {
	return "oauth2"
}

// Validate checks the configuration is valid.
func (c *OAuth2TransportConfig) Validate() error {
	if c.BaseURL != "" && !strings.HasPrefix(c.BaseURL, "https://") && !strings.HasPrefix(c.BaseURL, "http://") {
		return fmt.Errorf("base_url must start with http:// or https://")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if c.Retry != nil {
		if err := c.Retry.Validate(); err != nil {
			return fmt.Errorf("retry: %w", err)
		}
	}
	if c.TokenSource != nil {
		return nil
	}

	switch c.Flow {
	case "":
		return fmt.Errorf("flow is required for oauth2 transport")
	case FlowAccessToken:
		if c.AccessToken == "" {
			return fmt.Errorf("access_token is required for access_token flow")
		}
		return nil
	case FlowAuthorizationCode:
	default:
		return fmt.Errorf("flow must be %s or %s, got %q", FlowAuthorizationCode, FlowAccessToken, c.Flow)
	}

	if c.ClientID == "" {
		return fmt.Errorf("client_id is required for %s flow", c.Flow)
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("client_secret is required for %s flow", c.Flow)
	}
	if c.TokenURL == "" {
		return fmt.Errorf("token_url is required for %s flow", c.Flow)
	}
	if c.RefreshToken == "" {
		return fmt.Errorf("refresh_token is required for authorization_code flow")
	}
	return nil
}

// OAuth2Transport implements Transport for OAuth2-protected APIs.
// Tokens are fetched lazily and cached until shortly before expiry.
type OAuth2Transport struct {
	config      *OAuth2TransportConfig
	client      *http.Client
	retry       *RetryConfig
	tokenSource oauth2.TokenSource
}

// NewOAuth2Transport creates a new OAuth2 transport.
// No token request is made until the first Execute.
func NewOAuth2Transport(cfg *OAuth2TransportConfig) (*OAuth2Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	retry := cfg.Retry
	if retry == nil {
		retry = DefaultRetryConfig()
	}

	// Token endpoint calls share the API client and its timeout.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)

	src := cfg.TokenSource
	if src == nil {
		switch cfg.Flow {
		case FlowAuthorizationCode:
			oauthConfig := &oauth2.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
				Scopes:       cfg.Scopes,
			}
			src = oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

		case FlowAccessToken:
			src = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
		}
	}

	return &OAuth2Transport{
		config:      cfg,
		client:      client,
		retry:       retry,
		tokenSource: oauth2.ReuseTokenSourceWithExpiry(nil, src, tokenRefreshThreshold),
	}, nil
}

// Execute sends a request with OAuth2 authentication.
func (t *OAuth2Transport) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := validateRequest(req); err != nil {
		return nil, &TransportError{
			Type:    ErrorTypeInvalidReq,
			Message: fmt.Sprintf("invalid request: %s", err.Error()),
			Cause:   err,
		}
	}

	token, err := t.tokenSource.Token()
	if err != nil {
		return nil, &TransportError{
			Type:    ErrorTypeAuth,
			Message: fmt.Sprintf("failed to acquire OAuth2 token: %v", err),
			Cause:   err,
		}
	}

	return Execute(ctx, t.retry, func(ctx context.Context) (*Response, error) {
		return t.executeOnce(ctx, req, token)
	})
}

// validateRequest checks if the request is valid.
func validateRequest(req *Request) error {
	if req == nil {
		return fmt.Errorf("request is nil")
	}

	switch req.Method {
	case "":
		return fmt.Errorf("method is required")
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
		http.MethodPatch, http.MethodHead, http.MethodOptions:
	default:
		return fmt.Errorf("invalid HTTP method: %q", req.Method)
	}

	if req.URL == "" {
		return fmt.Errorf("URL is required")
	}

	return nil
}

// executeOnce performs a single request execution with OAuth2 authentication.
func (t *OAuth2Transport) executeOnce(ctx context.Context, req *Request, token *oauth2.Token) (*Response, error) {
	requestURL := req.URL
	if !strings.HasPrefix(requestURL, "http://") && !strings.HasPrefix(requestURL, "https://") {
		requestURL = t.config.BaseURL + requestURL
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, requestURL, body)
	if err != nil {
		return nil, &TransportError{
			Type:    ErrorTypeInvalidReq,
			Message: fmt.Sprintf("failed to create request: %v", err),
			Cause:   err,
		}
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	tracing.InjectHTTPHeaders(ctx, httpReq.Header)
	token.SetAuthHeader(httpReq)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, classifyClientError(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{
			Type:      ErrorTypeConnection,
			Message:   fmt.Sprintf("failed to read response body: %v", err),
			Retryable: true,
			Cause:     err,
		}
	}

	if resp.StatusCode >= 400 {
		return nil, statusError(resp.StatusCode, respBody, resp.Header)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
		Metadata: map[string]interface{}{
			MetadataRequestID: requestIDFrom(resp.Header),
		},
	}, nil
}

// Name returns the transport identifier.
func (t *OAuth2Transport) Name() string {
	return "oauth2"
}
