package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Config identifies this installation to the identity provider.
type Config struct {
	IssuerURL             string
	ClientID              string
	RedirectURI           string
	PostLogoutRedirectURI string
	Scopes                []string
}

// TokenResponse is the subset of a token-endpoint response the session layer
// consumes. Expiry is zero when the provider omitted expires_in.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Client talks to an OIDC provider whose endpoints come from its discovery
// document. It is a public client: no client secret, PKCE on every
// authorization-code exchange.
type Client struct {
	cfg                Config
	oauth              *oauth2.Config
	revocationEndpoint string
	endSessionEndpoint string
}

// New fetches the discovery document from {issuer}/.well-known/openid-configuration
// and derives all endpoints from it. Revocation and end-session endpoints are
// optional discovery claims; their absence is tolerated.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("[idp.New] issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("[idp.New] client ID is required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("[idp.New] discovery for %s: %w", cfg.IssuerURL, err)
	}

	var extra struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&extra); err != nil {
		return nil, fmt.Errorf("[idp.New] discovery claims: %w", err)
	}

	return &Client{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:    cfg.ClientID,
			Endpoint:    provider.Endpoint(),
			RedirectURL: cfg.RedirectURI,
			Scopes:      cfg.Scopes,
		},
		revocationEndpoint: extra.RevocationEndpoint,
		endSessionEndpoint: extra.EndSessionEndpoint,
	}, nil
}

// AuthCodeURL builds the interactive authorization URL with
// response_type=code and an S256 challenge derived from verifier.
func (c *Client) AuthCodeURL(state, verifier string) string {
	return c.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange redeems an authorization code together with the original PKCE
// verifier at the token endpoint.
func (c *Client) Exchange(ctx context.Context, code, verifier string) (*TokenResponse, error) {
	token, err := c.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("[Client.Exchange] code exchange: %w", err)
	}
	return tokenResponseFrom(token), nil
}

// Refresh runs the refresh_token grant. The returned refresh token is the
// rotated one when the provider rotates, else the one passed in.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	source := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("[Client.Refresh] refresh grant: %w", err)
	}
	return tokenResponseFrom(token), nil
}

// Revoke posts the token to the provider's revocation endpoint (RFC 7009).
// A provider without one makes this a logged no-op: revocation is advisory.
func (c *Client) Revoke(ctx context.Context, token string) error {
	if c.revocationEndpoint == "" {
		log.Debug().Str("issuer", c.cfg.IssuerURL).Msg("provider exposes no revocation endpoint")
		return nil
	}

	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", "refresh_token")
	form.Set("client_id", c.cfg.ClientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revocationEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("[Client.Revoke] build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient(ctx).Do(req)
	if err != nil {
		return fmt.Errorf("[Client.Revoke] post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("[Client.Revoke] %w", errorFromResponse(resp))
	}
	return nil
}

// EndSessionURL builds the provider's logout URL with a post-logout redirect.
func (c *Client) EndSessionURL() (string, error) {
	if c.endSessionEndpoint == "" {
		return "", fmt.Errorf("[Client.EndSessionURL] provider exposes no end_session_endpoint")
	}
	query := url.Values{}
	query.Set("client_id", c.cfg.ClientID)
	if c.cfg.PostLogoutRedirectURI != "" {
		query.Set("post_logout_redirect_uri", c.cfg.PostLogoutRedirectURI)
	}
	return fmt.Sprintf("%s?%s", c.endSessionEndpoint, query.Encode()), nil
}

func tokenResponseFrom(token *oauth2.Token) *TokenResponse {
	return &TokenResponse{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
}

// httpClient honors the oauth2 convention of carrying a replacement client in
// the context, so tests can point the raw revocation call at a local server.
func httpClient(ctx context.Context) *http.Client {
	if client, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok {
		return client
	}
	return http.DefaultClient
}

func errorFromResponse(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	providerErr := new(Error)
	if err := json.Unmarshal(body, providerErr); err != nil || providerErr.Code == "" {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return providerErr
}
