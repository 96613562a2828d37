package config

import "strings"

type ProviderConfig interface {
	GetIssuerURL() string
	GetClientID() string
	GetRedirectURI() string
	GetPostLogoutRedirectURI() string
	GetScopes() []string
}

type Provider struct{}

var _ ProviderConfig = Provider{}

// GetIssuerURL returns the realm base URL of the identity provider. All
// endpoints (authorization, token, revocation, end-session) are derived from
// its discovery document.
func (Provider) GetIssuerURL() string {
	return GetEnv("OIDC_ISSUER_URL", "https://id.strongroom.app/realms/strongroom")
}

func (Provider) GetClientID() string {
	return GetEnv("OIDC_CLIENT_ID", "strongroom-client")
}

func (Provider) GetRedirectURI() string {
	return GetEnv("OIDC_REDIRECT_URI", "http://127.0.0.1:8317/auth/callback")
}

func (Provider) GetPostLogoutRedirectURI() string {
	return GetEnv("OIDC_POST_LOGOUT_REDIRECT_URI", "http://127.0.0.1:8317/auth/logged-out")
}

func (Provider) GetScopes() []string {
	scopes := GetEnv("OIDC_SCOPES", "openid profile email offline_access")
	return strings.Fields(scopes)
}
