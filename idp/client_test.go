package idp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/strongroom-app/strongroom-go/idp"
)

// fakeIDP is an httptest-backed OIDC provider: it serves a discovery document
// pointing back at itself and records what the token and revocation handlers
// receive.
type fakeIDP struct {
	srv *httptest.Server

	mu         sync.Mutex
	tokenForm  url.Values
	revokeForm url.Values

	tokenResponse  map[string]any
	revokeStatus   int
	revokeResponse string

	withRevocation bool
	withEndSession bool
}

func newFakeIDP(t *testing.T) *fakeIDP {
	t.Helper()

	f := &fakeIDP{
		tokenResponse: map[string]any{
			"access_token": "issued-access",
			"token_type":   "Bearer",
		},
		revokeStatus:   http.StatusOK,
		withRevocation: true,
		withEndSession: true,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		doc := map[string]any{
			"issuer":                 f.srv.URL,
			"authorization_endpoint": f.srv.URL + "/auth",
			"token_endpoint":         f.srv.URL + "/token",
			"jwks_uri":               f.srv.URL + "/keys",
		}
		if f.withRevocation {
			doc["revocation_endpoint"] = f.srv.URL + "/revoke"
		}
		if f.withEndSession {
			doc["end_session_endpoint"] = f.srv.URL + "/logout"
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(doc))
	})
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.mu.Lock()
		f.tokenForm = r.PostForm
		response := f.tokenResponse
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(response))
	})
	mux.HandleFunc("POST /revoke", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.mu.Lock()
		f.revokeForm = r.PostForm
		status, response := f.revokeStatus, f.revokeResponse
		f.mu.Unlock()

		if response != "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIDP) newClient(t *testing.T) *idp.Client {
	t.Helper()

	client, err := idp.New(context.Background(), idp.Config{
		IssuerURL:             f.srv.URL,
		ClientID:              "test-client",
		RedirectURI:           "http://127.0.0.1:8317/auth/callback",
		PostLogoutRedirectURI: "http://127.0.0.1:8317/",
		Scopes:                []string{"openid", "profile", "offline_access"},
	})
	require.NoError(t, err)
	return client
}

func (f *fakeIDP) sentTokenForm() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenForm
}

func (f *fakeIDP) sentRevokeForm() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revokeForm
}

func TestNew_Validation(t *testing.T) {
	_, err := idp.New(context.Background(), idp.Config{ClientID: "test-client"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "issuer URL is required")

	_, err = idp.New(context.Background(), idp.Config{IssuerURL: "https://id.example.com"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "client ID is required")
}

func TestAuthCodeURL(t *testing.T) {
	fake := newFakeIDP(t)
	client := fake.newClient(t)

	raw := client.AuthCodeURL("test-state", "test-verifier")

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "/auth", parsed.Path)

	query := parsed.Query()
	require.Equal(t, "code", query.Get("response_type"))
	require.Equal(t, "test-client", query.Get("client_id"))
	require.Equal(t, "test-state", query.Get("state"))
	require.Equal(t, "http://127.0.0.1:8317/auth/callback", query.Get("redirect_uri"))
	require.Equal(t, "openid profile offline_access", query.Get("scope"))
	require.Equal(t, "S256", query.Get("code_challenge_method"))
	require.NotEmpty(t, query.Get("code_challenge"))
	require.NotContains(t, raw, "test-verifier", "verifier itself never appears in the URL")
}

func TestExchange(t *testing.T) {
	fake := newFakeIDP(t)
	fake.tokenResponse = map[string]any{
		"access_token":  "issued-access",
		"refresh_token": "issued-refresh",
		"token_type":    "Bearer",
		"expires_in":    300,
	}
	client := fake.newClient(t)

	tokens, err := client.Exchange(context.Background(), "test-code", "test-verifier")
	require.NoError(t, err)
	require.Equal(t, "issued-access", tokens.AccessToken)
	require.Equal(t, "issued-refresh", tokens.RefreshToken)
	require.WithinDuration(t, time.Now().Add(300*time.Second), tokens.Expiry, 5*time.Second)

	form := fake.sentTokenForm()
	require.Equal(t, "authorization_code", form.Get("grant_type"))
	require.Equal(t, "test-code", form.Get("code"))
	require.Equal(t, "test-verifier", form.Get("code_verifier"))
	require.Equal(t, "http://127.0.0.1:8317/auth/callback", form.Get("redirect_uri"))
}

func TestExchange_NoStatedExpiry(t *testing.T) {
	fake := newFakeIDP(t)
	client := fake.newClient(t)

	tokens, err := client.Exchange(context.Background(), "test-code", "test-verifier")
	require.NoError(t, err)
	require.True(t, tokens.Expiry.IsZero(), "expiry stays zero when expires_in is omitted")
}

func TestRefresh(t *testing.T) {
	fake := newFakeIDP(t)
	fake.tokenResponse = map[string]any{
		"access_token":  "refreshed-access",
		"refresh_token": "rotated-refresh",
		"token_type":    "Bearer",
		"expires_in":    300,
	}
	client := fake.newClient(t)

	tokens, err := client.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	require.Equal(t, "refreshed-access", tokens.AccessToken)
	require.Equal(t, "rotated-refresh", tokens.RefreshToken)

	form := fake.sentTokenForm()
	require.Equal(t, "refresh_token", form.Get("grant_type"))
	require.Equal(t, "old-refresh", form.Get("refresh_token"))
}

func TestRefresh_UnrotatedToken(t *testing.T) {
	fake := newFakeIDP(t)
	fake.tokenResponse = map[string]any{
		"access_token": "refreshed-access",
		"token_type":   "Bearer",
	}
	client := fake.newClient(t)

	tokens, err := client.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	require.Equal(t, "old-refresh", tokens.RefreshToken, "missing rotation keeps the token passed in")
}

func TestRevoke(t *testing.T) {
	fake := newFakeIDP(t)
	client := fake.newClient(t)

	require.NoError(t, client.Revoke(context.Background(), "the-refresh-token"))

	form := fake.sentRevokeForm()
	require.Equal(t, "the-refresh-token", form.Get("token"))
	require.Equal(t, "refresh_token", form.Get("token_type_hint"))
	require.Equal(t, "test-client", form.Get("client_id"))
}

func TestRevoke_ProviderError(t *testing.T) {
	fake := newFakeIDP(t)
	fake.revokeStatus = http.StatusBadRequest
	fake.revokeResponse = `{"error":"invalid_token","error_description":"token is not active"}`
	client := fake.newClient(t)

	err := client.Revoke(context.Background(), "the-refresh-token")
	require.Error(t, err)

	providerErr := new(idp.Error)
	require.True(t, errors.As(err, &providerErr))
	require.Equal(t, "invalid_token", providerErr.Code)
	require.Equal(t, "token is not active", providerErr.Description)
}

func TestRevoke_NoEndpoint(t *testing.T) {
	fake := newFakeIDP(t)
	fake.withRevocation = false
	client := fake.newClient(t)

	require.NoError(t, client.Revoke(context.Background(), "the-refresh-token"), "revocation is advisory")
}

func TestEndSessionURL(t *testing.T) {
	fake := newFakeIDP(t)
	client := fake.newClient(t)

	raw, err := client.EndSessionURL()
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "/logout", parsed.Path)
	require.Equal(t, "test-client", parsed.Query().Get("client_id"))
	require.Equal(t, "http://127.0.0.1:8317/", parsed.Query().Get("post_logout_redirect_uri"))
}

func TestEndSessionURL_NoEndpoint(t *testing.T) {
	fake := newFakeIDP(t)
	fake.withEndSession = false
	client := fake.newClient(t)

	_, err := client.EndSessionURL()
	require.Error(t, err)
	require.Contains(t, err.Error(), "end_session_endpoint")
}
