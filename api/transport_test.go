package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strongroom-app/strongroom-go/api"
	"github.com/strongroom-app/strongroom-go/session"
)

type staticSource struct {
	snapshot session.Snapshot
}

func (s staticSource) Snapshot() session.Snapshot {
	return s.snapshot
}

func TestTransport_AttachesBearerToken(t *testing.T) {
	var received string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client := api.NewClient(staticSource{snapshot: session.Snapshot{
		Session:         session.Session{AccessToken: "the-access-token"},
		IsAuthenticated: true,
	}})

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "Bearer the-access-token", received)
}

func TestTransport_NoTokenWhileUnauthenticated(t *testing.T) {
	var received string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client := api.NewClient(staticSource{})

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Empty(t, received, "unauthenticated requests carry no Authorization header")
}

func TestTransport_DoesNotMutateOriginalRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	transport := &api.Transport{Source: staticSource{snapshot: session.Snapshot{
		Session:         session.Session{AccessToken: "the-access-token"},
		IsAuthenticated: true,
	}}}

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Empty(t, req.Header.Get("Authorization"), "caller's request is cloned, not written to")
}
