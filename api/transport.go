// Package api is the client-side transport for the custody backend. It only
// attaches the current bearer credential; token staleness is entirely the
// session manager's responsibility, never this layer's.
package api

import (
	"net/http"

	"github.com/strongroom-app/strongroom-go/session"
)

// SessionSource yields the current session snapshot. *session.Manager
// satisfies it.
type SessionSource interface {
	Snapshot() session.Snapshot
}

// Transport is an http.RoundTripper that sets the Authorization header from
// the session snapshot on every outbound request.
type Transport struct {
	Source SessionSource
	Base   http.RoundTripper
}

var _ http.RoundTripper = (*Transport)(nil)

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	snapshot := t.Source.Snapshot()
	if snapshot.IsAuthenticated {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+snapshot.AccessToken)
	}
	return t.base().RoundTrip(req)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// NewClient returns an http.Client whose requests carry the session's bearer
// token.
func NewClient(source SessionSource) *http.Client {
	return &http.Client{Transport: &Transport{Source: source}}
}
