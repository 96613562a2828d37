// Package sessionfakes provides in-memory fakes for the session manager's
// collaborators.
package sessionfakes

import (
	"context"
	"sync"
	"time"

	"github.com/strongroom-app/strongroom-go/idp"
)

// FakeProvider is a controllable identity-provider client.
type FakeProvider struct {
	mu sync.Mutex

	ExchangeResponse *idp.TokenResponse
	ExchangeErr      error
	RefreshResponse  *idp.TokenResponse
	RefreshErr       error
	RefreshDelay     time.Duration
	RevokeErr        error
	EndSession       string
	EndSessionErr    error

	exchangeCalls int
	refreshCalls  int
	revokedTokens []string
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{EndSession: "https://id.example.com/logout"}
}

func (f *FakeProvider) AuthCodeURL(state, verifier string) string {
	return "https://id.example.com/auth?state=" + state
}

func (f *FakeProvider) Exchange(ctx context.Context, code, verifier string) (*idp.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchangeCalls++
	if f.ExchangeErr != nil {
		return nil, f.ExchangeErr
	}
	response := *f.ExchangeResponse
	return &response, nil
}

func (f *FakeProvider) Refresh(ctx context.Context, refreshToken string) (*idp.TokenResponse, error) {
	f.mu.Lock()
	f.refreshCalls++
	delay := f.RefreshDelay
	err := f.RefreshErr
	var response *idp.TokenResponse
	if f.RefreshResponse != nil {
		copied := *f.RefreshResponse
		response = &copied
	}
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return response, nil
}

func (f *FakeProvider) Revoke(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokedTokens = append(f.revokedTokens, token)
	return f.RevokeErr
}

func (f *FakeProvider) EndSessionURL() (string, error) {
	return f.EndSession, f.EndSessionErr
}

func (f *FakeProvider) ExchangeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchangeCalls
}

func (f *FakeProvider) RefreshCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

func (f *FakeProvider) RevokedTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.revokedTokens...)
}

// FakeFlow resolves the interactive step without a browser.
type FakeFlow struct {
	mu sync.Mutex

	Code string
	Err  error

	lastAuthURL string
	lastState   string
}

func (f *FakeFlow) Authorize(ctx context.Context, authURL, state string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAuthURL = authURL
	f.lastState = state
	if f.Err != nil {
		return "", f.Err
	}
	return f.Code, nil
}

func (f *FakeFlow) LastAuthURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuthURL
}

// FakeBrowser records every URL it was asked to open.
type FakeBrowser struct {
	mu     sync.Mutex
	opened []string

	OpenErr error
}

func (f *FakeBrowser) OpenURL(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, url)
	return f.OpenErr
}

func (f *FakeBrowser) Opened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}
