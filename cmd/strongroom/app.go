package main

import (
	"context"
	"fmt"

	"github.com/strongroom-app/strongroom-go/authflow"
	"github.com/strongroom-app/strongroom-go/idp"
	"github.com/strongroom-app/strongroom-go/internal/config"
	"github.com/strongroom-app/strongroom-go/securestore"
	"github.com/strongroom-app/strongroom-go/session"
)

// app wires config, secure store, provider client and session manager
// together, once per invocation.
type app struct {
	config  config.Config
	manager *session.Manager
}

func newApp(ctx context.Context) (*app, error) {
	cfg := config.New()

	store, err := securestore.NewFileStore(cfg.GetStoreDir(), cfg.GetStoreSecret())
	if err != nil {
		return nil, fmt.Errorf("open secure store: %w", err)
	}

	provider, err := idp.New(ctx, idp.Config{
		IssuerURL:             cfg.GetIssuerURL(),
		ClientID:              cfg.GetClientID(),
		RedirectURI:           cfg.GetRedirectURI(),
		PostLogoutRedirectURI: cfg.GetPostLogoutRedirectURI(),
		Scopes:                cfg.GetScopes(),
	})
	if err != nil {
		return nil, fmt.Errorf("identity provider: %w", err)
	}

	browser := authflow.SystemBrowser{}
	flow, err := authflow.New(cfg.GetRedirectURI(), browser)
	if err != nil {
		return nil, fmt.Errorf("authorization flow: %w", err)
	}

	manager, err := session.New(session.Deps{
		Provider: provider,
		Store:    store,
		Flow:     flow,
		Browser:  browser,
	}, cfg)
	if err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}

	manager.Restore()
	return &app{config: cfg, manager: manager}, nil
}

func (a *app) close() {
	a.manager.Close()
}
