package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/strongroom-app/strongroom-go/idp"
	"github.com/strongroom-app/strongroom-go/internal/config"
	"github.com/strongroom-app/strongroom-go/securestore"
)

// Provider is the identity-provider surface the manager consumes.
type Provider interface {
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (*idp.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*idp.TokenResponse, error)
	Revoke(ctx context.Context, token string) error
	EndSessionURL() (string, error)
}

// Authorizer runs the interactive part of the code flow: it presents the
// authorization URL to the user and resolves with the code from the redirect.
type Authorizer interface {
	Authorize(ctx context.Context, authURL, state string) (code string, err error)
}

// URLOpener opens a URL in an external browsing context (end-session).
type URLOpener interface {
	OpenURL(url string) error
}

// Deps holds all collaborator dependencies for the Manager.
type Deps struct {
	Provider Provider
	Store    securestore.Store
	Flow     Authorizer
	Browser  URLOpener
}

// Manager owns the OAuth session lifecycle: the PKCE login flow, the
// persisted and in-memory token state, proactive refresh on a timer and on
// foreground transitions, and forced logout when refresh fails.
//
// Login, Logout and RefreshAccessToken never return errors to callers:
// failures surface only in logs and in the resulting snapshot. Callers react
// to IsAuthenticated flipping, nothing else.
type Manager struct {
	deps     Deps
	cfg      config.SessionConfig
	nowTime  func() time.Time
	onChange func(Snapshot)

	mu          sync.Mutex
	session     Session
	loading     int
	refreshDone chan struct{} // non-nil while a refresh is in flight
	timerStop   chan struct{} // non-nil while the expiry timer is armed
}

// Option defines a function type to modify the Manager instance.
type Option func(*Manager)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// WithOnChange registers an observer invoked with a fresh snapshot after
// every state mutation, including loading-flag changes.
func WithOnChange(fn func(Snapshot)) Option {
	return func(m *Manager) {
		m.onChange = fn
	}
}

// New initializes a Manager with required dependencies. A single long-lived
// instance is constructed at process start and shared by reference; it is the
// only writer of the secure store's session entries.
func New(deps Deps, cfg config.SessionConfig, options ...Option) (*Manager, error) {
	if deps.Provider == nil {
		return nil, errors.New("[session.New] Provider is required")
	}
	if deps.Store == nil {
		return nil, errors.New("[session.New] Store is required")
	}
	if deps.Flow == nil {
		return nil, errors.New("[session.New] Flow is required")
	}
	if deps.Browser == nil {
		return nil, errors.New("[session.New] Browser is required")
	}
	if cfg == nil {
		return nil, errors.New("[session.New] session config is required")
	}

	m := &Manager{
		deps:    deps,
		cfg:     cfg,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Snapshot returns a copy of the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		Session:         m.session,
		IsAuthenticated: m.session.AccessToken != "",
		IsLoading:       m.loading > 0,
	}
}

// Restore loads the persisted session, once at process start. An unreadable
// store is treated like an empty one. A stale access token does not block
// restoring: the session comes up authenticated and the next scheduled check
// refreshes it.
func (m *Manager) Restore() {
	m.setLoading(true)
	defer m.setLoading(false)

	stored, err := m.loadStored()
	if err != nil {
		if !errors.Is(err, securestore.ErrNotFound) {
			log.Warn().Err(err).Msg("session restore failed, treating store as empty")
		}
		return
	}

	if !stored.RefreshTokenExpiresAt.After(m.nowTime()) {
		log.Info().Msg("stored refresh token expired, clearing persisted session")
		m.deleteStored()
		return
	}

	if user, err := decodeIdentity(stored.AccessToken); err == nil {
		stored.User = user
	} else {
		log.Warn().Err(err).Msg("stored access token not decodable")
	}

	m.mu.Lock()
	m.session = *stored
	m.armTimerLocked()
	m.mu.Unlock()
	m.notify()
}

// Login runs the interactive authorization-code flow with PKCE. It suspends
// for the whole browser round-trip, which is user-paced: no timeout is
// imposed beyond ctx. An abandoned or failed login leaves the session
// unchanged.
func (m *Manager) Login(ctx context.Context) {
	m.setLoading(true)
	defer m.setLoading(false)

	verifier := oauth2.GenerateVerifier()
	state := uuid.New().String()

	code, err := m.deps.Flow.Authorize(ctx, m.deps.Provider.AuthCodeURL(state, verifier), state)
	if err != nil {
		log.Info().Err(err).Msg("login did not complete")
		return
	}

	tokens, err := m.deps.Provider.Exchange(ctx, code, verifier)
	if err != nil {
		log.Error().Err(err).Msg("authorization code exchange failed")
		return
	}

	m.commit(m.sessionFromTokens(tokens, time.Time{}))
}

// Logout revokes the refresh token (best effort), clears the in-memory
// session and the store, and opens the provider's end-session URL. It is safe
// to call when already unauthenticated: clearing local state is idempotent.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	refreshToken := m.session.RefreshToken
	m.mu.Unlock()

	m.setLoading(true)

	if refreshToken != "" {
		if err := m.deps.Provider.Revoke(ctx, refreshToken); err != nil {
			log.Warn().Err(err).Msg("token revocation failed, continuing logout")
		}
	}

	m.mu.Lock()
	m.session = Session{}
	m.disarmTimerLocked()
	m.mu.Unlock()
	m.deleteStored()
	m.setLoading(false)

	// Fire-and-forget: logout is complete once local state is cleared, the
	// provider's own session ends whenever the browser gets there.
	if refreshToken != "" {
		endURL, err := m.deps.Provider.EndSessionURL()
		if err != nil {
			log.Debug().Err(err).Msg("no end-session URL")
			return
		}
		go func() {
			if err := m.deps.Browser.OpenURL(endURL); err != nil {
				log.Warn().Err(err).Msg("opening end-session URL failed")
			}
		}()
	}
}

// RefreshAccessToken exchanges the refresh token for a new access token.
// Concurrent invocations (timer tick and foreground hook firing together)
// collapse into a single token-endpoint call; late callers wait for the
// in-flight result. A failed refresh forces logout: an access token nearing
// expiry with no way to renew it is equivalent to being logged out.
func (m *Manager) RefreshAccessToken(ctx context.Context) {
	m.mu.Lock()
	if m.session.RefreshToken == "" {
		m.mu.Unlock()
		log.Debug().Msg("refresh requested without a refresh token")
		return
	}
	if m.refreshDone != nil {
		done := m.refreshDone
		m.mu.Unlock()
		<-done
		return
	}
	done := make(chan struct{})
	m.refreshDone = done
	current := m.session
	m.mu.Unlock()

	tokens, err := m.deps.Provider.Refresh(ctx, current.RefreshToken)
	if err != nil {
		log.Warn().Err(err).Msg("token refresh failed, forcing logout")
		m.finishRefresh(done)
		m.Logout(ctx)
		return
	}

	if tokens.RefreshToken == "" {
		tokens.RefreshToken = current.RefreshToken // provider did not rotate
	}
	m.commit(m.sessionFromTokens(tokens, current.RefreshTokenExpiresAt))
	m.finishRefresh(done)
}

// CheckAndMaybeRefresh refreshes when the access token is inside the refresh
// threshold or already expired; both cases take the same path. The expiry
// timer and the foreground hook land here.
func (m *Manager) CheckAndMaybeRefresh(ctx context.Context) {
	m.mu.Lock()
	if m.session.AccessToken == "" {
		m.mu.Unlock()
		return
	}
	untilExpiry := m.session.AccessTokenExpiresAt.Sub(m.nowTime())
	m.mu.Unlock()

	if untilExpiry >= m.cfg.GetRefreshThreshold() {
		return
	}
	m.RefreshAccessToken(ctx)
}

// OnForeground is the app-lifecycle hook for background-to-active
// transitions. Registered once for the manager's lifetime; a no-op while
// unauthenticated.
func (m *Manager) OnForeground(ctx context.Context) {
	m.CheckAndMaybeRefresh(ctx)
}

// Close tears down the expiry timer. The manager remains usable; the timer is
// re-armed by the next authenticated transition.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disarmTimerLocked()
}

// sessionFromTokens assembles a Session from a token response.
// priorRefreshExpiry carries the previous refresh-token expiry through a
// refresh (refresh never shortens it); zero means derive it fresh.
func (m *Manager) sessionFromTokens(tokens *idp.TokenResponse, priorRefreshExpiry time.Time) Session {
	now := m.nowTime()

	accessExpiry := tokens.Expiry
	if accessExpiry.IsZero() {
		accessExpiry = now.Add(m.cfg.GetDefaultAccessTokenExpiry())
	}

	refreshExpiry := priorRefreshExpiry
	if refreshExpiry.IsZero() {
		if exp, ok := tokenExpiry(tokens.RefreshToken); ok {
			refreshExpiry = exp
		} else {
			refreshExpiry = now.Add(m.cfg.GetDefaultRefreshTokenExpiry())
		}
	}

	sess := Session{
		AccessToken:           tokens.AccessToken,
		RefreshToken:          tokens.RefreshToken,
		AccessTokenExpiresAt:  accessExpiry,
		RefreshTokenExpiresAt: refreshExpiry,
	}
	if user, err := decodeIdentity(tokens.AccessToken); err == nil {
		sess.User = user
	} else {
		log.Warn().Err(err).Msg("access token not decodable, session has no user identity")
	}
	return sess
}

// commit makes a new session current: store first, then memory. If the
// process dies between the two the durable copy is the newer pair, so a cold
// start can never resurrect a token pair the provider already rotated away.
func (m *Manager) commit(sess Session) {
	if err := m.persist(sess); err != nil {
		log.Error().Err(err).Msg("persisting session failed, in-memory session continues")
	}
	m.mu.Lock()
	m.session = sess
	m.armTimerLocked()
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) persist(sess Session) error {
	entries := map[string]string{
		securestore.KeyAccessToken:        sess.AccessToken,
		securestore.KeyRefreshToken:       sess.RefreshToken,
		securestore.KeyAccessTokenExpiry:  sess.AccessTokenExpiresAt.Format(time.RFC3339),
		securestore.KeyRefreshTokenExpiry: sess.RefreshTokenExpiresAt.Format(time.RFC3339),
	}
	for key, value := range entries {
		if err := m.deps.Store.Set(key, value); err != nil {
			return errors.Wrapf(err, "[Manager.persist] store %s", key)
		}
	}
	return nil
}

var storedKeys = []string{
	securestore.KeyAccessToken,
	securestore.KeyRefreshToken,
	securestore.KeyAccessTokenExpiry,
	securestore.KeyRefreshTokenExpiry,
}

func (m *Manager) loadStored() (*Session, error) {
	values := make(map[string]string, len(storedKeys))
	for _, key := range storedKeys {
		value, err := m.deps.Store.Get(key)
		if err != nil {
			return nil, errors.Wrapf(err, "[Manager.loadStored] %s", key)
		}
		if value == "" {
			return nil, securestore.ErrNotFound
		}
		values[key] = value
	}

	accessExpiry, err := time.Parse(time.RFC3339, values[securestore.KeyAccessTokenExpiry])
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.loadStored] access token expiry")
	}
	refreshExpiry, err := time.Parse(time.RFC3339, values[securestore.KeyRefreshTokenExpiry])
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.loadStored] refresh token expiry")
	}

	return &Session{
		AccessToken:           values[securestore.KeyAccessToken],
		RefreshToken:          values[securestore.KeyRefreshToken],
		AccessTokenExpiresAt:  accessExpiry,
		RefreshTokenExpiresAt: refreshExpiry,
	}, nil
}

func (m *Manager) deleteStored() {
	for _, key := range storedKeys {
		if err := m.deps.Store.Delete(key); err != nil {
			log.Error().Err(err).Str("key", key).Msg("deleting stored session entry failed")
		}
	}
}

func (m *Manager) finishRefresh(done chan struct{}) {
	m.mu.Lock()
	m.refreshDone = nil
	m.mu.Unlock()
	close(done)
}

func (m *Manager) setLoading(on bool) {
	m.mu.Lock()
	if on {
		m.loading++
	} else {
		m.loading--
	}
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) notify() {
	if m.onChange == nil {
		return
	}
	m.onChange(m.Snapshot())
}

// armTimerLocked starts the recurring expiry check while authenticated and
// stops it otherwise. Callers hold m.mu.
func (m *Manager) armTimerLocked() {
	if m.session.AccessToken == "" {
		m.disarmTimerLocked()
		return
	}
	if m.timerStop != nil {
		return
	}
	stop := make(chan struct{})
	m.timerStop = stop

	interval := m.cfg.GetExpiryCheckInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.CheckAndMaybeRefresh(context.Background())
			}
		}
	}()
}

func (m *Manager) disarmTimerLocked() {
	if m.timerStop == nil {
		return
	}
	close(m.timerStop)
	m.timerStop = nil
}
