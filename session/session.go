package session

import "time"

// UserIdentity holds the display claims decoded from the access token.
// Nothing in the client gates on these; authorization is enforced server-side
// on every API call.
type UserIdentity struct {
	Subject       string
	Email         string
	Name          string
	Username      string
	EmailVerified bool
}

// Session is the token state owned by the Manager. AccessToken and
// RefreshToken are set and cleared together; a pair with only one present is
// treated as no session.
type Session struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
	User                  *UserIdentity
}

// Snapshot is the read surface exposed to the rest of the application. The
// API layer reads AccessToken from here to attach as a bearer credential; it
// never triggers refresh itself.
type Snapshot struct {
	Session
	IsAuthenticated bool
	IsLoading       bool
}
