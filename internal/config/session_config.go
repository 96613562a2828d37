package config

import "time"

type SessionConfig interface {
	GetDefaultAccessTokenExpiry() time.Duration
	GetDefaultRefreshTokenExpiry() time.Duration
	GetRefreshThreshold() time.Duration
	GetExpiryCheckInterval() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

// GetDefaultAccessTokenExpiry is the access token lifetime assumed when the
// token response carries no expires_in.
func (Session) GetDefaultAccessTokenExpiry() time.Duration {
	return 5 * time.Minute
}

// GetDefaultRefreshTokenExpiry is the refresh token lifetime assumed when the
// refresh token carries no decodable exp claim.
func (Session) GetDefaultRefreshTokenExpiry() time.Duration {
	return 24 * time.Hour
}

// GetRefreshThreshold is how close to expiry an access token may get before a
// check triggers a refresh.
func (Session) GetRefreshThreshold() time.Duration {
	return 2 * time.Minute
}

func (Session) GetExpiryCheckInterval() time.Duration {
	return 60 * time.Second
}
