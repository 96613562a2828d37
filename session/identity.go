package session

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// decodeIdentity extracts display claims from an access token payload without
// verifying the signature. That is deliberate and must stay scoped this way:
// the claims feed UserIdentity for display only, never an access-control
// decision.
func decodeIdentity(rawToken string) (*UserIdentity, error) {
	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(err, "[decodeIdentity] parse access token")
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("[decodeIdentity] error extracting claims")
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	username, _ := claims["preferred_username"].(string)
	emailVerified, _ := claims["email_verified"].(bool)

	return &UserIdentity{
		Subject:       sub,
		Email:         email,
		Name:          name,
		Username:      username,
		EmailVerified: emailVerified,
	}, nil
}

// tokenExpiry reads the exp claim of a token that is itself a decodable JWT.
// Opaque refresh tokens report ok=false and the caller falls back to the
// configured default lifetime.
func tokenExpiry(rawToken string) (time.Time, bool) {
	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return time.Time{}, false
	}
	exp, ok := claims["exp"].(float64)
	if !ok || exp == 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(exp), 0), true
}
