package securestore

import "errors"

// The session is persisted as four independently addressable entries rather
// than one composite blob: the underlying secure-storage primitives enforce a
// per-item size ceiling that a JSON blob holding both tokens could exceed.
const (
	KeyAccessToken        = "strongroom.access_token"
	KeyRefreshToken       = "strongroom.refresh_token"
	KeyAccessTokenExpiry  = "strongroom.access_token_expiry"
	KeyRefreshTokenExpiry = "strongroom.refresh_token_expiry"

	// MaxItemSize is the per-item ceiling in bytes, matching the smallest
	// limit among the platform secure-storage backends.
	MaxItemSize = 2048
)

var (
	ErrNotFound     = errors.New("securestore: item not found")
	ErrItemTooLarge = errors.New("securestore: item exceeds size limit")
)

// Store is encrypted key-value persistence for small sensitive values.
// Implementations must make Delete idempotent: deleting an absent key is not
// an error.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}
