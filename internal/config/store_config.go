package config

import (
	"os"
	"path/filepath"
)

type StoreConfig interface {
	GetStoreDir() string
	GetStoreSecret() string
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetStoreDir() string {
	if dir := os.Getenv("STORE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".strongroom"
	}
	return filepath.Join(home, ".strongroom", "store")
}

// GetStoreSecret returns the secret the at-rest encryption key is derived
// from. On platforms with a keychain this would come from there; the default
// keeps the store usable in development.
func (Store) GetStoreSecret() string {
	return GetEnv("STORE_SECRET", "strongroom-dev-secret")
}
