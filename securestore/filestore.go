package securestore

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// FileStore keeps each entry in its own file under dir, encrypted with a key
// derived from the configured secret. It stands in for the platform keychain
// on systems that do not expose one.
type FileStore struct {
	dir       string
	deriveKey func(key string) ([]byte, error)
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the backing directory if needed. The secret is never
// written to disk; each entry is sealed with its own derived key so that a
// leaked file key cannot open the other entries.
func NewFileStore(dir, secret string) (*FileStore, error) {
	if secret == "" {
		return nil, fmt.Errorf("[NewFileStore] secret is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("[NewFileStore] create store dir: %w", err)
	}
	return &FileStore{
		dir: dir,
		deriveKey: func(key string) ([]byte, error) {
			kdf := hkdf.New(sha256.New, []byte(secret), []byte("strongroom.securestore"), []byte(key))
			derived := make([]byte, chacha20poly1305.KeySize)
			if _, err := io.ReadFull(kdf, derived); err != nil {
				return nil, fmt.Errorf("derive key: %w", err)
			}
			return derived, nil
		},
	}, nil
}

func (s *FileStore) Get(key string) (string, error) {
	raw, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("[FileStore.Get] read %s: %w", key, err)
	}

	aead, err := s.cipherFor(key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("[FileStore.Get] %s: truncated entry", key)
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("[FileStore.Get] open %s: %w", key, err)
	}
	return string(plain), nil
}

func (s *FileStore) Set(key, value string) error {
	if len(value) > MaxItemSize {
		return ErrItemTooLarge
	}

	aead, err := s.cipherFor(key)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("[FileStore.Set] nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(value), nil)
	if err := os.WriteFile(s.path(key), sealed, 0o600); err != nil {
		return fmt.Errorf("[FileStore.Set] write %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("[FileStore.Delete] remove %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key)
}

func (s *FileStore) cipherFor(key string) (cipher.AEAD, error) {
	derived, err := s.deriveKey(key)
	if err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(derived)
}
