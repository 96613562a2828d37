package storefakes

import (
	"sync"

	"github.com/strongroom-app/strongroom-go/securestore"
)

// FakeStore is an in-memory securestore.Store for tests.
type FakeStore struct {
	mu    sync.Mutex
	items map[string]string

	// FailReads and FailWrites force errors, for exercising the
	// unreadable-store paths.
	FailReads  error
	FailWrites error
}

var _ securestore.Store = (*FakeStore)(nil)

func NewFakeStore() *FakeStore {
	return &FakeStore{items: map[string]string{}}
}

func (f *FakeStore) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailReads != nil {
		return "", f.FailReads
	}
	value, ok := f.items[key]
	if !ok {
		return "", securestore.ErrNotFound
	}
	return value, nil
}

func (f *FakeStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWrites != nil {
		return f.FailWrites
	}
	if len(value) > securestore.MaxItemSize {
		return securestore.ErrItemTooLarge
	}
	f.items[key] = value
	return nil
}

func (f *FakeStore) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailWrites != nil {
		return f.FailWrites
	}
	delete(f.items, key)
	return nil
}

// Len reports how many entries the store currently holds.
func (f *FakeStore) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}
