// Package secrets stores access tokens for hosted apps. On macOS tokens
// live in the system Keychain; elsewhere the store is unsupported and the
// CLI falls back to the environment or the settings file.
package secrets

import (
	"errors"
	"net/url"
	"strings"
	"sync"
)

// ServiceName is the keychain service under which tokens are stored.
const ServiceName = "spaceclient"

var (
	// ErrNotFound is returned when no token is stored for an account.
	ErrNotFound = errors.New("credential not found")

	// ErrNotSupported is returned when the platform has no secret store.
	ErrNotSupported = errors.New("secret store not supported on this platform")
)

// Store is a credential store keyed by service and account.
type Store interface {
	Get(service, account string) (string, error)
	Set(service, account, secret string) error
	Delete(service, account string) error
	IsSupported() bool
}

var (
	storeMu sync.RWMutex
	store   Store
)

// Default returns the platform store.
func Default() Store {
	storeMu.RLock()
	defer storeMu.RUnlock()
	// No platform store registered by a build-tagged init
	if store == nil {
		return &NoopStore{}
	}
	return store
}

// SetDefault replaces the platform store and returns the previous one.
func SetDefault(s Store) Store {
	storeMu.Lock()
	defer storeMu.Unlock()
	prev := store
	store = s
	return prev
}

// TokenAccount returns the account name for tokens of a hub, its host
// name. An empty hub URL maps to "default".
func TokenAccount(hubURL string) string {
	if hubURL == "" {
		return "default"
	}
	u, err := url.Parse(hubURL)
	// Not a URL: use the value as given
	if err != nil || u.Host == "" {
		return strings.TrimRight(hubURL, "/")
	}
	return u.Host
}

// GetToken returns the stored token for a hub.
func GetToken(hubURL string) (string, error) {
	return Default().Get(ServiceName, TokenAccount(hubURL))
}

// SetToken stores the token for a hub.
func SetToken(hubURL, token string) error {
	return Default().Set(ServiceName, TokenAccount(hubURL), token)
}

// DeleteToken removes the token for a hub.
func DeleteToken(hubURL string) error {
	return Default().Delete(ServiceName, TokenAccount(hubURL))
}

// MemoryStore keeps credentials in memory.
type MemoryStore struct {
	mu      sync.Mutex
	secrets map[string]string
}

func (m *MemoryStore) key(service, account string) string {
	return service + "\x00" + account
}

func (m *MemoryStore) Get(service, account string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.secrets[m.key(service, account)]
	if !ok {
		return "", ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) Set(service, account, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Zero value is usable
	if m.secrets == nil {
		m.secrets = make(map[string]string)
	}
	m.secrets[m.key(service, account)] = secret
	return nil
}

func (m *MemoryStore) Delete(service, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(service, account)
	if _, ok := m.secrets[k]; !ok {
		return ErrNotFound
	}
	delete(m.secrets, k)
	return nil
}

func (m *MemoryStore) IsSupported() bool { return true }
