package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	StorageKeyring = "keyring"
	StorageFile    = "file"

	keyringService = "renderfleet-rfctl"
)

// TokenManager stores one session token per context name. Deletes are
// idempotent so logging out twice is not an error.
type TokenManager interface {
	GetToken(contextName string) (StoredToken, bool, error)
	SaveToken(contextName string, token StoredToken) error
	DeleteToken(contextName string) error
}

// NewTokenManager selects the storage backend. The OS keyring is the default;
// "file" keeps tokens in a plain JSON cache at cachePath for headless hosts
// without a credential service.
func NewTokenManager(storage, cachePath string) (TokenManager, error) {
	switch storage {
	case "", StorageKeyring, "keychain":
		return &keyringTokenManager{service: keyringService}, nil
	case StorageFile:
		return &fileTokenManager{cachePath: cachePath}, nil
	default:
		return nil, fmt.Errorf("unknown token storage %q (use %q or %q)", storage, StorageKeyring, StorageFile)
	}
}

type fileTokenManager struct {
	cachePath string
}

func (m *fileTokenManager) GetToken(contextName string) (StoredToken, bool, error) {
	cache, err := LoadTokenCache(m.cachePath)
	if err != nil {
		if os.IsNotExist(err) {
			return StoredToken{}, false, nil
		}
		return StoredToken{}, false, err
	}
	token, ok := cache.Tokens[contextName]
	return token, ok, nil
}

func (m *fileTokenManager) SaveToken(contextName string, token StoredToken) error {
	cache, err := LoadTokenCache(m.cachePath)
	if err != nil {
		cache = &TokenCache{Tokens: map[string]StoredToken{}}
	}
	cache.Tokens[contextName] = token
	return SaveTokenCache(m.cachePath, cache)
}

func (m *fileTokenManager) DeleteToken(contextName string) error {
	cache, err := LoadTokenCache(m.cachePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	delete(cache.Tokens, contextName)
	return SaveTokenCache(m.cachePath, cache)
}

// keyringTokenManager keeps tokens in the OS credential store. The whole
// StoredToken is serialized as the secret so username and server survive too.
type keyringTokenManager struct {
	service string
}

func (m *keyringTokenManager) GetToken(contextName string) (StoredToken, bool, error) {
	secret, err := keyring.Get(m.service, contextName)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return StoredToken{}, false, nil
		}
		return StoredToken{}, false, fmt.Errorf("failed to read keyring: %w", err)
	}
	var token StoredToken
	if err := json.Unmarshal([]byte(secret), &token); err != nil {
		return StoredToken{}, false, fmt.Errorf("failed to parse keyring entry: %w", err)
	}
	return token, true, nil
}

func (m *keyringTokenManager) SaveToken(contextName string, token StoredToken) error {
	secret, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := keyring.Set(m.service, contextName, string(secret)); err != nil {
		return fmt.Errorf("failed to write keyring: %w", err)
	}
	return nil
}

func (m *keyringTokenManager) DeleteToken(contextName string) error {
	if err := keyring.Delete(m.service, contextName); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete keyring entry: %w", err)
	}
	return nil
}
