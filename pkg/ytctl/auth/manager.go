// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Token storage backends.
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageKeychain = "keychain"
)

// refreshLeeway is how close to expiry a cached token is refreshed.
const refreshLeeway = 2 * time.Minute

func ParseStorageMode(value string) (string, error) {
	switch mode := strings.ToLower(strings.TrimSpace(value)); mode {
	case "", StorageMemory:
		return StorageMemory, nil
	case StorageFile, StorageKeychain:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported token storage: %s", value)
	}
}

// TokenManager stores tokens by key. The memory backend keeps them for the
// life of the process only.
type TokenManager struct {
	CachePath   string
	StorageMode string

	mu     sync.Mutex
	memory map[string]StoredToken
}

func NewTokenManager(mode, cachePath string) (*TokenManager, error) {
	parsed, err := ParseStorageMode(mode)
	if err != nil {
		return nil, err
	}
	if parsed == StorageFile && cachePath == "" {
		return nil, errors.New("token cache path is required for file storage")
	}
	return &TokenManager{CachePath: cachePath, StorageMode: parsed}, nil
}

func (m *TokenManager) mode() string {
	if m.StorageMode == "" {
		return StorageMemory
	}
	return m.StorageMode
}

func (m *TokenManager) GetToken(key string) (StoredToken, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(key)
}

func (m *TokenManager) getLocked(key string) (StoredToken, bool, error) {
	switch m.mode() {
	case StorageKeychain:
		return keyringLoad(key)
	case StorageFile:
		cache, err := LoadTokenCache(m.CachePath)
		if err != nil {
			if os.IsNotExist(err) {
				return StoredToken{}, false, nil
			}
			return StoredToken{}, false, err
		}
		token, ok := cache.Tokens[key]
		return token, ok, nil
	default:
		token, ok := m.memory[key]
		return token, ok, nil
	}
}

func (m *TokenManager) SaveToken(key string, token StoredToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(key, token)
}

func (m *TokenManager) saveLocked(key string, token StoredToken) error {
	switch m.mode() {
	case StorageKeychain:
		return keyringSave(key, token)
	case StorageFile:
		cache, err := LoadTokenCache(m.CachePath)
		if err != nil {
			cache = &TokenCache{Tokens: map[string]StoredToken{}}
		}
		cache.Tokens[key] = token
		return SaveTokenCache(m.CachePath, cache)
	default:
		if m.memory == nil {
			m.memory = map[string]StoredToken{}
		}
		m.memory[key] = token
		return nil
	}
}

func (m *TokenManager) DeleteToken(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.mode() {
	case StorageKeychain:
		return keyringDelete(key)
	case StorageFile:
		cache, err := LoadTokenCache(m.CachePath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		delete(cache.Tokens, key)
		return SaveTokenCache(m.CachePath, cache)
	default:
		delete(m.memory, key)
		return nil
	}
}

// RefreshIfNeeded returns the cached token for key, refreshing and storing it
// first when it expires within refreshLeeway. ok reports whether a token was
// cached at all; an error with ok set means the cached token is unusable.
func (m *TokenManager) RefreshIfNeeded(ctx context.Context, key string, oauthCfg *oauth2.Config) (StoredToken, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, ok, err := m.getLocked(key)
	if err != nil || !ok {
		return token, ok, err
	}
	if token.Expiry.IsZero() || time.Until(token.Expiry) > refreshLeeway {
		return token, true, nil
	}
	if token.RefreshToken == "" {
		return token, true, errors.New("token expired and no refresh token available")
	}
	refreshed, err := oauthCfg.TokenSource(ctx, &oauth2.Token{
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
	}).Token()
	if err != nil {
		return token, true, fmt.Errorf("failed to refresh token: %w", err)
	}
	stored := StoredTokenFrom(refreshed)
	if stored.IDToken == "" {
		stored.IDToken = token.IDToken
	}
	if stored.RefreshToken == "" {
		stored.RefreshToken = token.RefreshToken
	}
	if err := m.saveLocked(key, stored); err != nil {
		return stored, true, err
	}
	return stored, true, nil
}
