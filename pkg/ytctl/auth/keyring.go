// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "ytctl"

func keyringLoad(key string) (StoredToken, bool, error) {
	data, err := keyring.Get(keyringService, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return StoredToken{}, false, nil
		}
		return StoredToken{}, false, fmt.Errorf("failed to read token from keychain: %w", err)
	}
	var token StoredToken
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		return StoredToken{}, false, fmt.Errorf("failed to parse keychain token: %w", err)
	}
	return token, true, nil
}

func keyringSave(key string, token StoredToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := keyring.Set(keyringService, key, string(data)); err != nil {
		return fmt.Errorf("failed to write token to keychain: %w", err)
	}
	return nil
}

func keyringDelete(key string) error {
	if err := keyring.Delete(keyringService, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete token from keychain: %w", err)
	}
	return nil
}
