// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
)

const (
	defaultConfigDirName = "ytctl"
	defaultConfigFile    = "config.yaml"
	defaultTokenFile     = "tokens.json"
)

// DefaultConfigPath honours YTCTL_CONFIG before falling back to the user
// config directory.
func DefaultConfigPath() string {
	if env := os.Getenv("YTCTL_CONFIG"); env != "" {
		return env
	}
	return filepath.Join(stateDir(), defaultConfigFile)
}

// DefaultTokenPath is the token cache used by the file storage backend.
func DefaultTokenPath() string {
	return filepath.Join(stateDir(), defaultTokenFile)
}

func stateDir() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, defaultConfigDirName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+defaultConfigDirName)
}
