// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvOverrides holds YTCTL_* variables. Nil and empty fields were not set.
type EnvOverrides struct {
	Config           string `env:"YTCTL_CONFIG"`
	Context          string `env:"YTCTL_CONTEXT"`
	Output           string `env:"YTCTL_OUTPUT"`
	ClientSecretFile string `env:"YTCTL_CLIENT_SECRET_FILE"`
	Flow             string `env:"YTCTL_FLOW"`
	TokenStorage     string `env:"YTCTL_TOKEN_STORAGE"`
	NonInteractive   *bool  `env:"YTCTL_NON_INTERACTIVE"`
	NoBrowser        *bool  `env:"YTCTL_NO_BROWSER"`
	Verbose          *bool  `env:"YTCTL_VERBOSE"`
	MetricsFile      string `env:"YTCTL_METRICS_FILE"`
	TokenCache       string `env:"YTCTL_TOKEN_CACHE"`
	RedirectURL      string `env:"YTCTL_REDIRECT_URL"`
	RedirectPort     *int   `env:"YTCTL_REDIRECT_PORT"`
	ListenAddress    string `env:"YTCTL_LISTEN_ADDRESS"`
}

// ParseEnv reads the overrides from the process environment.
func ParseEnv() (EnvOverrides, error) {
	var overrides EnvOverrides
	if err := env.Parse(&overrides); err != nil {
		return EnvOverrides{}, fmt.Errorf("parse env: %w", err)
	}
	return overrides, nil
}
