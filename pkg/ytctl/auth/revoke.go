// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

// GoogleRevokeURL is Google's OAuth2 token revocation endpoint.
const GoogleRevokeURL = "https://oauth2.googleapis.com/revoke"

// Revoke invalidates an access or refresh token at the provider. Revoking a
// refresh token also revokes the access tokens minted from it.
func Revoke(ctx context.Context, httpClient *http.Client, revokeURL, token string) error {
	if token == "" {
		return errors.New("token is required")
	}
	if revokeURL == "" {
		revokeURL = GoogleRevokeURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := resty.NewWithClient(httpClient).R().
		SetContext(ctx).
		SetFormData(map[string]string{"token": token}).
		Post(revokeURL)
	if err != nil {
		return fmt.Errorf("token revocation failed: %w", err)
	}
	if resp.IsError() {
		msg := strings.TrimSpace(resp.String())
		if msg == "" {
			msg = resp.Status()
		}
		return fmt.Errorf("token revocation failed (%d): %s", resp.StatusCode(), msg)
	}
	return nil
}
