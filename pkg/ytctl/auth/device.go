// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

func (a *Authenticator) deviceLogin(ctx context.Context) (*LoginResult, error) {
	oauthCfg := a.secret.OAuthConfig("", a.scopes)
	if oauthCfg.Endpoint.DeviceAuthURL == "" {
		return nil, errors.New("device authorization endpoint not configured")
	}

	deviceResp, err := oauthCfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("device authorization failed: %w", err)
	}

	verificationURL := deviceResp.VerificationURIComplete
	if verificationURL == "" {
		verificationURL = deviceResp.VerificationURI
	}
	_, _ = fmt.Fprintf(a.out, "Visit %s and enter code: %s\n", deviceResp.VerificationURI, deviceResp.UserCode)
	if verificationURL != "" && !a.noBrowser && a.openBrowser != nil {
		if err := a.openBrowser(verificationURL); err != nil {
			a.log.Debugw("Could not open browser", "error", err)
		}
	}

	a.log.Debugw("Polling device token endpoint", "interval", deviceResp.Interval, "expiry", deviceResp.Expiry)
	token, err := oauthCfg.DeviceAccessToken(ctx, deviceResp)
	if err != nil {
		return nil, deviceError(err)
	}
	return newLoginResult(token), nil
}

func deviceError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return fmt.Errorf("device token request failed: %w", err)
	}
	switch retrieveErr.ErrorCode {
	case "access_denied":
		return fmt.Errorf("%w: %s", ErrAuthorizationDenied, retrieveErr.ErrorCode)
	case "expired_token":
		return errors.New("device code expired")
	default:
		return fmt.Errorf("device token error: %w", err)
	}
}
