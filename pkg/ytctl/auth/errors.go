// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package auth

import "errors"

var (
	// ErrInvalidSecret is returned when the application secret is missing
	// fields required by the selected flow.
	ErrInvalidSecret = errors.New("invalid application secret")
	// ErrAuthorizationDenied is returned when the user declines consent.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrInteractionRequired is returned in non-interactive mode when no
	// usable cached token exists.
	ErrInteractionRequired = errors.New("interactive login required")
)
