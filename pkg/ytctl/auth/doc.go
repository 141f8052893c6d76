// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package auth runs the OAuth2 installed-application flow for ytctl. It loads
// provider-issued application secrets, obtains tokens interactively (console
// code entry, loopback redirect or device code) and hands out refreshing token
// sources, optionally backed by a file or keychain token cache.
package auth
