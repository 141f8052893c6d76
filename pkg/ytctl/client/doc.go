// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package client assembles the YouTube Data API handle from an authenticated
// token source and the shared transport. Building a Hub performs no requests.
package client
