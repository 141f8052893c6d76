// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package transport builds the HTTP/1.1 round tripper shared by the OAuth2
// handshake and the YouTube client: native roots, optional extra CA, client
// side rate limiting, Prometheus instrumentation and request logging.
package transport
