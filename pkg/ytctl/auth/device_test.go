// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDeviceServer(t *testing.T, pendingPolls int32, finalError string) *httptest.Server {
	t.Helper()
	var polls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.URL.Path {
		case "/device":
			assert.Equal(t, "test-client.apps.googleusercontent.com", r.PostForm.Get("client_id"))
			writeJSON(w, http.StatusOK, map[string]any{
				"device_code":      "dev-code",
				"user_code":        "ABCD-EFGH",
				"verification_uri": "https://www.google.com/device",
				"expires_in":       60,
				"interval":         1,
			})
		case "/token":
			assert.Equal(t, "urn:ietf:params:oauth:grant-type:device_code", r.PostForm.Get("grant_type"))
			if atomic.AddInt32(&polls, 1) <= pendingPolls {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "authorization_pending"})
				return
			}
			if finalError != "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": finalError})
				return
			}
			writeJSON(w, http.StatusOK, tokenResponse("device-access", "device-refresh"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestDeviceLogin(t *testing.T) {
	t.Run("polls until approved", func(t *testing.T) {
		server := newDeviceServer(t, 1, "")
		out := &bytes.Buffer{}
		var opened string
		a, err := NewAuthenticator(testSecret(server.URL), ReturnDeviceCode,
			WithScopes("scope"),
			WithHTTPClient(server.Client()),
			WithPrompt(nil, out),
			WithBrowserOpener(func(u string) error {
				opened = u
				return nil
			}),
		)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		result, err := a.Login(ctx)
		require.NoError(t, err)
		assert.Equal(t, "device-access", result.Token.AccessToken)
		assert.Equal(t, "device-refresh", result.Token.RefreshToken)
		assert.Contains(t, out.String(), "Visit https://www.google.com/device and enter code: ABCD-EFGH")
		assert.Equal(t, "https://www.google.com/device", opened)
	})

	t.Run("denied", func(t *testing.T) {
		server := newDeviceServer(t, 0, "access_denied")
		a, err := NewAuthenticator(testSecret(server.URL), ReturnDeviceCode,
			WithScopes("scope"),
			WithHTTPClient(server.Client()),
			WithPrompt(nil, &bytes.Buffer{}),
			WithNoBrowser(true),
		)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, err = a.Login(ctx)
		require.ErrorIs(t, err, ErrAuthorizationDenied)
	})

	t.Run("expired", func(t *testing.T) {
		server := newDeviceServer(t, 0, "expired_token")
		a, err := NewAuthenticator(testSecret(server.URL), ReturnDeviceCode,
			WithScopes("scope"),
			WithHTTPClient(server.Client()),
			WithPrompt(nil, &bytes.Buffer{}),
			WithNoBrowser(true),
		)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, err = a.Login(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "device code expired")
	})
}
