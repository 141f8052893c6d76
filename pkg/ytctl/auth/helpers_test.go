// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"encoding/json"
	"net/http"
)

func testSecret(serverURL string) ApplicationSecret {
	return ApplicationSecret{
		ClientID:      "test-client.apps.googleusercontent.com",
		ClientSecret:  "test-secret",
		AuthURI:       serverURL + "/auth",
		TokenURI:      serverURL + "/token",
		DeviceAuthURI: serverURL + "/device",
		RedirectURIs:  []string{"http://localhost"},
		ProjectID:     "ytctl-test",
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func tokenResponse(accessToken, refreshToken string) map[string]any {
	return map[string]any{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"token_type":    "Bearer",
		"expires_in":    3600,
	}
}
