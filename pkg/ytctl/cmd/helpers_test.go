/*
SPDX-FileCopyrightText: 2025 Deutsche Telekom AG

SPDX-License-Identifier: Apache-2.0
*/

package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/telekom/ytctl/pkg/ytctl/config"
)

type fakeProvider struct {
	server       *httptest.Server
	tokenCalls   int32
	revokeCalls  int32
	apiCalls     int32
	lastRevoked  atomic.Value
	lastRedirect atomic.Value
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{}
	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":   "https://accounts.google.com",
		"sub":   "42",
		"email": "viewer@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&p.tokenCalls, 1)
		_ = r.ParseForm()
		if redirect := r.PostForm.Get("redirect_uri"); redirect != "" {
			p.lastRedirect.Store(redirect)
		}
		switch {
		case r.PostForm.Get("grant_type") == "authorization_code" && r.PostForm.Get("code") == "good-code":
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token":  "access-1",
				"refresh_token": "refresh-1",
				"token_type":    "Bearer",
				"expires_in":    3600,
				"id_token":      idToken,
			})
		case r.PostForm.Get("grant_type") == "refresh_token" && r.PostForm.Get("refresh_token") == "refresh-1":
			writeJSON(w, http.StatusOK, map[string]any{"access_token": "access-2", "token_type": "Bearer", "expires_in": 3600})
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		}
	})
	mux.HandleFunc("/revoke", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&p.revokeCalls, 1)
		_ = r.ParseForm()
		p.lastRevoked.Store(r.PostForm.Get("token"))
	})
	mux.HandleFunc("/youtube/v3/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&p.apiCalls, 1)
		w.WriteHeader(http.StatusForbidden)
	})
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) secretFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client_secret.json")
	content := fmt.Sprintf(`{"installed":{"client_id":"test-client","client_secret":"test-secret","auth_uri":"%[1]s/auth","token_uri":"%[1]s/token","redirect_uris":["http://localhost"]}}`, p.server.URL)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// writeConfig stores a config with a single "test" context pointing at p.
func (p *fakeProvider) writeConfig(t *testing.T) string {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.CurrentContext = "test"
	cfg.Applications = []config.Application{{Name: "desktop", ClientSecretFile: p.secretFile(t)}}
	cfg.Contexts = []config.Context{{
		Name:        "test",
		Application: "desktop",
		APIEndpoint: p.server.URL + "/youtube/v3/",
	}}
	path := configPathForTest(t)
	require.NoError(t, config.Save(path, &cfg))
	return path
}

func configPathForTest(t *testing.T) string {
	t.Helper()
	return t.TempDir() + "/config.yaml"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type testRoot struct {
	cmd    *cobra.Command
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newTestRoot(t *testing.T, configPath, input string) *testRoot {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	root := NewRootCommand(Config{
		ConfigPath:   configPath,
		TokenPath:    filepath.Join(filepath.Dir(configPath), "tokens.json"),
		OutputWriter: out,
		ErrorWriter:  errOut,
		InputReader:  strings.NewReader(input),
		BrowserOpener: func(string) error {
			t.Error("browser must not be opened in tests")
			return nil
		},
	})
	root.SetOut(out)
	root.SetErr(errOut)
	return &testRoot{cmd: root, out: out, errOut: errOut}
}

func (r *testRoot) run(args ...string) error {
	r.cmd.SetArgs(args)
	return r.cmd.Execute()
}
