// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ApplicationSecret is the credential record Google issues for a registered
// OAuth client, as found under the "installed" or "web" key of a
// client_secret.json download. The zero value is a valid placeholder that
// fails Validate.
type ApplicationSecret struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret"`
	AuthURI                 string   `json:"auth_uri,omitempty"`
	TokenURI                string   `json:"token_uri,omitempty"`
	DeviceAuthURI           string   `json:"device_auth_uri,omitempty"`
	RedirectURIs            []string `json:"redirect_uris,omitempty"`
	ProjectID               string   `json:"project_id,omitempty"`
	ClientEmail             string   `json:"client_email,omitempty"`
	AuthProviderX509CertURL string   `json:"auth_provider_x509_cert_url,omitempty"`
	ClientX509CertURL       string   `json:"client_x509_cert_url,omitempty"`
}

type secretDocument struct {
	Installed *ApplicationSecret `json:"installed,omitempty"`
	Web       *ApplicationSecret `json:"web,omitempty"`
}

// ParseApplicationSecret decodes a provider-issued client secret document.
func ParseApplicationSecret(data []byte) (ApplicationSecret, error) {
	var doc secretDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return ApplicationSecret{}, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	switch {
	case doc.Installed != nil:
		return *doc.Installed, nil
	case doc.Web != nil:
		return *doc.Web, nil
	default:
		return ApplicationSecret{}, fmt.Errorf("%w: expected an \"installed\" or \"web\" section", ErrInvalidSecret)
	}
}

// LoadApplicationSecret reads and decodes a client_secret.json file.
func LoadApplicationSecret(path string) (ApplicationSecret, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ApplicationSecret{}, fmt.Errorf("failed to read client secret file: %w", err)
	}
	secret, err := ParseApplicationSecret(data)
	if err != nil {
		return ApplicationSecret{}, fmt.Errorf("%s: %w", path, err)
	}
	return secret, nil
}

// Validate checks that the secret carries what the given flow needs. Only the
// interactive flow sends one of the secret's redirect URIs; the redirect flow
// uses its own listener URL and the device flow never redirects.
func (s ApplicationSecret) Validate(method ReturnMethod) error {
	var missing []string
	if strings.TrimSpace(s.ClientID) == "" {
		missing = append(missing, "client_id")
	}
	if strings.TrimSpace(s.ClientSecret) == "" {
		missing = append(missing, "client_secret")
	}
	if (method == ReturnInteractive || method == "") && len(s.RedirectURIs) == 0 {
		missing = append(missing, "redirect_uris")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidSecret, strings.Join(missing, ", "))
	}
	return nil
}

// Endpoint returns the provider endpoints of the secret, falling back to
// Google's for anything left empty.
func (s ApplicationSecret) Endpoint() oauth2.Endpoint {
	endpoint := google.Endpoint
	if s.AuthURI != "" {
		endpoint.AuthURL = s.AuthURI
	}
	if s.TokenURI != "" {
		endpoint.TokenURL = s.TokenURI
	}
	if s.DeviceAuthURI != "" {
		endpoint.DeviceAuthURL = s.DeviceAuthURI
	}
	return endpoint
}

// OAuthConfig builds the oauth2 client configuration for one flow run.
func (s ApplicationSecret) OAuthConfig(redirectURL string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		Endpoint:     s.Endpoint(),
		RedirectURL:  redirectURL,
		Scopes:       append([]string(nil), scopes...),
	}
}

// WithEndpoints returns a copy of the secret using discovered endpoints.
func (s ApplicationSecret) WithEndpoints(ep *ProviderEndpoints) ApplicationSecret {
	if ep == nil {
		return s
	}
	if ep.AuthURL != "" {
		s.AuthURI = ep.AuthURL
	}
	if ep.TokenURL != "" {
		s.TokenURI = ep.TokenURL
	}
	if ep.DeviceAuthURL != "" {
		s.DeviceAuthURI = ep.DeviceAuthURL
	}
	return s
}
