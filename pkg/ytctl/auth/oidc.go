// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v4"
)

// GoogleIssuer is the OIDC issuer for Google accounts.
const GoogleIssuer = "https://accounts.google.com"

type ProviderEndpoints struct {
	Issuer        string
	AuthURL       string
	TokenURL      string
	DeviceAuthURL string
	RevocationURL string
	UserInfoURL   string
}

// Discover reads the provider's OpenID configuration.
func Discover(ctx context.Context, httpClient *http.Client, authority string) (*ProviderEndpoints, error) {
	if authority == "" {
		return nil, errors.New("authority is required")
	}
	if httpClient != nil {
		ctx = oidc.ClientContext(ctx, httpClient)
	}
	provider, err := oidc.NewProvider(ctx, authority)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	var extra struct {
		DeviceAuthorizationEndpoint string `json:"device_authorization_endpoint"`
		RevocationEndpoint          string `json:"revocation_endpoint"`
		UserInfoEndpoint            string `json:"userinfo_endpoint"`
	}
	if err := provider.Claims(&extra); err != nil {
		return nil, fmt.Errorf("failed to decode provider metadata: %w", err)
	}
	endpoint := provider.Endpoint()
	return &ProviderEndpoints{
		Issuer:        authority,
		AuthURL:       endpoint.AuthURL,
		TokenURL:      endpoint.TokenURL,
		DeviceAuthURL: extra.DeviceAuthorizationEndpoint,
		RevocationURL: extra.RevocationEndpoint,
		UserInfoURL:   extra.UserInfoEndpoint,
	}, nil
}

// Identity describes the account an id_token was issued for.
type Identity struct {
	Subject       string    `json:"subject"`
	Email         string    `json:"email,omitempty"`
	EmailVerified bool      `json:"emailVerified,omitempty"`
	Name          string    `json:"name,omitempty"`
	Issuer        string    `json:"issuer,omitempty"`
	Expiry        time.Time `json:"expiry,omitempty"`
	Verified      bool      `json:"verified"`
}

// Display picks the most human-friendly identifier available.
func (i *Identity) Display() string {
	if i == nil {
		return ""
	}
	if i.Email != "" {
		return i.Email
	}
	if i.Name != "" {
		return i.Name
	}
	return i.Subject
}

type identityClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// VerifyIDToken checks signature, issuer, audience and expiry of an id_token
// against the issuer's published keys.
func VerifyIDToken(ctx context.Context, httpClient *http.Client, issuer, clientID, rawIDToken string) (*Identity, error) {
	if rawIDToken == "" {
		return nil, errors.New("id token is empty")
	}
	if httpClient != nil {
		ctx = oidc.ClientContext(ctx, httpClient)
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	idToken, err := provider.Verifier(&oidc.Config{ClientID: clientID}).Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("id token verification failed: %w", err)
	}
	var claims identityClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode id token claims: %w", err)
	}
	return &Identity{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Issuer:        idToken.Issuer,
		Expiry:        idToken.Expiry,
		Verified:      true,
	}, nil
}

// IdentityFromIDToken reads the claims of an id_token without verifying it.
// It is meant for display only.
func IdentityFromIDToken(rawIDToken string) (*Identity, error) {
	if rawIDToken == "" {
		return nil, errors.New("id token is empty")
	}
	claims := jwt.MapClaims{}
	if _, _, err := (&jwt.Parser{}).ParseUnverified(rawIDToken, claims); err != nil {
		return nil, fmt.Errorf("failed to parse id token: %w", err)
	}
	identity := &Identity{}
	identity.Subject, _ = claims["sub"].(string)
	identity.Email, _ = claims["email"].(string)
	identity.EmailVerified, _ = claims["email_verified"].(bool)
	identity.Name, _ = claims["name"].(string)
	identity.Issuer, _ = claims["iss"].(string)
	if exp, ok := claims["exp"].(float64); ok {
		identity.Expiry = time.Unix(int64(exp), 0).UTC()
	}
	return identity, nil
}
