// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/telekom/ytctl/pkg/version"
	"github.com/telekom/ytctl/pkg/ytctl/auth"
	"github.com/telekom/ytctl/pkg/ytctl/client"
	"github.com/telekom/ytctl/pkg/ytctl/config"
	"github.com/telekom/ytctl/pkg/ytctl/transport"
)

// session is everything a command needs to talk to the provider for one
// context: the resolved secret, transport and token storage.
type session struct {
	contextName string
	context     config.Context
	application *config.Application
	secret      auth.ApplicationSecret
	method      auth.ReturnMethod
	scopes      []string
	settings    config.Settings
	transport   http.RoundTripper
	httpClient  *http.Client
	tokens      *auth.TokenManager
	revokeURL   string
	issuer      string
}

func (rt *runtimeState) newSession(ctx context.Context) (*session, error) {
	if rt.cfg == nil {
		if err := rt.EnsureConfigLoaded(); err != nil {
			return nil, err
		}
	}
	s := &session{settings: rt.cfg.EffectiveSettings(), revokeURL: auth.GoogleRevokeURL, issuer: auth.GoogleIssuer}

	s.contextName = rt.ResolveContextName()
	if s.contextName != "" {
		found, err := rt.cfg.FindContext(s.contextName)
		if err != nil {
			return nil, err
		}
		s.context = *found
	} else {
		s.contextName = "default"
		s.context = config.Context{Name: s.contextName}
	}

	if rt.clientSecretFile != "" {
		secret, err := auth.LoadApplicationSecret(rt.clientSecretFile)
		if err != nil {
			return nil, err
		}
		s.secret = secret
	} else {
		secret, app, err := rt.cfg.ResolveSecret(&s.context)
		if err != nil {
			return nil, err
		}
		s.secret = secret
		s.application = app
	}

	if rt.redirectURL != "" {
		s.context.RedirectURL = rt.redirectURL
	}
	if rt.listenAddress != "" {
		s.context.ListenAddress = rt.listenAddress
	}
	if rt.redirectPortSet {
		s.context.RedirectPort = rt.redirectPort
	}

	flow := s.context.Flow
	if rt.flow != "" {
		flow = rt.flow
	}
	method, err := auth.ParseReturnMethod(flow)
	if err != nil {
		return nil, err
	}
	s.method = method

	s.scopes = s.context.Scopes
	if len(s.scopes) == 0 {
		s.scopes = client.DefaultScopes
	}

	transportOpts := []transport.Option{
		transport.WithCAFile(s.context.CAFile),
		transport.WithInsecureSkipVerify(s.context.InsecureSkipTLSVerify),
		transport.WithRateLimit(s.settings.RateLimit, s.settings.Burst),
		transport.WithLogger(rt.log, rt.verbose),
		transport.WithUserAgent(version.UserAgent()),
	}
	if rt.metrics != nil {
		transportOpts = append(transportOpts, transport.WithMetrics(rt.metrics))
	}
	s.transport, err = transport.New(transportOpts...)
	if err != nil {
		return nil, err
	}
	s.httpClient = transport.NewHTTPClient(s.transport, s.settings.RequestTimeout)

	s.tokens, err = auth.NewTokenManager(rt.TokenStorage(), rt.TokenCachePath())
	if err != nil {
		return nil, err
	}
	return s, nil
}

// discover replaces the secret's endpoints with those published by the
// application's authority, if it has one.
func (s *session) discover(ctx context.Context) error {
	if s.application == nil || s.application.Authority == "" {
		return nil
	}
	endpoints, err := auth.Discover(ctx, s.httpClient, s.application.Authority)
	if err != nil {
		return err
	}
	s.secret = s.secret.WithEndpoints(endpoints)
	s.issuer = endpoints.Issuer
	if endpoints.RevocationURL != "" {
		s.revokeURL = endpoints.RevocationURL
	}
	return nil
}

// authenticator validates the secret before anything touches the network.
func (s *session) authenticator(ctx context.Context, rt *runtimeState) (*auth.Authenticator, error) {
	if err := s.secret.Validate(s.method); err != nil {
		return nil, err
	}
	if err := s.discover(ctx); err != nil {
		return nil, err
	}
	opts := []auth.Option{
		auth.WithScopes(s.scopes...),
		auth.WithHTTPClient(s.httpClient),
		auth.WithTokenManager(s.tokens, s.contextName),
		auth.WithRedirectPort(s.context.RedirectPort),
		auth.WithRedirectURL(s.context.RedirectURL),
		auth.WithListenAddress(s.context.ListenAddress),
		auth.WithNonInteractive(rt.nonInteractive),
		auth.WithNoBrowser(rt.noBrowser),
		auth.WithPrompt(rt.reader, rt.errorWriter()),
		auth.WithLogger(rt.log),
	}
	if rt.openBrowser != nil {
		opts = append(opts, auth.WithBrowserOpener(rt.openBrowser))
	}
	a, err := auth.NewAuthenticator(s.secret, s.method, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}
	return a, nil
}

// identity reads the id_token claims for display. Verification is attempted
// only when requested.
func (s *session) identity(ctx context.Context, idToken string, verify bool) (*auth.Identity, error) {
	if idToken == "" {
		return nil, nil
	}
	if verify {
		return auth.VerifyIDToken(ctx, s.httpClient, s.issuer, s.secret.ClientID, idToken)
	}
	return auth.IdentityFromIDToken(idToken)
}
