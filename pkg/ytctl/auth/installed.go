// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ReturnMethod selects how the authorization code gets back to ytctl.
type ReturnMethod string

const (
	// ReturnInteractive prints the consent URL and reads the code (or the
	// full redirect URL) from the console.
	ReturnInteractive ReturnMethod = "interactive"
	// ReturnHTTPRedirect receives the code on a loopback HTTP listener.
	ReturnHTTPRedirect ReturnMethod = "redirect"
	// ReturnDeviceCode uses the device authorization grant.
	ReturnDeviceCode ReturnMethod = "device-code"
)

// ParseReturnMethod maps a flag or config value to a ReturnMethod. The empty
// string selects the interactive flow.
func ParseReturnMethod(value string) (ReturnMethod, error) {
	switch ReturnMethod(strings.ToLower(strings.TrimSpace(value))) {
	case "", ReturnInteractive:
		return ReturnInteractive, nil
	case ReturnHTTPRedirect, "http-redirect":
		return ReturnHTTPRedirect, nil
	case ReturnDeviceCode, "device":
		return ReturnDeviceCode, nil
	default:
		return "", fmt.Errorf("unsupported flow: %s", value)
	}
}

// Authenticator runs the installed-application flow for one secret and hands
// out refreshing token sources.
type Authenticator struct {
	secret         ApplicationSecret
	method         ReturnMethod
	scopes         []string
	httpClient     *http.Client
	tokens         *TokenManager
	tokenKey       string
	redirectPort   int
	redirectURL    string
	listenAddress  string
	nonInteractive bool
	noBrowser      bool
	prompt         io.Reader
	out            io.Writer
	openBrowser    func(string) error
	log            *zap.SugaredLogger
}

type Option func(*Authenticator) error

func WithScopes(scopes ...string) Option {
	return func(a *Authenticator) error {
		a.scopes = append([]string(nil), scopes...)
		return nil
	}
}

// WithHTTPClient sets the client used for the token endpoint, discovery and
// refreshes.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Authenticator) error {
		if client == nil {
			return errors.New("http client is nil")
		}
		a.httpClient = client
		return nil
	}
}

// WithTokenManager enables token caching under key.
func WithTokenManager(manager *TokenManager, key string) Option {
	return func(a *Authenticator) error {
		if key == "" {
			return errors.New("token key is required")
		}
		a.tokens = manager
		a.tokenKey = key
		return nil
	}
}

// WithRedirectURL sets the redirect_uri sent to the provider for the redirect
// flow. It must reach the callback listener, e.g. through a port mapping when
// ytctl runs in a container. Its path is the callback path. Empty means the
// listener address itself.
func WithRedirectURL(redirectURL string) Option {
	return func(a *Authenticator) error {
		if redirectURL == "" {
			a.redirectURL = ""
			return nil
		}
		parsed, err := url.Parse(redirectURL)
		if err != nil {
			return fmt.Errorf("invalid redirect url: %w", err)
		}
		if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("invalid redirect url: %s", redirectURL)
		}
		a.redirectURL = redirectURL
		return nil
	}
}

// WithListenAddress sets the host the callback listener binds to. Empty
// means 127.0.0.1; use 0.0.0.0 inside a container.
func WithListenAddress(host string) Option {
	return func(a *Authenticator) error {
		a.listenAddress = host
		return nil
	}
}

// WithRedirectPort fixes the callback listener port. Zero picks a free port.
func WithRedirectPort(port int) Option {
	return func(a *Authenticator) error {
		if port < 0 || port > 65535 {
			return fmt.Errorf("invalid redirect port: %d", port)
		}
		a.redirectPort = port
		return nil
	}
}

func WithNonInteractive(nonInteractive bool) Option {
	return func(a *Authenticator) error {
		a.nonInteractive = nonInteractive
		return nil
	}
}

func WithNoBrowser(noBrowser bool) Option {
	return func(a *Authenticator) error {
		a.noBrowser = noBrowser
		return nil
	}
}

// WithPrompt redirects the console used to show URLs and read codes.
func WithPrompt(in io.Reader, out io.Writer) Option {
	return func(a *Authenticator) error {
		if in != nil {
			a.prompt = in
		}
		if out != nil {
			a.out = out
		}
		return nil
	}
}

func WithBrowserOpener(open func(string) error) Option {
	return func(a *Authenticator) error {
		a.openBrowser = open
		return nil
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(a *Authenticator) error {
		if log != nil {
			a.log = log
		}
		return nil
	}
}

// NewAuthenticator validates the secret for the requested flow. A default
// (empty) secret fails here, before any network activity.
func NewAuthenticator(secret ApplicationSecret, method ReturnMethod, opts ...Option) (*Authenticator, error) {
	if method == "" {
		method = ReturnInteractive
	}
	if _, err := ParseReturnMethod(string(method)); err != nil {
		return nil, err
	}
	if err := secret.Validate(method); err != nil {
		return nil, err
	}
	a := &Authenticator{
		secret:      secret,
		method:      method,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		prompt:      os.Stdin,
		out:         os.Stdout,
		openBrowser: OpenBrowser,
		log:         zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if len(a.scopes) == 0 {
		return nil, errors.New("at least one scope is required")
	}
	return a, nil
}

func (a *Authenticator) Method() ReturnMethod {
	return a.method
}

func (a *Authenticator) Scopes() []string {
	return append([]string(nil), a.scopes...)
}

// HTTPClient is the client used for token endpoint traffic.
func (a *Authenticator) HTTPClient() *http.Client {
	return a.httpClient
}

// Authenticate returns a token source for the configured scopes. A cached
// token is reused (and refreshed if close to expiry); otherwise the flow runs
// and blocks until the user completes it or ctx is done.
func (a *Authenticator) Authenticate(ctx context.Context) (oauth2.TokenSource, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	refreshCfg := a.secret.OAuthConfig("", a.scopes)

	if a.tokens != nil {
		stored, ok, err := a.tokens.RefreshIfNeeded(ctx, a.tokenKey, refreshCfg)
		switch {
		case err != nil && ok:
			a.log.Warnw("Cached token could not be refreshed, starting a new login", "key", a.tokenKey, "error", err)
		case err != nil:
			return nil, err
		case ok && stored.AccessToken != "":
			a.log.Debugw("Using cached token", "key", a.tokenKey, "expiry", stored.Expiry)
			return a.tokenSource(ctx, refreshCfg, stored), nil
		}
	}

	if a.nonInteractive {
		return nil, ErrInteractionRequired
	}

	result, err := a.Login(ctx)
	if err != nil {
		return nil, err
	}
	stored := StoredTokenFrom(result.Token)
	stored.IDToken = result.IDToken
	if a.tokens != nil {
		if err := a.tokens.SaveToken(a.tokenKey, stored); err != nil {
			return nil, err
		}
	}
	return a.tokenSource(ctx, refreshCfg, stored), nil
}

// Login always runs the interactive flow, ignoring any cached token.
func (a *Authenticator) Login(ctx context.Context) (*LoginResult, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	a.log.Debugw("Starting installed application flow", "flow", a.method, "scopes", a.scopes)
	switch a.method {
	case ReturnHTTPRedirect:
		return a.redirectLogin(ctx)
	case ReturnDeviceCode:
		return a.deviceLogin(ctx)
	default:
		return a.interactiveLogin(ctx)
	}
}

// tokenSource outlives the login context, so refreshes use a context that
// keeps the HTTP client but not the login deadline.
func (a *Authenticator) tokenSource(ctx context.Context, cfg *oauth2.Config, stored StoredToken) oauth2.TokenSource {
	refreshCtx := context.WithoutCancel(ctx)
	return &persistingTokenSource{
		base:    cfg.TokenSource(refreshCtx, stored.OAuth2Token()),
		tokens:  a.tokens,
		key:     a.tokenKey,
		idToken: stored.IDToken,
		last:    stored.AccessToken,
		log:     a.log,
	}
}

type LoginResult struct {
	Token   *oauth2.Token
	IDToken string
}

func newLoginResult(token *oauth2.Token) *LoginResult {
	idToken, _ := token.Extra("id_token").(string)
	return &LoginResult{Token: token, IDToken: idToken}
}

func (a *Authenticator) interactiveLogin(ctx context.Context) (*LoginResult, error) {
	oauthCfg := a.secret.OAuthConfig(a.secret.RedirectURIs[0], a.scopes)
	verifier := oauth2.GenerateVerifier()
	state, err := randomToken(24)
	if err != nil {
		return nil, err
	}
	authURL := oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))

	_, _ = fmt.Fprintf(a.out, "Open the following URL in your browser and authorize ytctl:\n%s\n\n", authURL)
	_, _ = fmt.Fprint(a.out, "Enter the authorization code or the full redirect URL: ")

	line, err := readLine(ctx, a.prompt)
	if err != nil {
		return nil, err
	}
	code, err := parseAuthorizationInput(line, state)
	if err != nil {
		return nil, err
	}
	token, err := oauthCfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	return newLoginResult(token), nil
}

// readLine returns once a line is available or ctx is done. On cancellation
// the reader goroutine stays blocked until the input is closed.
func readLine(ctx context.Context, in io.Reader) (string, error) {
	lineCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			errCh <- fmt.Errorf("failed to read authorization code: %w", err)
			return
		}
		lineCh <- strings.TrimSpace(line)
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errCh:
		return "", err
	case line := <-lineCh:
		return line, nil
	}
}

// parseAuthorizationInput accepts a bare code or a pasted redirect URL.
func parseAuthorizationInput(input, state string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty authorization code")
	}
	if parsed, err := url.Parse(input); err == nil && parsed.Scheme != "" && parsed.RawQuery != "" {
		return codeFromCallback(parsed.Query(), state, false)
	}
	return input, nil
}

// codeFromCallback extracts the code from redirect query parameters. The
// loopback listener always requires state; pasted URLs are checked only if
// they carry one.
func codeFromCallback(query url.Values, state string, requireState bool) (string, error) {
	if errCode := query.Get("error"); errCode != "" {
		if desc := query.Get("error_description"); desc != "" {
			return "", fmt.Errorf("%w: %s: %s", ErrAuthorizationDenied, errCode, desc)
		}
		return "", fmt.Errorf("%w: %s", ErrAuthorizationDenied, errCode)
	}
	got := query.Get("state")
	if (requireState || got != "") && got != state {
		return "", errors.New("invalid state in callback")
	}
	code := query.Get("code")
	if code == "" {
		return "", errors.New("missing code in callback")
	}
	return code, nil
}

func (a *Authenticator) redirectLogin(ctx context.Context) (*LoginResult, error) {
	host := a.listenAddress
	if host == "" {
		host = "127.0.0.1"
	}
	listener, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(a.redirectPort)))
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}
	defer func() {
		_ = listener.Close()
	}()

	redirectURL := a.redirectURL
	callbackPath := "/"
	if redirectURL == "" {
		redirectURL = fmt.Sprintf("http://%s/", listener.Addr().String())
	} else if parsed, err := url.Parse(redirectURL); err == nil && parsed.Path != "" {
		callbackPath = parsed.Path
	}
	oauthCfg := a.secret.OAuthConfig(redirectURL, a.scopes)
	verifier := oauth2.GenerateVerifier()
	state, err := randomToken(24)
	if err != nil {
		return nil, err
	}
	authURL := oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))

	resultCh := make(chan *LoginResult, 1)
	errCh := make(chan error, 1)
	fail := func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}

	// Responses are flushed before the result is signalled; Shutdown below
	// then waits for the handler to return.
	server := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != callbackPath {
				http.NotFound(w, r)
				return
			}
			code, err := codeFromCallback(r.URL.Query(), state, true)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				flush(w)
				fail(err)
				return
			}
			token, err := oauthCfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
			if err != nil {
				http.Error(w, "token exchange failed", http.StatusInternalServerError)
				flush(w)
				fail(fmt.Errorf("token exchange failed: %w", err))
				return
			}
			_, _ = fmt.Fprintln(w, "Authentication complete. You can close this window.")
			flush(w)
			select {
			case resultCh <- newLoginResult(token):
			default:
			}
		}),
	}

	go func() {
		_ = server.Serve(listener)
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
		}
	}()

	a.log.Debugw("Waiting for OAuth2 callback", "listen", listener.Addr().String(), "redirectURL", redirectURL)
	_, _ = fmt.Fprintf(a.out, "Open the following URL in your browser:\n%s\n", authURL)
	if !a.noBrowser && a.openBrowser != nil {
		if err := a.openBrowser(authURL); err != nil {
			a.log.Debugw("Could not open browser", "error", err)
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errCh:
		return nil, err
	case result := <-resultCh:
		return result, nil
	}
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func randomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
