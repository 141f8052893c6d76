// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// DefaultScopes are requested when a context configures none.
var DefaultScopes = []string{youtube.YoutubeReadonlyScope}

type Hub struct {
	service *youtube.Service
	http    *http.Client
	source  oauth2.TokenSource
}

type options struct {
	endpoint  string
	userAgent string
	timeout   time.Duration
}

type Option func(*options) error

// WithEndpoint overrides the API base path, e.g. for a test server.
func WithEndpoint(endpoint string) Option {
	return func(o *options) error {
		o.endpoint = endpoint
		return nil
	}
}

func WithUserAgent(userAgent string) Option {
	return func(o *options) error {
		o.userAgent = userAgent
		return nil
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout < 0 {
			return fmt.Errorf("invalid timeout: %s", timeout)
		}
		o.timeout = timeout
		return nil
	}
}

// New wires ts into an authenticated client over rt and builds the service.
func New(ctx context.Context, rt http.RoundTripper, ts oauth2.TokenSource, opts ...Option) (*Hub, error) {
	if ts == nil {
		return nil, errors.New("token source is required")
	}
	if rt == nil {
		rt = http.DefaultTransport
	}
	o := &options{timeout: 30 * time.Second}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	source := oauth2.ReuseTokenSource(nil, ts)
	httpClient := &http.Client{
		Transport: &oauth2.Transport{Base: rt, Source: source},
		Timeout:   o.timeout,
	}
	clientOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if o.endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(o.endpoint))
	}
	service, err := youtube.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	if o.userAgent != "" {
		service.UserAgent = o.userAgent
	}
	return &Hub{service: service, http: httpClient, source: source}, nil
}

func (h *Hub) Service() *youtube.Service {
	return h.service
}

// HTTPClient returns the authenticated client the service uses.
func (h *Hub) HTTPClient() *http.Client {
	return h.http
}

func (h *Hub) BasePath() string {
	return h.service.BasePath
}

// Token returns the current token, refreshing it if it has expired.
func (h *Hub) Token() (*oauth2.Token, error) {
	return h.source.Token()
}
