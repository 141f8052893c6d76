// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the per-request id set by the logging layer.
const RequestIDHeader = "X-Request-Id"

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}

type rateLimitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return t.base.RoundTrip(req)
}

type loggingTransport struct {
	base http.RoundTripper
	log  *zap.SugaredLogger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	id := req.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
		req = req.Clone(req.Context())
		req.Header.Set(RequestIDHeader, id)
	}
	start := time.Now()
	// The URL is logged without its query; authorization codes travel there.
	target := req.URL.Scheme + "://" + req.URL.Host + req.URL.Path
	t.log.Debugw("HTTP request", "requestID", id, "method", req.Method, "url", target)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.log.Debugw("HTTP request failed", "requestID", id, "method", req.Method, "url", target, "duration", time.Since(start), "error", err)
		return nil, err
	}
	t.log.Debugw("HTTP response", "requestID", id, "status", resp.StatusCode, "proto", resp.Proto, "duration", time.Since(start))
	return resp, nil
}
