// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type options struct {
	caFile    string
	insecure  bool
	rateLimit float64
	burst     int
	metrics   *Metrics
	log       *zap.SugaredLogger
	verbose   bool
	userAgent string
	base      http.RoundTripper
}

type Option func(*options) error

// WithCAFile appends the PEM certificates in path to the system pool.
func WithCAFile(path string) Option {
	return func(o *options) error {
		o.caFile = path
		return nil
	}
}

func WithInsecureSkipVerify(insecure bool) Option {
	return func(o *options) error {
		o.insecure = insecure
		return nil
	}
}

// WithRateLimit limits outgoing requests to rps per second. Zero disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) error {
		if rps < 0 {
			return fmt.Errorf("invalid rate limit: %v", rps)
		}
		if burst < 0 {
			return fmt.Errorf("invalid burst: %d", burst)
		}
		o.rateLimit = rps
		o.burst = burst
		return nil
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(o *options) error {
		o.metrics = metrics
		return nil
	}
}

// WithLogger sets the logger used for request logging. Requests are only
// logged when verbose is set.
func WithLogger(log *zap.SugaredLogger, verbose bool) Option {
	return func(o *options) error {
		if log != nil {
			o.log = log
		}
		o.verbose = verbose
		return nil
	}
}

func WithUserAgent(userAgent string) Option {
	return func(o *options) error {
		o.userAgent = userAgent
		return nil
	}
}

// WithBase replaces the innermost round tripper. Used by tests.
func WithBase(rt http.RoundTripper) Option {
	return func(o *options) error {
		if rt == nil {
			return errors.New("base round tripper is nil")
		}
		o.base = rt
		return nil
	}
}

// New returns the layered round tripper. Requests pass through the user
// agent, logging, rate limit and metrics layers before reaching the base
// transport.
func New(opts ...Option) (http.RoundTripper, error) {
	o := &options{log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	rt := o.base
	if rt == nil {
		base, err := newBaseTransport(o.caFile, o.insecure)
		if err != nil {
			return nil, err
		}
		rt = base
	}
	if o.metrics != nil {
		rt = o.metrics.instrument(rt)
	}
	if o.rateLimit > 0 {
		burst := o.burst
		if burst == 0 {
			burst = 1
		}
		rt = &rateLimitedTransport{base: rt, limiter: rate.NewLimiter(rate.Limit(o.rateLimit), burst)}
	}
	if o.verbose {
		rt = &loggingTransport{base: rt, log: o.log}
	}
	if o.userAgent != "" {
		rt = &userAgentTransport{base: rt, userAgent: o.userAgent}
	}
	return rt, nil
}

// NewHTTPClient wraps rt in a client with the given overall timeout.
func NewHTTPClient(rt http.RoundTripper, timeout time.Duration) *http.Client {
	return &http.Client{Transport: rt, Timeout: timeout}
}

// newBaseTransport speaks HTTP/1.1 only, for both http and https URLs.
func newBaseTransport(caFile string, insecure bool) (*http.Transport, error) {
	tlsConfig, err := loadTLSConfig(caFile, insecure)
	if err != nil {
		return nil, err
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       tlsConfig,
		ForceAttemptHTTP2:     false,
		TLSNextProto:          map[string]func(string, *tls.Conn) http.RoundTripper{},
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}, nil
}

func loadTLSConfig(caFile string, insecure bool) (*tls.Config, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: insecure, //nolint:gosec // opt-in via insecure-skip-tls-verify
		RootCAs:            pool,
		NextProtos:         []string{"http/1.1"},
	}
	if caFile == "" {
		return tlsConfig, nil
	}
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	if ok := pool.AppendCertsFromPEM(data); !ok {
		return nil, errors.New("failed to parse CA file")
	}
	return tlsConfig, nil
}
