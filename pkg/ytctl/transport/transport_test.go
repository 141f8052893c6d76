// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"crypto/tls"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func writeServerCA(t *testing.T, server *httptest.Server) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ca.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: server.Certificate().Raw})
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func get(t *testing.T, rt http.RoundTripper, ctx context.Context, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	return NewHTTPClient(rt, 5*time.Second).Do(req)
}

func TestNewBaseTransport(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	base, ok := rt.(*http.Transport)
	require.True(t, ok)

	assert.False(t, base.ForceAttemptHTTP2)
	assert.NotNil(t, base.TLSNextProto)
	assert.Empty(t, base.TLSNextProto)
	assert.NotNil(t, base.Proxy)
	assert.Equal(t, uint16(tls.VersionTLS12), base.TLSClientConfig.MinVersion)
	assert.NotNil(t, base.TLSClientConfig.RootCAs)
	assert.False(t, base.TLSClientConfig.InsecureSkipVerify)
}

func TestPlainHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	rt, err := New()
	require.NoError(t, err)
	resp, err := get(t, rt, context.Background(), server.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHTTPSWithCAFileStaysOnHTTP1(t *testing.T) {
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Proto))
	}))
	server.EnableHTTP2 = true
	server.StartTLS()
	defer server.Close()

	t.Run("unknown CA is rejected", func(t *testing.T) {
		rt, err := New()
		require.NoError(t, err)
		_, err = get(t, rt, context.Background(), server.URL)
		require.Error(t, err)
	})

	t.Run("extra CA is trusted", func(t *testing.T) {
		rt, err := New(WithCAFile(writeServerCA(t, server)))
		require.NoError(t, err)
		resp, err := get(t, rt, context.Background(), server.URL)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, "HTTP/1.1", resp.Proto)
		assert.Equal(t, 1, resp.ProtoMajor)
	})

	t.Run("insecure skip verify", func(t *testing.T) {
		rt, err := New(WithInsecureSkipVerify(true))
		require.NoError(t, err)
		resp, err := get(t, rt, context.Background(), server.URL)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, "HTTP/1.1", resp.Proto)
	})
}

func TestCAFileErrors(t *testing.T) {
	_, err := New(WithCAFile(filepath.Join(t.TempDir(), "missing.pem")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read CA file")

	garbage := filepath.Join(t.TempDir(), "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not a certificate"), 0o600))
	_, err = New(WithCAFile(garbage))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse CA file")
}

func TestRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	_, err := New(WithRateLimit(-1, 1))
	require.Error(t, err)
	_, err = New(WithRateLimit(1, -1))
	require.Error(t, err)

	rt, err := New(WithRateLimit(0.1, 1))
	require.NoError(t, err)

	resp, err := get(t, rt, context.Background(), server.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = get(t, rt, ctx, server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
}

func TestMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	require.Error(t, err)

	rt, err := New(WithMetrics(metrics))
	require.NoError(t, err)
	for _, path := range []string{"/", "/", "/missing"} {
		resp, err := get(t, rt, context.Background(), server.URL+path)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Requests.WithLabelValues("200", "get")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues("404", "get")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.InFlight))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.Duration))
}

func TestLoggingAndUserAgent(t *testing.T) {
	seen := make(chan http.Header, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Clone()
	}))
	defer server.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	rt, err := New(WithLogger(zap.New(core).Sugar(), true), WithUserAgent("ytctl/test"))
	require.NoError(t, err)

	resp, err := get(t, rt, context.Background(), server.URL+"/path?code=secret")
	require.NoError(t, err)
	_ = resp.Body.Close()

	header := <-seen
	assert.Equal(t, "ytctl/test", header.Get("User-Agent"))
	requestID := header.Get(RequestIDHeader)
	assert.NotEmpty(t, requestID)

	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, requestID, fields["requestID"])
	assert.Equal(t, server.URL+"/path", fields["url"])
	assert.Equal(t, 1, logs.FilterMessage("HTTP response").Len())

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "custom")
	resp, err = NewHTTPClient(rt, time.Second).Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "custom", (<-seen).Get("User-Agent"))
}

func TestQuietWithoutVerbose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(RequestIDHeader))
	}))
	defer server.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	rt, err := New(WithLogger(zap.New(core).Sugar(), false))
	require.NoError(t, err)
	resp, err := get(t, rt, context.Background(), server.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Zero(t, logs.Len())
}

func TestWithBase(t *testing.T) {
	_, err := New(WithBase(nil))
	require.Error(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()
	rt, err := New(WithBase(server.Client().Transport))
	require.NoError(t, err)
	assert.Equal(t, server.Client().Transport, rt)
}

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient(http.DefaultTransport, 3*time.Second)
	assert.Equal(t, 3*time.Second, client.Timeout)
	assert.Equal(t, http.DefaultTransport, client.Transport)
}
