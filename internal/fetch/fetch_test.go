package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbialecki/judowatch/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(proxies ...config.ProxyConfig) *config.Config {
	return &config.Config{
		FetchTimeout: 5 * time.Second,
		Proxies:      proxies,
	}
}

func TestGetDirectSetsNoCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		io.WriteString(w, "hello")
	}))
	t.Cleanup(srv.Close)

	c := NewClient(testConfig(), discardLogger())
	body, err := c.Get(context.Background(), srv.URL, PolicyDisabled)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestGetDisabledPropagatesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(testConfig(), discardLogger())
	_, err := c.Get(context.Background(), srv.URL, PolicyDisabled)
	assert.ErrorContains(t, err, "403")
}

func TestGetForceRoutesThroughProxy(t *testing.T) {
	target := "https://target.example/index.html"

	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Proxy-Auth"))
		assert.Equal(t, target, r.Header.Get("Proxy-Url"))
		io.WriteString(w, "proxied")
	}))
	t.Cleanup(proxy.Close)

	c := NewClient(testConfig(config.ProxyConfig{URL: proxy.URL, Auth: "secret", UsageRatio: 1}), discardLogger())
	body, err := c.Get(context.Background(), target, PolicyForce)
	require.NoError(t, err)
	assert.Equal(t, "proxied", string(body))
}

func TestGetRetryFallsBackToProxy(t *testing.T) {
	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	t.Cleanup(direct.Close)

	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, direct.URL, r.Header.Get("Proxy-Url"))
		io.WriteString(w, "rescued")
	}))
	t.Cleanup(proxy.Close)

	c := NewClient(testConfig(config.ProxyConfig{URL: proxy.URL, Auth: "secret", UsageRatio: 1}), discardLogger())
	body, err := c.Get(context.Background(), direct.URL, PolicyRetry)
	require.NoError(t, err)
	assert.Equal(t, "rescued", string(body))
}

func TestGetRetryPrefersDirect(t *testing.T) {
	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "direct")
	}))
	t.Cleanup(direct.Close)

	// No proxies configured: the direct path must succeed without ever
	// consulting the pool.
	c := NewClient(testConfig(), discardLogger())
	body, err := c.Get(context.Background(), direct.URL, PolicyRetry)
	require.NoError(t, err)
	assert.Equal(t, "direct", string(body))
}

func TestGetForceWithEmptyPoolFails(t *testing.T) {
	c := NewClient(testConfig(), discardLogger())
	_, err := c.Get(context.Background(), "https://target.example/", PolicyForce)
	assert.ErrorContains(t, err, "proxy pool is empty")
}

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, PolicyRetry, ParsePolicy("retry"))
	assert.Equal(t, PolicyForce, ParsePolicy("force"))
	assert.Equal(t, PolicyDisabled, ParsePolicy("disabled"))
	assert.Equal(t, PolicyDisabled, ParsePolicy("bogus"))
	assert.Equal(t, PolicyDisabled, ParsePolicy(""))
}
