// Package fetch performs HTTP GETs against scraped tournament hosts with a
// pluggable proxy policy and weighted random proxy selection.
//
// Proxied requests are routed to the proxy endpoint carrying the original
// URL and an auth token as request headers. Rate limiting is handled via a
// token bucket limiter.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/tbialecki/judowatch/internal/config"
)

// Policy controls how a request is routed.
type Policy string

const (
	// PolicyDisabled issues a direct request only.
	PolicyDisabled Policy = "disabled"
	// PolicyRetry attempts a direct request and retries once through the
	// proxy on any failure (network error or non-2xx).
	PolicyRetry Policy = "retry"
	// PolicyForce routes the request through the proxy pool.
	PolicyForce Policy = "force"
)

// ParsePolicy maps a configuration string to a Policy, defaulting to
// PolicyDisabled for unknown values.
func ParsePolicy(s string) Policy {
	switch Policy(s) {
	case PolicyRetry, PolicyForce:
		return Policy(s)
	default:
		return PolicyDisabled
	}
}

// Client is the shared HTTP client for all scraped resources.
type Client struct {
	httpClient *http.Client
	pool       *ProxyPool
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a fetch client with connection reuse, a bounded overall
// timeout, and optional rate limiting (requestsPerMinute <= 0 disables it).
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.ScrapeRPM > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.ScrapeRPM)/60.0), 1)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.FetchTimeout},
		pool:       NewProxyPool(cfg.Proxies),
		limiter:    limiter,
		logger:     logger,
	}
}

// Get fetches url under the given proxy policy. Non-2xx statuses are
// returned as errors so callers can fold every failure mode into one path.
func (c *Client) Get(ctx context.Context, url string, policy Policy) ([]byte, error) {
	if policy == PolicyRetry {
		body, err := c.do(ctx, url, false)
		if err == nil {
			return body, nil
		}
		c.logger.Debug("direct fetch failed, retrying through proxy", "url", url, "error", err)
		return c.do(ctx, url, true)
	}
	return c.do(ctx, url, policy == PolicyForce)
}

func (c *Client) do(ctx context.Context, url string, proxied bool) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	target := url
	var proxy config.ProxyConfig
	if proxied {
		var err error
		proxy, err = c.pool.Pick()
		if err != nil {
			return nil, fmt.Errorf("pick proxy: %w", err)
		}
		target = proxy.URL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	if proxied {
		req.Header.Set("Proxy-Auth", proxy.Auth)
		req.Header.Set("Proxy-Url", url)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s returned %d: %s", url, resp.StatusCode, truncate(body, 200))
	}

	c.logger.Debug("fetched", "url", url, "proxied", proxied,
		"bytes", len(body), "duration", time.Since(start).Round(time.Millisecond))
	return body, nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
