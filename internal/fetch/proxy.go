package fetch

import (
	"fmt"
	"math/rand/v2"

	"github.com/tbialecki/judowatch/internal/config"
)

// ProxyPool selects a proxy endpoint by cumulative-weight random draw over
// each entry's usage_ratio.
type ProxyPool struct {
	proxies []config.ProxyConfig
	total   float64
}

// NewProxyPool builds a pool from configuration. Entries with a
// non-positive usage_ratio are skipped.
func NewProxyPool(proxies []config.ProxyConfig) *ProxyPool {
	p := &ProxyPool{}
	for _, pr := range proxies {
		if pr.UsageRatio <= 0 {
			continue
		}
		p.proxies = append(p.proxies, pr)
		p.total += pr.UsageRatio
	}
	return p
}

// Pick draws one proxy with probability proportional to its usage_ratio.
func (p *ProxyPool) Pick() (config.ProxyConfig, error) {
	if len(p.proxies) == 0 {
		return config.ProxyConfig{}, fmt.Errorf("proxy pool is empty")
	}

	draw := rand.Float64() * p.total
	acc := 0.0
	for _, pr := range p.proxies {
		acc += pr.UsageRatio
		if draw < acc {
			return pr, nil
		}
	}
	// Floating point edge: fall back to the last entry.
	return p.proxies[len(p.proxies)-1], nil
}

// Size returns the number of usable proxies in the pool.
func (p *ProxyPool) Size() int {
	return len(p.proxies)
}
