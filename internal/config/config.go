// Package config provides centralized configuration loaded from environment
// variables plus a YAML watch file (candidate URLs, proxy pool, retry
// ladder). Shared by both cmd/server and cmd/judoctl.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// --------------------------------------------------------------------------
// Watch file — candidate URLs, proxy pool and ATM retry ladder
// --------------------------------------------------------------------------

// ProxyConfig is one entry of the weighted proxy pool.
type ProxyConfig struct {
	URL        string  `yaml:"url"`
	Auth       string  `yaml:"auth"`
	UsageRatio float64 `yaml:"usage_ratio"`
}

// RetryStep is one rung of the ATM probe escalation ladder.
// Pause is waited before the attempt; Policy is the proxy policy for it.
type RetryStep struct {
	Pause  time.Duration `yaml:"pause"`
	Policy string        `yaml:"policy"` // disabled | retry | force
}

// UnmarshalYAML accepts Go duration strings ("5s", "5m") for pause.
func (r *RetryStep) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Pause  string `yaml:"pause"`
		Policy string `yaml:"policy"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	r.Policy = raw.Policy
	r.Pause = 0
	if raw.Pause != "" {
		d, err := time.ParseDuration(raw.Pause)
		if err != nil {
			return fmt.Errorf("parse retry pause %q: %w", raw.Pause, err)
		}
		r.Pause = d
	}
	return nil
}

type watchFile struct {
	URLs     []string      `yaml:"urls"`
	Proxies  []ProxyConfig `yaml:"proxies"`
	ATMRetry []RetryStep   `yaml:"atm_retry"`
}

// --------------------------------------------------------------------------
// Config struct — populated from environment variables + watch file
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting (operator API)
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Snapshot files
	SnapshotDir string

	// Outbound admin alerts
	AdminNotificationURL string

	// Scraping
	WatchURLs      []string
	Proxies        []ProxyConfig
	ATMRetry       []RetryStep
	FetchTimeout   time.Duration
	ScrapeRPM      int // requests per minute against scraped hosts, 0 = unlimited
	CardCacheTTL   time.Duration
	MainInterval   time.Duration
	ActiveInterval time.Duration
	AdminRetention time.Duration
}

// Load reads configuration from environment variables with sensible defaults
// and merges the watch file (WATCH_CONFIG_FILE, default watch.yaml).
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}

	cfg := &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		SnapshotDir: envOr("SNAPSHOT_DIR", "data"),

		AdminNotificationURL: envOr("SEND_ADMIN_NOTIFICATION_URL", ""),

		FetchTimeout:   time.Duration(envInt("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
		ScrapeRPM:      envInt("SCRAPE_RPM", 0),
		CardCacheTTL:   time.Duration(envInt("CARD_CACHE_TTL_MINUTES", 15)) * time.Minute,
		MainInterval:   time.Duration(envInt("MAIN_INTERVAL_MINUTES", 10)) * time.Minute,
		ActiveInterval: time.Duration(envInt("ACTIVE_INTERVAL_SECONDS", 5)) * time.Second,
		AdminRetention: time.Duration(envInt("ADMIN_RETENTION_HOURS", 24)) * time.Hour,
	}

	if err := cfg.loadWatchFile(envOr("WATCH_CONFIG_FILE", "watch.yaml")); err != nil {
		return nil, err
	}

	// WATCH_URLS overrides the file list when set.
	if urls := envList("WATCH_URLS", nil); urls != nil {
		cfg.WatchURLs = urls
	}

	if len(cfg.ATMRetry) == 0 {
		cfg.ATMRetry = DefaultATMRetry()
	}

	return cfg, nil
}

// DefaultATMRetry is the 2-step escalation ladder: a direct attempt falling
// back to the proxy, then a forced proxy attempt after a 5 minute pause.
func DefaultATMRetry() []RetryStep {
	return []RetryStep{
		{Pause: 0, Policy: "retry"},
		{Pause: 5 * time.Minute, Policy: "force"},
	}
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) loadWatchFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read watch file %s: %w", path, err)
	}

	var wf watchFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return fmt.Errorf("parse watch file %s: %w", path, err)
	}

	c.WatchURLs = wf.URLs
	c.Proxies = wf.Proxies
	c.ATMRetry = wf.ATMRetry
	return nil
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
