package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Browser BrowserConfig
	Source  SourceConfig
	Run     RunConfig
	Cache   CacheConfig
	Webhook WebhookConfig
	Log     LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity.
	MaxPages int // default: 2

	// DefaultProxy is the proxy URL for browser and HTTP sessions.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Stealth injects anti-bot-detection evasions into every session page.
	Stealth bool // default: false

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds fails requests to known ad and tracking hosts.
	BlockAds bool // default: true

	// NavigationTimeout bounds the initial page load.
	NavigationTimeout time.Duration // default: 15s
}

// SourceConfig describes the paginated listing being audited.
type SourceConfig struct {
	// StartURL is the first page of the listing.
	StartURL string // default: "https://news.ycombinator.com/newest"

	// Fetcher selects the page source: "browser" (rod) or "http" (static fetch).
	Fetcher string // default: "browser"

	// File optionally names a YAML source profile overlaid by ApplySourceFile.
	File string

	ItemSelector   string // default: ".athing"
	TitleSelector  string // default: ".titleline > a"
	ScoreSelector  string // default: ".score"
	AgeSelector    string // default: ".age"
	AuthorSelector string // default: ".hnuser"
	AgeAttribute   string // default: "title"
	NextSelector   string // default: ".morelink"
}

// RunConfig controls a single collection run.
type RunConfig struct {
	// TargetCount is the default sample size.
	TargetCount int // default: 100

	// SelectorTimeout bounds the wait for item containers on each page.
	SelectorTimeout time.Duration // default: 10s

	// QuietInterval is the network quiet period after pagination.
	QuietInterval time.Duration // default: 500ms

	// Deadline bounds an entire run.
	Deadline time.Duration // default: 5m
}

// CacheConfig controls the run status store.
type CacheConfig struct {
	// MaxEntries is the maximum number of remembered runs.
	MaxEntries int // default: 100

	// TTL is how long a finished run stays retrievable.
	TTL time.Duration // default: 1h
}

// WebhookConfig controls push delivery of progress events.
type WebhookConfig struct {
	// URL receives events; empty disables delivery.
	URL string

	// Secret signs payloads with HMAC-SHA256 when set.
	Secret string

	// AllEvents delivers every event instead of only result/error.
	AllEvents bool // default: false
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("SORTCHECK_HOST", "0.0.0.0"),
			Port: envIntOr("SORTCHECK_PORT", 3000),
			Mode: envOr("SORTCHECK_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("SORTCHECK_HEADLESS", true),
			MaxPages:     envIntOr("SORTCHECK_MAX_PAGES", 2),
			DefaultProxy: os.Getenv("SORTCHECK_PROXY"),
			NoSandbox:    envBoolOr("SORTCHECK_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("SORTCHECK_BROWSER_BIN"),
			Stealth:      envBoolOr("SORTCHECK_STEALTH", false),
			BlockedResourceTypes: envSliceOr("SORTCHECK_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
			BlockAds:          envBoolOr("SORTCHECK_BLOCK_ADS", true),
			NavigationTimeout: envDurationOr("SORTCHECK_NAV_TIMEOUT", 15*time.Second),
		},
		Source: SourceConfig{
			StartURL:       envOr("SORTCHECK_START_URL", "https://news.ycombinator.com/newest"),
			Fetcher:        envOr("SORTCHECK_FETCHER", "browser"),
			File:           os.Getenv("SORTCHECK_SOURCE_FILE"),
			ItemSelector:   envOr("SORTCHECK_ITEM_SELECTOR", ".athing"),
			TitleSelector:  envOr("SORTCHECK_TITLE_SELECTOR", ".titleline > a"),
			ScoreSelector:  envOr("SORTCHECK_SCORE_SELECTOR", ".score"),
			AgeSelector:    envOr("SORTCHECK_AGE_SELECTOR", ".age"),
			AuthorSelector: envOr("SORTCHECK_AUTHOR_SELECTOR", ".hnuser"),
			AgeAttribute:   envOr("SORTCHECK_AGE_ATTRIBUTE", "title"),
			NextSelector:   envOr("SORTCHECK_NEXT_SELECTOR", ".morelink"),
		},
		Run: RunConfig{
			TargetCount:     envIntOr("SORTCHECK_TARGET_COUNT", 100),
			SelectorTimeout: envDurationOr("SORTCHECK_SELECTOR_TIMEOUT", 10*time.Second),
			QuietInterval:   envDurationOr("SORTCHECK_QUIET_INTERVAL", 500*time.Millisecond),
			Deadline:        envDurationOr("SORTCHECK_RUN_DEADLINE", 5*time.Minute),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("SORTCHECK_CACHE_MAX_ENTRIES", 100),
			TTL:        envDurationOr("SORTCHECK_CACHE_TTL", time.Hour),
		},
		Webhook: WebhookConfig{
			URL:       os.Getenv("SORTCHECK_WEBHOOK_URL"),
			Secret:    os.Getenv("SORTCHECK_WEBHOOK_SECRET"),
			AllEvents: envBoolOr("SORTCHECK_WEBHOOK_ALL_EVENTS", false),
		},
		Log: LogConfig{
			Level:  envOr("SORTCHECK_LOG_LEVEL", "info"),
			Format: envOr("SORTCHECK_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
