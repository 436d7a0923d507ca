package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Render    RenderConfig
	Fetcher   FetcherConfig
	Extractor ExtractorConfig
	Oracle    OracleConfig
	Crawl     CrawlConfig
	Catalog   CatalogConfig
	Enrich    EnrichConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Tracking  TrackingConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the headless browser behind the render service.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 10

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// RenderConfig controls rendered fetches.
type RenderConfig struct {
	// NavigationTimeout is the max time for navigation alone.
	NavigationTimeout time.Duration // default: 30s

	// WaitSelectorTimeout bounds the wait for a hint selector. Absence
	// after the timeout is logged, not fatal.
	WaitSelectorTimeout time.Duration // default: 10s

	// BlockedResourceTypes lists resource types the render path blocks.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string
}

// FetcherConfig controls the adaptive fetch strategy.
type FetcherConfig struct {
	// HTTPTimeout is the deadline for the lightweight HTTP attempt.
	HTTPTimeout time.Duration // default: 15s

	// RenderDomains lists domains that always require script execution.
	RenderDomains []string

	// MinVisibleText is the visible-text length below which a page is
	// treated as script-dependent outright.
	MinVisibleText int // default: 500

	// MarkerVisibleText is the visible-text length below which a page
	// carrying a framework/loading marker is treated as script-dependent.
	MarkerVisibleText int // default: 1000
}

// ExtractorConfig controls the record extractor and hybrid fallback.
type ExtractorConfig struct {
	// FallbackThreshold is the deterministic record count below which
	// the extraction oracle is consulted.
	FallbackThreshold int // default: 3
}

// OracleConfig controls the structured-extraction oracle client.
type OracleConfig struct {
	// Enabled toggles the hybrid fallback. The oracle also disables
	// itself when APIKey is empty.
	Enabled bool // default: true

	// APIKey authenticates against the OpenAI-compatible endpoint.
	APIKey string

	// BaseURL is the chat-completions endpoint base, e.g.
	// "https://api.together.xyz/v1".
	BaseURL string

	// SimpleModel is the economical tier; ComplexModel is used when the
	// content complexity heuristic fires.
	SimpleModel  string // default: "meta-llama/Llama-3.1-8B-Instruct-Turbo"
	ComplexModel string // default: "meta-llama/Llama-3.3-70B-Instruct-Turbo"

	// MaxContentChars caps the compressed content sent per call.
	MaxContentChars int // default: 8000

	// Timeout bounds one oracle call.
	Timeout time.Duration // default: 60s
}

// CrawlConfig controls the paginated multi-unit catalog crawler.
type CrawlConfig struct {
	// UnitDelay is the mandatory pause between unit requests.
	UnitDelay time.Duration // default: 1s

	// Retries is the fixed retry budget per unit fetch.
	Retries int // default: 3

	// RetryDelay is the pause before a retry attempt.
	RetryDelay time.Duration // default: 3s
}

// CatalogConfig controls the catalog comparison client.
type CatalogConfig struct {
	// URL is the catalog service base URL. Empty disables comparison.
	URL string

	// Timeout bounds one comparison call.
	Timeout time.Duration // default: 10s
}

// EnrichConfig controls the batch organisation enricher.
type EnrichConfig struct {
	// Concurrency is the semaphore size for batch enrichment.
	Concurrency int // default: 3

	// DispatchDelay is the mandatory pause between dispatched units.
	DispatchDelay time.Duration // default: 500ms

	// CacheTTL is how long an enrichment stays cached.
	CacheTTL time.Duration // default: 720h (30 days)
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CacheConfig controls the search response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 1000
}

// TrackingConfig controls fire-and-forget run reporting.
type TrackingConfig struct {
	// URL is the tracking endpoint. Empty disables reporting.
	URL string

	// Secret signs report bodies with HMAC-SHA256 when non-empty.
	Secret string
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
			Host: envOr("HARVEST_HOST", "0.0.0.0"),
			Port: envIntOr("HARVEST_PORT", 8080),
			Mode: envOr("HARVEST_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("HARVEST_HEADLESS", true),
			MaxPages:   envIntOr("HARVEST_MAX_PAGES", 10),
			NoSandbox:  envBoolOr("HARVEST_NO_SANDBOX", false),
			BrowserBin: os.Getenv("HARVEST_BROWSER_BIN"),
		},
		Render: RenderConfig{
			NavigationTimeout:   envDurationOr("HARVEST_NAV_TIMEOUT", 30*time.Second),
			WaitSelectorTimeout: envDurationOr("HARVEST_WAIT_SELECTOR_TIMEOUT", 10*time.Second),
			BlockedResourceTypes: envSliceOr("HARVEST_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
		},
		Fetcher: FetcherConfig{
			HTTPTimeout: envDurationOr("HARVEST_HTTP_TIMEOUT", 15*time.Second),
			RenderDomains: envSliceOr("HARVEST_RENDER_DOMAINS", []string{
				"geekhunter.com.br",
				"vagas.com.br",
				"catho.com.br",
				"99jobs.com",
			}),
			MinVisibleText:    envIntOr("HARVEST_MIN_VISIBLE_TEXT", 500),
			MarkerVisibleText: envIntOr("HARVEST_MARKER_VISIBLE_TEXT", 1000),
		},
		Extractor: ExtractorConfig{
			FallbackThreshold: envIntOr("HARVEST_FALLBACK_THRESHOLD", 3),
		},
		Oracle: OracleConfig{
			Enabled:         envBoolOr("HARVEST_ORACLE_ENABLED", true),
			APIKey:          os.Getenv("HARVEST_ORACLE_API_KEY"),
			BaseURL:         envOr("HARVEST_ORACLE_BASE_URL", "https://api.together.xyz/v1"),
			SimpleModel:     envOr("HARVEST_ORACLE_SIMPLE_MODEL", "meta-llama/Llama-3.1-8B-Instruct-Turbo"),
			ComplexModel:    envOr("HARVEST_ORACLE_COMPLEX_MODEL", "meta-llama/Llama-3.3-70B-Instruct-Turbo"),
			MaxContentChars: envIntOr("HARVEST_ORACLE_MAX_CONTENT_CHARS", 8000),
			Timeout:         envDurationOr("HARVEST_ORACLE_TIMEOUT", 60*time.Second),
		},
		Crawl: CrawlConfig{
			UnitDelay:  envDurationOr("HARVEST_CRAWL_UNIT_DELAY", 1*time.Second),
			Retries:    envIntOr("HARVEST_CRAWL_RETRIES", 3),
			RetryDelay: envDurationOr("HARVEST_CRAWL_RETRY_DELAY", 3*time.Second),
		},
		Catalog: CatalogConfig{
			URL:     os.Getenv("HARVEST_CATALOG_URL"),
			Timeout: envDurationOr("HARVEST_CATALOG_TIMEOUT", 10*time.Second),
		},
		Enrich: EnrichConfig{
			Concurrency:   envIntOr("HARVEST_ENRICH_CONCURRENCY", 3),
			DispatchDelay: envDurationOr("HARVEST_ENRICH_DISPATCH_DELAY", 500*time.Millisecond),
			CacheTTL:      envDurationOr("HARVEST_ENRICH_CACHE_TTL", 720*time.Hour),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("HARVEST_AUTH_ENABLED", false),
			APIKeys: envSliceOr("HARVEST_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("HARVEST_RATE_RPS", 5.0),
			Burst:             envIntOr("HARVEST_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("HARVEST_CACHE_MAX_ENTRIES", 1000),
		},
		Tracking: TrackingConfig{
			URL:    os.Getenv("HARVEST_TRACKING_URL"),
			Secret: os.Getenv("HARVEST_TRACKING_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("HARVEST_LOG_LEVEL", "info"),
			Format: envOr("HARVEST_LOG_FORMAT", "json"),
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

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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
