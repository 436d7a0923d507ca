package models

// StageTrace reports one pipeline stage's outcome to the caller.
type StageTrace struct {
	Stage      string `json:"stage"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// SearchResponse is the response for POST /api/v1/search.
type SearchResponse struct {
	// Success is false only when a critical stage failed outright.
	// Partial degradation still returns Success=true with Errors set.
	Success bool `json:"success"`

	// Records is the best-effort result list, in document order.
	Records []Record `json:"records"`

	// Total is len(Records).
	Total int `json:"total"`

	// Errors lists every degradation encountered, prefixed with the
	// stage name. Non-empty whenever something degraded.
	Errors []string `json:"errors"`

	// Pipeline is the per-stage trace (status + duration).
	Pipeline []StageTrace `json:"pipeline"`

	// PageTitle is the title of the fetched page, when available.
	PageTitle string `json:"page_title,omitempty"`

	// Signals carries the analyzer's page-level observations.
	Signals PageSignals `json:"signals"`

	// DurationMs is the end-to-end pipeline duration.
	DurationMs int64 `json:"duration_ms"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// CrawlResponse acknowledges an accepted crawl job.
type CrawlResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CrawlStatusResponse is the response for GET /api/v1/crawl/:id.
type CrawlStatusResponse struct {
	ID             string   `json:"id"`
	Status         string   `json:"status"` // "processing", "completed", "partial", "failed"
	UnitsDone      int      `json:"units_done"`
	UnitsTotal     int      `json:"units_total"`
	CurrentUnit    string   `json:"current_unit,omitempty"`
	Records        []Record `json:"records,omitempty"`
	Errors         []string `json:"errors,omitempty"`
	RecordsPerUnit []int    `json:"records_per_unit,omitempty"`
}

// CrawlJob is the internal state of an asynchronous crawl, stored in
// the job store and mutated by the background crawler.
type CrawlJob struct {
	ID             string
	Status         string
	CreatedAt      int64
	UnitsDone      int
	UnitsTotal     int
	CurrentUnit    string
	Records        []Record
	Errors         []string
	RecordsPerUnit []int
}

// Enrichment holds the organisation data pulled from an official website.
type Enrichment struct {
	WebsiteURL   string `json:"website_url"`
	LogoURL      string `json:"logo_url,omitempty"`
	Description  string `json:"description,omitempty"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	InstagramURL string `json:"instagram_url,omitempty"`
	LinkedInURL  string `json:"linkedin_url,omitempty"`
	FacebookURL  string `json:"facebook_url,omitempty"`
	Error        string `json:"error,omitempty"`
}

// EnrichBatchResponse is the response for POST /api/v1/enrich/batch.
type EnrichBatchResponse struct {
	Success     bool         `json:"success"`
	Enrichments []Enrichment `json:"enrichments"`
	DurationMs  int64        `json:"duration_ms"`
}

// SourceInfo describes a registered source for GET /api/v1/sources.
type SourceInfo struct {
	ID             string `json:"id"`
	BaseURL        string `json:"base_url"`
	Kind           string `json:"kind"` // "jobs" or "catalog"
	RequiresRender bool   `json:"requires_render"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the render browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
}
