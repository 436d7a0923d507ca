package models

// SearchRequest is the payload for POST /api/v1/search.
type SearchRequest struct {
	// Keyword is the search term. Required.
	Keyword string `json:"keyword" binding:"required"`

	// Source is the source ID to scrape (e.g. "geekhunter"). Required.
	Source string `json:"source" binding:"required"`

	// Country is a two-letter country hint used to fill records whose
	// pages do not state one. Default: "br".
	Country string `json:"country,omitempty"`

	// Limit is the maximum number of records to return.
	// Default: 50. Max: 100.
	Limit int `json:"limit,omitempty" binding:"omitempty,min=1,max=100"`

	// MaxAge enables the result cache when > 0: a cached response
	// younger than MaxAge milliseconds is returned without re-scraping.
	MaxAge int `json:"max_age,omitempty"`

	// Metadata carries optional per-source hints (e.g. remote_only,
	// experience_level) consumed by the search URL builder.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *SearchRequest) Defaults() {
	if r.Country == "" {
		r.Country = "br"
	}
	if r.Limit == 0 {
		r.Limit = 50
	}
}

// CrawlRequest is the payload for POST /api/v1/crawl. It starts an
// asynchronous multi-unit catalog crawl (e.g. all regions of a
// government course index).
type CrawlRequest struct {
	// Source is the catalog source ID. Required.
	Source string `json:"source" binding:"required"`

	// Units restricts the crawl to the named units (region codes,
	// page groups). Empty means all units the source declares.
	Units []string `json:"units,omitempty"`

	// MaxPerUnit caps the records collected per unit. 0 means no cap.
	MaxPerUnit int `json:"max_per_unit,omitempty"`
}

// EnrichBatchRequest is the payload for POST /api/v1/enrich/batch.
type EnrichBatchRequest struct {
	// URLs are the organisation website URLs to enrich. Required.
	URLs []string `json:"urls" binding:"required,min=1,max=50"`

	// Force bypasses the enrichment cache.
	Force bool `json:"force,omitempty"`
}
