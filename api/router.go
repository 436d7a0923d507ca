package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scoutwork/harvest/api/handler"
	"github.com/scoutwork/harvest/api/middleware"
	"github.com/scoutwork/harvest/cache"
	"github.com/scoutwork/harvest/config"
	"github.com/scoutwork/harvest/crawl"
	"github.com/scoutwork/harvest/enrich"
	"github.com/scoutwork/harvest/pipeline"
	"github.com/scoutwork/harvest/sources"
	"github.com/scoutwork/harvest/tracking"
)

// Deps bundles everything the router serves.
type Deps struct {
	Search   *pipeline.Service
	Crawl    *crawl.Service
	Enrich   *enrich.Service
	Registry *sources.Registry
	Cache    *cache.Cache
	Tracker  *tracking.Reporter
	Pool     handler.PoolStatser
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes
// always work.
func NewRouter(deps Deps, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(deps.Pool, startTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Search
	protected.POST("/search", handler.Search(deps.Search, deps.Cache, deps.Tracker))

	// Sources
	protected.GET("/sources", handler.Sources(deps.Registry))

	// Crawl
	protected.POST("/crawl", handler.PostCrawl(deps.Crawl))
	protected.GET("/crawl/:id", handler.GetCrawl(deps.Crawl))

	// Enrich
	protected.POST("/enrich/batch", handler.EnrichBatch(deps.Enrich))

	return r
}
