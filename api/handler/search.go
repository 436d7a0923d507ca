package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scoutwork/harvest/cache"
	"github.com/scoutwork/harvest/models"
	"github.com/scoutwork/harvest/pipeline"
	"github.com/scoutwork/harvest/tracking"
)

// Search returns a handler for POST /api/v1/search.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Cache lookup (only when max_age is set).
//  3. Run the search pipeline.
//  4. Cache store + fire-and-forget run report.
func Search(svc *pipeline.Service, cc *cache.Cache, tracker *tracking.Reporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.SearchResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		// ── 2. Cache lookup ─────────────────────────────────────────
		cacheKey := cache.Key(req.Keyword, req.Source, req.Country, req.Limit)
		if cc != nil && req.MaxAge > 0 {
			if cached, hit := cc.Get(cacheKey, req.MaxAge); hit {
				// Copy so the shared cached value is never mutated.
				out := *cached
				out.CacheStatus = "hit"
				out.DurationMs = time.Since(start).Milliseconds()
				c.JSON(http.StatusOK, out)
				return
			}
		}

		// ── 3. Run the pipeline ─────────────────────────────────────
		resp := svc.Search(c.Request.Context(), &req)

		if !resp.Success {
			c.JSON(statusForCode(resp.Error), resp)
			return
		}

		// ── 4. Cache store + run report ─────────────────────────────
		if cc != nil && req.MaxAge > 0 {
			stored := *resp
			stored.CacheStatus = ""
			cc.Set(cacheKey, &stored)
			resp.CacheStatus = "miss"
		}
		if tracker != nil {
			tracker.ReportAsync(&tracking.RunReport{
				Source:       req.Source,
				Keyword:      req.Keyword,
				Trigger:      "search",
				Pipeline:     resp.Pipeline,
				RecordsFound: resp.Total,
				DurationMs:   resp.DurationMs,
			})
		}

		c.JSON(http.StatusOK, resp)
	}
}

// statusForCode maps pipeline error codes to HTTP status codes.
func statusForCode(detail *models.ErrorDetail) int {
	if detail == nil {
		return http.StatusInternalServerError
	}
	switch detail.Code {
	case models.ErrCodeInvalidInput, models.ErrCodeValidation:
		return http.StatusBadRequest
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case models.ErrCodeRateLimited, models.ErrCodeOracleRateLimited:
		return http.StatusTooManyRequests
	case models.ErrCodeFetch, models.ErrCodeRender:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
