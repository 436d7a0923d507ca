package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scoutwork/harvest/enrich"
	"github.com/scoutwork/harvest/models"
)

// EnrichBatch returns a handler for POST /api/v1/enrich/batch.
func EnrichBatch(svc *enrich.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.EnrichBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.EnrichBatchResponse{Success: false})
			return
		}

		enrichments := svc.EnrichBatch(c.Request.Context(), req.URLs, req.Force)
		c.JSON(http.StatusOK, models.EnrichBatchResponse{
			Success:     true,
			Enrichments: enrichments,
			DurationMs:  time.Since(start).Milliseconds(),
		})
	}
}
