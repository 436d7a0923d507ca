package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scoutwork/harvest/crawl"
	"github.com/scoutwork/harvest/models"
)

// PostCrawl returns a handler for POST /api/v1/crawl. The crawl runs in
// the background; the response carries the job ID for polling.
func PostCrawl(svc *crawl.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CrawlRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		resp, err := svc.Start(&req)
		if err != nil {
			status := http.StatusInternalServerError
			var perr *models.PipelineError
			if errors.As(err, &perr) && perr.Code == models.ErrCodeInvalidInput {
				status = http.StatusBadRequest
			}
			detail := &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
			if perr != nil {
				detail = perr.ToDetail()
			}
			c.JSON(status, gin.H{"error": detail})
			return
		}

		c.JSON(http.StatusAccepted, resp)
	}
}

// GetCrawl returns a handler for GET /api/v1/crawl/:id.
func GetCrawl(svc *crawl.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, ok := svc.Status(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "unknown crawl job",
				},
			})
			return
		}
		c.JSON(http.StatusOK, status)
	}
}
