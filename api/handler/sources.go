package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scoutwork/harvest/models"
	"github.com/scoutwork/harvest/sources"
)

// Sources returns a handler for GET /api/v1/sources.
func Sources(registry *sources.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		list := registry.List()
		infos := make([]models.SourceInfo, 0, len(list))
		for _, s := range list {
			infos = append(infos, models.SourceInfo{
				ID:             s.ID,
				BaseURL:        s.BaseURL,
				Kind:           string(s.Kind),
				RequiresRender: s.RequiresRender,
			})
		}
		c.JSON(http.StatusOK, gin.H{"sources": infos, "total": len(infos)})
	}
}
