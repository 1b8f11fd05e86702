package handlers

import (
	"net/http"
	"strings"

	"prediction-settlement/internal/models"
	"prediction-settlement/internal/services"

	"github.com/gin-gonic/gin"
)

type PoolHandler struct {
	poolService *services.PoolService
}

func NewPoolHandler(poolService *services.PoolService) *PoolHandler {
	return &PoolHandler{
		poolService: poolService,
	}
}

// GetAggregatedPool returns the aggregated prize-pool figure for the
// current hour bucket. The figure is advisory: failures degrade to
// broader levels and finally to zero, never to an error.
// GET /api/pools?level=SUBCATEGORY&category=SPORTS&subcategory=TENNIS
func (h *PoolHandler) GetAggregatedPool(c *gin.Context) {
	level := models.PoolLevel(strings.ToUpper(c.DefaultQuery("level", string(models.PoolLevelPlatform))))
	switch level {
	case models.PoolLevelSubcategory, models.PoolLevelCategory, models.PoolLevelPlatform:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pool level"})
		return
	}

	category := c.Query("category")
	subcategory := c.Query("subcategory")

	value := h.poolService.GetAggregatedPool(c.Request.Context(), level, category, subcategory)

	c.JSON(http.StatusOK, gin.H{
		"level":       level,
		"category":    services.NormalizeCategory(category),
		"subcategory": services.NormalizeCategory(subcategory),
		"hour_bucket": h.poolService.CurrentHourBucket(),
		"pool":        value,
	})
}
