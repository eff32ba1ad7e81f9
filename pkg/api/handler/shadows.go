package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mudcore/mudcore/pkg/api/dto"
	"github.com/mudcore/mudcore/pkg/shadow"
)

// ShadowHandler exposes ShadowRegistry read-only stats over HTTP.
type ShadowHandler struct {
	shadows *shadow.Registry
}

// NewShadowHandler constructs a ShadowHandler over shadows.
func NewShadowHandler(shadows *shadow.Registry) *ShadowHandler {
	return &ShadowHandler{shadows: shadows}
}

// Stats godoc
// @Summary      Shadow registry stats
// @Tags         shadows
// @Produce      json
// @Success      200 {object} dto.ShadowStatsResponse
// @Router       /api/v1/shadows/stats [get]
func (h *ShadowHandler) Stats(c *gin.Context) {
	stats := h.shadows.GetStats()
	c.JSON(http.StatusOK, dto.ShadowStatsResponse{
		ShadowedObjects: stats.ShadowedObjects,
		TotalShadows:    stats.TotalShadows,
		ByType:          stats.ByType,
	})
}
