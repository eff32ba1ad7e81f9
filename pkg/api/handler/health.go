package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mudcore/mudcore/pkg/api/dto"
)

// Health godoc
// @Summary      Health check
// @Description  Reports the admin API as reachable
// @Tags         global
// @Produce      json
// @Success      200 {object} dto.HealthResponse
// @Router       /health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{Status: "healthy"})
}
