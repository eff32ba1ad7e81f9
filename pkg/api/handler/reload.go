package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mudcore/mudcore/pkg/api/dto"
	"github.com/mudcore/mudcore/pkg/hotreload"
)

// ReloadHandler exposes the Hot-Reload Controller's reloadObject
// recipe over HTTP.
type ReloadHandler struct {
	controller *hotreload.Controller
}

// NewReloadHandler constructs a ReloadHandler over controller.
func NewReloadHandler(controller *hotreload.Controller) *ReloadHandler {
	return &ReloadHandler{controller: controller}
}

// Reload godoc
// @Summary      Hot-reload a content path
// @Description  Recompiles path and live-swaps its blueprint; requires Administrator level
// @Tags         reload
// @Produce      json
// @Param        path path string true "Content path"
// @Success      200 {object} dto.ReloadResponse
// @Failure      500 {object} dto.ReloadResponse
// @Router       /api/v1/reload/{path} [post]
func (h *ReloadHandler) Reload(c *gin.Context) {
	path := c.Param("path")
	result := h.controller.ReloadObject(c.Request.Context(), path)

	resp := dto.ReloadResponse{
		ReloadID:        result.ReloadID,
		Success:         result.Success,
		Error:           result.Error,
		ExistingClones:  result.ExistingClones,
		MigratedObjects: result.MigratedObjects,
		SourceDiff:      result.SourceDiff,
	}
	if !result.Success {
		c.JSON(http.StatusInternalServerError, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
