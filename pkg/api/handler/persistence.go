package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mudcore/mudcore/pkg/api/dto"
	"github.com/mudcore/mudcore/pkg/gameobject"
	"github.com/mudcore/mudcore/pkg/persistence"
)

// PersistenceHandler exposes an on-demand world snapshot over HTTP.
type PersistenceHandler struct {
	store      *persistence.Store
	getObjects func() []gameobject.GameObject
}

// NewPersistenceHandler constructs a PersistenceHandler over store.
// getObjects supplies the current world for an on-demand save (the
// Driver's Registry.AllObjects in production wiring).
func NewPersistenceHandler(store *persistence.Store, getObjects func() []gameobject.GameObject) *PersistenceHandler {
	return &PersistenceHandler{store: store, getObjects: getObjects}
}

// Save godoc
// @Summary      Force a world snapshot
// @Tags         persistence
// @Produce      json
// @Success      200 {object} dto.SaveResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /api/v1/persistence/save [post]
func (h *PersistenceHandler) Save(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "persistence not configured"})
		return
	}
	objects := h.getObjects()
	if err := h.store.SaveWorldState(objects); err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.SaveResponse{Saved: true, ObjectCount: len(objects)})
}
