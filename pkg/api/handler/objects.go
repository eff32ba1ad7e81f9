package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mudcore/mudcore/pkg/api/dto"
	"github.com/mudcore/mudcore/pkg/gameobject"
	"github.com/mudcore/mudcore/pkg/registry"
)

// ObjectHandler exposes the Object Registry's read/write surface over
// HTTP. It holds no state of its own; every call is a thin transport
// skin over *registry.Registry.
type ObjectHandler struct {
	registry *registry.Registry
}

// NewObjectHandler constructs an ObjectHandler over reg.
func NewObjectHandler(reg *registry.Registry) *ObjectHandler {
	return &ObjectHandler{registry: reg}
}

func toObjectResponse(obj gameobject.GameObject) dto.ObjectResponse {
	resp := dto.ObjectResponse{
		ObjectID:   obj.ObjectID(),
		ObjectPath: obj.ObjectPath(),
		IsClone:    obj.IsClone(),
		ShortDesc:  obj.ShortDesc(),
		LongDesc:   obj.LongDesc(),
	}
	if env := obj.Environment(); env != nil {
		resp.Environment = env.ObjectID()
	}
	for _, item := range obj.Inventory() {
		resp.Inventory = append(resp.Inventory, item.ObjectID())
	}
	return resp
}

// Stats godoc
// @Summary      Registry stats
// @Description  Totals plus top-10 largest inventories and top-10 blueprints by clone count
// @Tags         objects
// @Produce      json
// @Success      200 {object} dto.StatsResponse
// @Router       /api/v1/objects [get]
func (h *ObjectHandler) Stats(c *gin.Context) {
	stats := h.registry.GetStats()

	resp := dto.StatsResponse{
		TotalObjects:    stats.TotalObjects,
		TotalBlueprints: stats.TotalBlueprints,
	}
	for _, inv := range stats.LargestInventory {
		resp.LargestInventory = append(resp.LargestInventory, dto.InventoryStatEntry{ObjectID: inv.ObjectID, Size: inv.Size})
	}
	for _, bp := range stats.TopBlueprints {
		resp.TopBlueprints = append(resp.TopBlueprints, dto.BlueprintStatEntry{Path: bp.Path, Clones: bp.Clones})
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary      Look up an object
// @Description  Resolves a content path (blueprint) or object id (clone)
// @Tags         objects
// @Produce      json
// @Param        path path string true "Object path or id"
// @Success      200 {object} dto.ObjectResponse
// @Failure      404 {object} dto.ErrorResponse
// @Router       /api/v1/objects/{path} [get]
func (h *ObjectHandler) Get(c *gin.Context) {
	key := objectPathParam(c)
	obj, ok := h.registry.Find(key)
	if !ok {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "object not found"})
		return
	}
	c.JSON(http.StatusOK, toObjectResponse(obj))
}

// Clone godoc
// @Summary      Clone a blueprint
// @Tags         objects
// @Produce      json
// @Param        path path string true "Blueprint content path"
// @Success      201 {object} dto.CloneResponse
// @Failure      404 {object} dto.ErrorResponse
// @Router       /api/v1/objects/{path}/clone [post]
func (h *ObjectHandler) Clone(c *gin.Context) {
	path, ok := strings.CutSuffix(objectPathParam(c), "/clone")
	if !ok {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "unknown route"})
		return
	}
	obj, ok := h.registry.Clone(c.Request.Context(), path)
	if !ok {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "unknown blueprint"})
		return
	}
	c.JSON(http.StatusCreated, dto.CloneResponse{ObjectID: obj.ObjectID()})
}

// Destroy godoc
// @Summary      Destroy an object
// @Tags         objects
// @Produce      json
// @Param        id path string true "Object id"
// @Success      200 {object} dto.DeleteResponse
// @Failure      404 {object} dto.ErrorResponse
// @Router       /api/v1/objects/{id} [delete]
func (h *ObjectHandler) Destroy(c *gin.Context) {
	id := objectPathParam(c)
	obj, ok := h.registry.Find(id)
	if !ok {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "object not found"})
		return
	}
	h.registry.Destroy(c.Request.Context(), obj)
	c.JSON(http.StatusOK, dto.DeleteResponse{Deleted: true})
}

// objectPathParam returns the wildcard *path param's value, which gin
// returns with its leading slash intact, matching the objectId /
// objectPath scheme directly.
func objectPathParam(c *gin.Context) string {
	return c.Param("path")
}
