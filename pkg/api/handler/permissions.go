package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mudcore/mudcore/pkg/api/dto"
	"github.com/mudcore/mudcore/pkg/permission"
)

// PermissionHandler exposes the Permissions audit trail over HTTP.
type PermissionHandler struct {
	permissions *permission.Permissions
}

// NewPermissionHandler constructs a PermissionHandler over perms.
func NewPermissionHandler(perms *permission.Permissions) *PermissionHandler {
	return &PermissionHandler{permissions: perms}
}

// Audit godoc
// @Summary      Permission audit log
// @Description  Most recent entries, newest last; ?n= limits the count
// @Tags         permissions
// @Produce      json
// @Param        n query int false "Max entries (0 = all)"
// @Success      200 {object} dto.AuditLogResponse
// @Router       /api/v1/permissions/audit [get]
func (h *PermissionHandler) Audit(c *gin.Context) {
	n, _ := strconv.Atoi(c.Query("n"))
	entries := h.permissions.GetAuditLog(n)

	resp := dto.AuditLogResponse{Entries: make([]dto.AuditEntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, dto.AuditEntryResponse{
			ID:        e.ID,
			Timestamp: e.Timestamp,
			Player:    e.Player,
			Action:    string(e.Action),
			Target:    e.Target,
			Success:   e.Success,
			Details:   e.Details,
		})
	}
	c.JSON(http.StatusOK, resp)
}
