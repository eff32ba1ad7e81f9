package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mudcore/mudcore/pkg/api/dto"
	"github.com/mudcore/mudcore/pkg/scheduler"
)

// SchedulerHandler exposes Scheduler read-only stats over HTTP.
type SchedulerHandler struct {
	scheduler *scheduler.Scheduler
}

// NewSchedulerHandler constructs a SchedulerHandler over sched.
func NewSchedulerHandler(sched *scheduler.Scheduler) *SchedulerHandler {
	return &SchedulerHandler{scheduler: sched}
}

// Stats godoc
// @Summary      Scheduler stats
// @Tags         scheduler
// @Produce      json
// @Success      200 {object} dto.SchedulerStatsResponse
// @Router       /api/v1/scheduler/stats [get]
func (h *SchedulerHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, dto.SchedulerStatsResponse{HeartbeatCount: h.scheduler.HeartbeatCount()})
}
