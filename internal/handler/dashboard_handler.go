package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harmonics-id/music-school-api/internal/service"
	"github.com/harmonics-id/music-school-api/pkg/response"
)

// DashboardHandler exposes operational summaries.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Summary godoc
// @Summary Operational dashboard summary
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/summary [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
