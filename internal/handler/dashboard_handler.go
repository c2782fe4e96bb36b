package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolcore/school-admin-api/internal/service"
	"github.com/schoolcore/school-admin-api/pkg/response"
)

// DashboardHandler exposes aggregate statistics endpoints.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler constructs a dashboard handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// SchoolStats godoc
// @Summary School-wide headcounts
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) SchoolStats(c *gin.Context) {
	stats, err := h.service.SchoolStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// AdminStats godoc
// @Summary Headcounts plus pending registration counts
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/admin [get]
func (h *DashboardHandler) AdminStats(c *gin.Context) {
	stats, err := h.service.AdminStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
