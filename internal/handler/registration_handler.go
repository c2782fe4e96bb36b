package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolcore/school-admin-api/internal/models"
	"github.com/schoolcore/school-admin-api/internal/service"
	appErrors "github.com/schoolcore/school-admin-api/pkg/errors"
	"github.com/schoolcore/school-admin-api/pkg/response"
)

// RegistrationHandler exposes the pending registration queue and the
// batch approve/reject endpoint.
type RegistrationHandler struct {
	service *service.ApprovalService
}

// NewRegistrationHandler constructs a registration handler.
func NewRegistrationHandler(svc *service.ApprovalService) *RegistrationHandler {
	return &RegistrationHandler{service: svc}
}

// batchResult is the wire contract of the process endpoint. Clients
// depend on the flat status/count/message shape, so it bypasses the
// common envelope.
type batchResult struct {
	Status  string `json:"status"`
	Count   int    `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
}

// ListPending godoc
// @Summary List pending registrations
// @Tags Registrations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /registrations/pending [get]
func (h *RegistrationHandler) ListPending(c *gin.Context) {
	users, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}

// Process godoc
// @Summary Approve or reject a batch of registrations
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body service.ProcessRegistrationsRequest true "Batch decision"
// @Success 200 {object} handler.batchResult
// @Failure 400 {object} handler.batchResult
// @Failure 403 {object} handler.batchResult
// @Failure 500 {object} handler.batchResult
// @Router /registrations/process [post]
func (h *RegistrationHandler) Process(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.Role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, batchResult{Status: "error", Message: "admin access required"})
		return
	}

	var req service.ProcessRegistrationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, batchResult{Status: "error", Message: "invalid request payload"})
		return
	}

	outcome, err := h.service.Process(c.Request.Context(), claims.UserID, req)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Status < http.StatusInternalServerError {
			c.JSON(appErr.Status, batchResult{Status: "error", Message: appErr.Message})
			return
		}
		c.JSON(http.StatusInternalServerError, batchResult{Status: "error", Message: "failed to process registrations"})
		return
	}

	if outcome.MailFailed {
		c.JSON(http.StatusOK, batchResult{
			Status:  "partial_success",
			Count:   outcome.Processed,
			Message: "registrations processed but some notification emails failed",
		})
		return
	}
	c.JSON(http.StatusOK, batchResult{Status: "success", Count: outcome.Processed})
}
