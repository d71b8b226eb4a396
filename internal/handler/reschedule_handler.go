package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harmonics-id/music-school-api/internal/models"
	"github.com/harmonics-id/music-school-api/internal/service"
	appErrors "github.com/harmonics-id/music-school-api/pkg/errors"
	"github.com/harmonics-id/music-school-api/pkg/response"
)

// RescheduleHandler manages the reschedule workflow endpoints.
type RescheduleHandler struct {
	reschedules *service.RescheduleService
	students    *service.StudentService
}

// NewRescheduleHandler constructs handler.
func NewRescheduleHandler(reschedules *service.RescheduleService, students *service.StudentService) *RescheduleHandler {
	return &RescheduleHandler{reschedules: reschedules, students: students}
}

type proposeReschedulePayload struct {
	SessionID string `json:"session_id"`
	Day       string `json:"day"`
	StartTime string `json:"start_time"`
	StudentID string `json:"student_id"`
}

// Propose godoc
// @Summary Propose moving a weekly slot
// @Tags Reschedules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body proposeReschedulePayload true "Reschedule payload"
// @Success 200 {object} response.Envelope
// @Router /reschedules [post]
func (h *RescheduleHandler) Propose(c *gin.Context) {
	var payload proposeReschedulePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	studentID, err := h.resolveStudentID(c, payload.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	// Mounted both as POST /reschedules and POST /sessions/:id/reschedule.
	sessionID := payload.SessionID
	if id := c.Param("id"); id != "" {
		sessionID = id
	}

	enrollment, err := h.reschedules.Propose(c.Request.Context(), service.ProposeRescheduleRequest{
		SessionID: sessionID,
		StudentID: studentID,
		Day:       payload.Day,
		StartTime: payload.StartTime,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// ListPending godoc
// @Summary List pending reschedules
// @Tags Reschedules
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /reschedules/pending [get]
func (h *RescheduleHandler) ListPending(c *gin.Context) {
	pending, err := h.reschedules.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pending, nil)
}

// Decide godoc
// @Summary Approve or reject a pending reschedule
// @Tags Reschedules
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session enrollment ID"
// @Param payload body service.DecideRescheduleRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /reschedules/{id}/decision [post]
func (h *RescheduleHandler) Decide(c *gin.Context) {
	var req service.DecideRescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.reschedules.Decide(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func (h *RescheduleHandler) resolveStudentID(c *gin.Context, explicit string) (string, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return "", appErrors.ErrUnauthorized
	}
	if claims.Role == models.RoleStudent {
		student, err := h.students.GetByUserID(c.Request.Context(), claims.UserID)
		if err != nil {
			return "", err
		}
		return student.ID, nil
	}
	if explicit == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	return explicit, nil
}
