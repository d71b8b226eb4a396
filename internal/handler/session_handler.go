package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harmonics-id/music-school-api/internal/models"
	"github.com/harmonics-id/music-school-api/internal/service"
	appErrors "github.com/harmonics-id/music-school-api/pkg/errors"
	"github.com/harmonics-id/music-school-api/pkg/response"
)

// SessionHandler manages scheduled session endpoints.
type SessionHandler struct {
	sessions *service.SessionService
	students *service.StudentService
}

// NewSessionHandler constructs handler.
func NewSessionHandler(sessions *service.SessionService, students *service.StudentService) *SessionHandler {
	return &SessionHandler{sessions: sessions, students: students}
}

// List godoc
// @Summary List sessions
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param courseId query string false "Filter by course"
// @Param mentorId query string false "Filter by mentor"
// @Param day query string false "Filter by day of week"
// @Param room query string false "Filter by room"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	var filter models.SessionFilter
	filter.CourseID = c.Query("courseId")
	filter.MentorID = c.Query("mentorId")
	filter.DayOfWeek = strings.ToUpper(c.Query("day"))
	filter.StartTime = c.Query("startTime")
	filter.Room = c.Query("room")
	filter.Status = models.SessionStatus(strings.ToUpper(c.Query("status")))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	sessions, pagination, err := h.sessions.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, pagination)
}

// Get godoc
// @Summary Get session
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Update godoc
// @Summary Move or re-room a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param payload body service.UpdateSessionRequest true "Session payload"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [put]
func (h *SessionHandler) Update(c *gin.Context) {
	var req service.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, err := h.sessions.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Delete godoc
// @Summary Delete session
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 204
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MySchedule godoc
// @Summary Weekly schedule of the authenticated student
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /me/schedule [get]
func (h *SessionHandler) MySchedule(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	student, err := h.students.GetByUserID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	schedule, err := h.sessions.ListStudentSchedule(c.Request.Context(), student.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// StudentSchedule godoc
// @Summary Weekly schedule of a student
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/schedule [get]
func (h *SessionHandler) StudentSchedule(c *gin.Context) {
	if _, err := h.students.Get(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	schedule, err := h.sessions.ListStudentSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// MentorSchedule godoc
// @Summary Weekly teaching schedule of a mentor
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Mentor ID"
// @Success 200 {object} response.Envelope
// @Router /mentors/{id}/sessions [get]
func (h *SessionHandler) MentorSchedule(c *gin.Context) {
	schedule, err := h.sessions.ListByMentor(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}
