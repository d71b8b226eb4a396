package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harmonics-id/music-school-api/internal/models"
	"github.com/harmonics-id/music-school-api/internal/service"
	appErrors "github.com/harmonics-id/music-school-api/pkg/errors"
	"github.com/harmonics-id/music-school-api/pkg/response"
)

// BookingHandler manages slot booking endpoints.
type BookingHandler struct {
	bookings *service.BookingService
	students *service.StudentService
}

// NewBookingHandler constructs handler.
func NewBookingHandler(bookings *service.BookingService, students *service.StudentService) *BookingHandler {
	return &BookingHandler{bookings: bookings, students: students}
}

type bookSlotPayload struct {
	CourseID  string `json:"course_id"`
	Day       string `json:"day"`
	StartTime string `json:"start_time"`
	StudentID string `json:"student_id"`
}

// Create godoc
// @Summary Book a weekly lesson slot
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body bookSlotPayload true "Booking payload"
// @Success 201 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	var payload bookSlotPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	studentID, err := h.resolveStudentID(c, payload.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.bookings.Book(c.Request.Context(), service.BookSlotRequest{
		StudentID: studentID,
		CourseID:  payload.CourseID,
		Day:       payload.Day,
		StartTime: payload.StartTime,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// resolveStudentID maps the caller to a student record. Students always book
// for themselves; admins must name the student.
func (h *BookingHandler) resolveStudentID(c *gin.Context, explicit string) (string, error) {
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
