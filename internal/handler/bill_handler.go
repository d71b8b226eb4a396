package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/harmonics-id/music-school-api/internal/models"
	"github.com/harmonics-id/music-school-api/internal/service"
	appErrors "github.com/harmonics-id/music-school-api/pkg/errors"
	"github.com/harmonics-id/music-school-api/pkg/response"
)

// BillHandler manages billing endpoints.
type BillHandler struct {
	bills    *service.BillService
	students *service.StudentService
}

// NewBillHandler constructs handler.
func NewBillHandler(bills *service.BillService, students *service.StudentService) *BillHandler {
	return &BillHandler{bills: bills, students: students}
}

// List godoc
// @Summary List bills
// @Tags Bills
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /bills [get]
func (h *BillHandler) List(c *gin.Context) {
	var filter models.BillFilter
	filter.StudentID = c.Query("studentId")
	filter.Status = models.BillStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	// Students only see their own bills regardless of query filters.
	claims := claimsFromContext(c)
	if claims != nil && claims.Role == models.RoleStudent {
		student, err := h.students.GetByUserID(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.StudentID = student.ID
	}

	bills, pagination, err := h.bills.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bills, pagination)
}

// Get godoc
// @Summary Get bill
// @Tags Bills
// @Produce json
// @Param id path string true "Bill ID"
// @Success 200 {object} response.Envelope
// @Router /bills/{id} [get]
func (h *BillHandler) Get(c *gin.Context) {
	bill, err := h.bills.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	claims := claimsFromContext(c)
	if claims != nil && claims.Role == models.RoleStudent {
		student, err := h.students.GetByUserID(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if bill.StudentID != student.ID {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "bill belongs to another student"))
			return
		}
	}

	response.JSON(c, http.StatusOK, bill, nil)
}

// MarkPaid godoc
// @Summary Mark bill as paid
// @Tags Bills
// @Produce json
// @Param id path string true "Bill ID"
// @Success 200 {object} response.Envelope
// @Router /bills/{id}/pay [post]
func (h *BillHandler) MarkPaid(c *gin.Context) {
	bill, err := h.bills.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bill, nil)
}
