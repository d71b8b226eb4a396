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

// MentorHandler manages mentor endpoints.
type MentorHandler struct {
	service *service.MentorService
}

// NewMentorHandler constructs handler.
func NewMentorHandler(svc *service.MentorService) *MentorHandler {
	return &MentorHandler{service: svc}
}

// List godoc
// @Summary List mentors
// @Tags Mentors
// @Produce json
// @Param search query string false "Search by name or instrument"
// @Param active query bool false "Filter by active flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /mentors [get]
func (h *MentorHandler) List(c *gin.Context) {
	var filter models.MentorFilter
	filter.Search = c.Query("search")
	if raw := c.Query("active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			filter.Active = &active
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	mentors, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mentors, pagination)
}

// Get godoc
// @Summary Get mentor
// @Tags Mentors
// @Produce json
// @Param id path string true "Mentor ID"
// @Success 200 {object} response.Envelope
// @Router /mentors/{id} [get]
func (h *MentorHandler) Get(c *gin.Context) {
	mentor, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mentor, nil)
}

// Create godoc
// @Summary Create mentor
// @Tags Mentors
// @Accept json
// @Produce json
// @Param payload body service.CreateMentorRequest true "Mentor payload"
// @Success 201 {object} response.Envelope
// @Router /mentors [post]
func (h *MentorHandler) Create(c *gin.Context) {
	var req service.CreateMentorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	mentor, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, mentor)
}

// Update godoc
// @Summary Update mentor
// @Tags Mentors
// @Accept json
// @Produce json
// @Param id path string true "Mentor ID"
// @Param payload body service.UpdateMentorRequest true "Mentor payload"
// @Success 200 {object} response.Envelope
// @Router /mentors/{id} [put]
func (h *MentorHandler) Update(c *gin.Context) {
	var req service.UpdateMentorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	mentor, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mentor, nil)
}

// Deactivate godoc
// @Summary Deactivate mentor
// @Tags Mentors
// @Produce json
// @Param id path string true "Mentor ID"
// @Success 204
// @Router /mentors/{id} [delete]
func (h *MentorHandler) Deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
