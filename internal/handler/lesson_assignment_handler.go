package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edusched/timetable-api/internal/models"
	"github.com/edusched/timetable-api/internal/service"
	appErrors "github.com/edusched/timetable-api/pkg/errors"
	"github.com/edusched/timetable-api/pkg/response"
)

// LessonAssignmentHandler manages lesson assignment endpoints.
type LessonAssignmentHandler struct {
	service *service.LessonAssignmentService
}

// NewLessonAssignmentHandler constructs handler.
func NewLessonAssignmentHandler(svc *service.LessonAssignmentService) *LessonAssignmentHandler {
	return &LessonAssignmentHandler{service: svc}
}

// List godoc
// @Summary List lesson assignments
// @Tags LessonAssignments
// @Produce json
// @Param cohortId query string false "Filter by cohort"
// @Param subjectId query string false "Filter by subject"
// @Param teacherId query string false "Filter by teacher"
// @Param active query bool false "Filter by active flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /lesson-assignments [get]
func (h *LessonAssignmentHandler) List(c *gin.Context) {
	var filter models.LessonAssignmentFilter
	filter.CohortID = c.Query("cohortId")
	filter.SubjectID = c.Query("subjectId")
	filter.TeacherID = c.Query("teacherId")
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

	assignments, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, pagination)
}

// Get godoc
// @Summary Get a lesson assignment
// @Tags LessonAssignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /lesson-assignments/{id} [get]
func (h *LessonAssignmentHandler) Get(c *gin.Context) {
	assignment, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Create godoc
// @Summary Create lesson assignment
// @Tags LessonAssignments
// @Accept json
// @Produce json
// @Param payload body service.CreateLessonAssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /lesson-assignments [post]
func (h *LessonAssignmentHandler) Create(c *gin.Context) {
	var req service.CreateLessonAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Deactivate godoc
// @Summary Deactivate lesson assignment
// @Tags LessonAssignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /lesson-assignments/{id}/deactivate [patch]
func (h *LessonAssignmentHandler) Deactivate(c *gin.Context) {
	assignment, err := h.service.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Delete godoc
// @Summary Delete lesson assignment
// @Tags LessonAssignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 204
// @Router /lesson-assignments/{id} [delete]
func (h *LessonAssignmentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
