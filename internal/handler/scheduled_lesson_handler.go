package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edusched/timetable-api/internal/models"
	"github.com/edusched/timetable-api/internal/service"
	appErrors "github.com/edusched/timetable-api/pkg/errors"
	"github.com/edusched/timetable-api/pkg/response"
)

// ScheduledLessonHandler manages scheduled lesson endpoints.
type ScheduledLessonHandler struct {
	service *service.ScheduledLessonService
}

// NewScheduledLessonHandler constructs handler.
func NewScheduledLessonHandler(svc *service.ScheduledLessonService) *ScheduledLessonHandler {
	return &ScheduledLessonHandler{service: svc}
}

// List godoc
// @Summary List scheduled lessons
// @Tags ScheduledLessons
// @Produce json
// @Param timetableId query string false "Filter by timetable"
// @Param cohortId query string false "Filter by cohort"
// @Param teacherId query string false "Filter by teacher"
// @Param roomId query string false "Filter by room"
// @Param from query string false "Start date YYYY-MM-DD"
// @Param to query string false "End date YYYY-MM-DD"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /scheduled-lessons [get]
func (h *ScheduledLessonHandler) List(c *gin.Context) {
	var filter models.ScheduledLessonFilter
	filter.TimetableID = c.Query("timetableId")
	filter.CohortID = c.Query("cohortId")
	filter.TeacherID = c.Query("teacherId")
	filter.RoomID = c.Query("roomId")
	if raw := c.Query("from"); raw != "" {
		if from, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateFrom = &from
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateTo = &to
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = limit
	}

	lessons, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lessons, pagination)
}

// Get godoc
// @Summary Get a scheduled lesson
// @Tags ScheduledLessons
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Router /scheduled-lessons/{id} [get]
func (h *ScheduledLessonHandler) Get(c *gin.Context) {
	lesson, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Create godoc
// @Summary Schedule a lesson
// @Tags ScheduledLessons
// @Accept json
// @Produce json
// @Param payload body service.CreateScheduledLessonRequest true "Lesson payload"
// @Success 201 {object} response.Envelope
// @Router /scheduled-lessons [post]
func (h *ScheduledLessonHandler) Create(c *gin.Context) {
	var req service.CreateScheduledLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	lesson, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// Update godoc
// @Summary Move a scheduled lesson
// @Tags ScheduledLessons
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body service.UpdateScheduledLessonRequest true "Lesson payload"
// @Success 200 {object} response.Envelope
// @Router /scheduled-lessons/{id} [put]
func (h *ScheduledLessonHandler) Update(c *gin.Context) {
	var req service.UpdateScheduledLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	lesson, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Delete godoc
// @Summary Delete scheduled lesson
// @Tags ScheduledLessons
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 204
// @Router /scheduled-lessons/{id} [delete]
func (h *ScheduledLessonHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
