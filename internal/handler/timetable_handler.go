package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusched/timetable-api/internal/dto"
	"github.com/edusched/timetable-api/internal/models"
	"github.com/edusched/timetable-api/internal/service"
	appErrors "github.com/edusched/timetable-api/pkg/errors"
	"github.com/edusched/timetable-api/pkg/response"
)

// TimetableHandler manages timetable lifecycle endpoints.
type TimetableHandler struct {
	service *service.TimetableService
}

// NewTimetableHandler constructs handler.
func NewTimetableHandler(svc *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// List godoc
// @Summary List timetables
// @Tags Timetables
// @Produce json
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	timetables, err := h.service.List(c.Request.Context(), models.TimetableStatus(c.Query("status")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetables, nil)
}

// Get godoc
// @Summary Get a timetable with its lessons
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create timetable
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body service.CreateTimetableRequest true "Timetable payload"
// @Success 201 {object} response.Envelope
// @Router /timetables [post]
func (h *TimetableHandler) Create(c *gin.Context) {
	var req service.CreateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	timetable, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, timetable)
}

// Publish godoc
// @Summary Publish a draft timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	timetable, err := h.service.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}

// Archive godoc
// @Summary Archive a timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/archive [post]
func (h *TimetableHandler) Archive(c *gin.Context) {
	timetable, err := h.service.Archive(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}

// Revert godoc
// @Summary Revert a published timetable to draft
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/revert [post]
func (h *TimetableHandler) Revert(c *gin.Context) {
	timetable, err := h.service.Revert(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}

// Apply godoc
// @Summary Apply a finished solver job to a draft timetable
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param payload body dto.ApplySolutionRequest true "Apply payload"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/apply [post]
func (h *TimetableHandler) Apply(c *gin.Context) {
	var req dto.ApplySolutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.service.ApplySolution(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Export godoc
// @Summary Export a timetable as CSV or PDF
// @Tags Timetables
// @Produce octet-stream
// @Param id path string true "Timetable ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /timetables/{id}/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	var (
		payload  []byte
		filename string
		mime     string
		err      error
	)
	switch c.DefaultQuery("format", "csv") {
	case "csv":
		payload, filename, err = h.service.ExportCSV(c.Request.Context(), c.Param("id"))
		mime = "text/csv"
	case "pdf":
		payload, filename, err = h.service.ExportPDF(c.Request.Context(), c.Param("id"))
		mime = "application/pdf"
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, mime, payload)
}

// Delete godoc
// @Summary Delete a timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 204
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
