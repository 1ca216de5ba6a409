package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusched/timetable-api/internal/dto"
	"github.com/edusched/timetable-api/internal/service"
	appErrors "github.com/edusched/timetable-api/pkg/errors"
	"github.com/edusched/timetable-api/pkg/response"
)

// SolverHandler manages solver job endpoints.
type SolverHandler struct {
	service *service.SolverService
}

// NewSolverHandler constructs handler.
func NewSolverHandler(svc *service.SolverService) *SolverHandler {
	return &SolverHandler{service: svc}
}

// Submit godoc
// @Summary Submit an asynchronous solver job
// @Tags Solver
// @Accept json
// @Produce json
// @Param payload body dto.SolveRequest true "Solve payload"
// @Success 202 {object} response.Envelope
// @Router /solver/jobs [post]
func (h *SolverHandler) Submit(c *gin.Context) {
	var req dto.SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	job, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Inspect a solver job without consuming its result
// @Tags Solver
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /solver/jobs/{id} [get]
func (h *SolverHandler) Status(c *gin.Context) {
	job, err := h.service.Status(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Result godoc
// @Summary Retrieve a finished solver result, releasing the job
// @Tags Solver
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /solver/jobs/{id}/result [get]
func (h *SolverHandler) Result(c *gin.Context) {
	result, err := h.service.Result(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Cancel godoc
// @Summary Cancel a running solver job
// @Tags Solver
// @Produce json
// @Param id path string true "Job ID"
// @Success 204
// @Router /solver/jobs/{id} [delete]
func (h *SolverHandler) Cancel(c *gin.Context) {
	if err := h.service.Cancel(c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Solve godoc
// @Summary Solve synchronously within the configured time budget
// @Tags Solver
// @Accept json
// @Produce json
// @Param payload body dto.SolveRequest true "Solve payload"
// @Success 200 {object} response.Envelope
// @Router /solver/solve [post]
func (h *SolverHandler) Solve(c *gin.Context) {
	var req dto.SolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Solve(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
