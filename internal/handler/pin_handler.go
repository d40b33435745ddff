package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gandhamprakashtech/stumart-api/internal/models"
	"github.com/gandhamprakashtech/stumart-api/internal/service"
	appErrors "github.com/gandhamprakashtech/stumart-api/pkg/errors"
	"github.com/gandhamprakashtech/stumart-api/pkg/response"
)

// PINHandler exposes the identifier allocator to administrators.
type PINHandler struct {
	service *service.PINService
	metrics *service.MetricsService
}

// NewPINHandler creates a new handler.
func NewPINHandler(svc *service.PINService, metrics *service.MetricsService) *PINHandler {
	return &PINHandler{service: svc, metrics: metrics}
}

// CreateRange godoc
// @Summary Create a contiguous PIN range
// @Description Create PINs for every sequence between start and end in a scope
// @Tags PINs
// @Accept json
// @Produce json
// @Param payload body service.CreateRangeRequest true "Range payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pins/range [post]
func (h *PINHandler) CreateRange(c *gin.Context) {
	var req service.CreateRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid range payload"))
		return
	}

	result, err := h.service.CreateRange(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordPINsCreated(result.Created)
	response.Created(c, result)
}

// CreateIndividual godoc
// @Summary Create individually listed PINs
// @Description Create PINs for an explicit list of sequence numbers
// @Tags PINs
// @Accept json
// @Produce json
// @Param payload body service.CreateIndividualRequest true "Individual payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pins/individual [post]
func (h *PINHandler) CreateIndividual(c *gin.Context) {
	var req service.CreateIndividualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid individual payload"))
		return
	}

	result, err := h.service.CreateIndividual(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordPINsCreated(result.Created)
	response.Created(c, result)
}

// JoiningYears godoc
// @Summary List joining years with available PINs
// @Tags PINs
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /pins/availability/joining-years [get]
func (h *PINHandler) JoiningYears(c *gin.Context) {
	years, err := h.service.AvailableJoiningYears(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, years, nil)
}

// Branches godoc
// @Summary List branches with available PINs for a joining year
// @Tags PINs
// @Produce json
// @Param joiningYear query int true "Joining year"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /pins/availability/branches [get]
func (h *PINHandler) Branches(c *gin.Context) {
	joiningYear, ok := intQuery(c, "joiningYear")
	if !ok {
		return
	}
	branches, err := h.service.AvailableBranches(c.Request.Context(), joiningYear)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, branches, nil)
}

// Years godoc
// @Summary List study years with available PINs
// @Tags PINs
// @Produce json
// @Param joiningYear query int true "Joining year"
// @Param branch query string true "Branch code"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /pins/availability/years [get]
func (h *PINHandler) Years(c *gin.Context) {
	joiningYear, ok := intQuery(c, "joiningYear")
	if !ok {
		return
	}
	branch := c.Query("branch")
	years, err := h.service.AvailableYears(c.Request.Context(), joiningYear, branch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, years, nil)
}

// Sections godoc
// @Summary List sections with available PINs
// @Tags PINs
// @Produce json
// @Param joiningYear query int true "Joining year"
// @Param branch query string true "Branch code"
// @Param year query int true "Study year"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /pins/availability/sections [get]
func (h *PINHandler) Sections(c *gin.Context) {
	joiningYear, ok := intQuery(c, "joiningYear")
	if !ok {
		return
	}
	year, ok := intQuery(c, "year")
	if !ok {
		return
	}
	branch := c.Query("branch")
	sections, err := h.service.AvailableSections(c.Request.Context(), joiningYear, branch, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, nil)
}

// AvailablePINs godoc
// @Summary List available PINs in a fully qualified scope
// @Tags PINs
// @Produce json
// @Param joiningYear query int true "Joining year"
// @Param branch query string true "Branch code"
// @Param year query int true "Study year"
// @Param section query string true "Section"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /pins/availability/pins [get]
func (h *PINHandler) AvailablePINs(c *gin.Context) {
	joiningYear, ok := intQuery(c, "joiningYear")
	if !ok {
		return
	}
	year, ok := intQuery(c, "year")
	if !ok {
		return
	}
	scope := models.PINScope{
		JoiningYear: joiningYear,
		Branch:      c.Query("branch"),
		Year:        year,
		Section:     c.Query("section"),
	}
	pins, err := h.service.AvailablePINs(c.Request.Context(), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pins, nil)
}

// Delete godoc
// @Summary Delete a PIN and its dependents
// @Description Remove the PIN, its claiming account and that account's listings
// @Tags PINs
// @Produce json
// @Param pinNumber path string true "PIN number"
// @Success 200 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /pins/{pinNumber} [delete]
func (h *PINHandler) Delete(c *gin.Context) {
	result, err := h.service.Delete(c.Request.Context(), c.Param("pinNumber"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordPINsDeleted(1)
	response.JSON(c, http.StatusOK, result, nil)
}

// BulkDelete godoc
// @Summary Delete a batch of PINs
// @Description Best-effort delete; failures are reported per PIN
// @Tags PINs
// @Accept json
// @Produce json
// @Param payload body handler.bulkDeleteRequest true "PIN numbers"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /pins/bulk-delete [post]
func (h *PINHandler) BulkDelete(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "pin numbers required"))
		return
	}

	result, err := h.service.BulkDelete(c.Request.Context(), req.PINNumbers)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordPINsDeleted(result.Deleted)
	response.JSON(c, http.StatusOK, result, nil)
}

type bulkDeleteRequest struct {
	PINNumbers []string `json:"pin_numbers" binding:"required,min=1"`
}

// Block godoc
// @Summary Block an available PIN
// @Tags PINs
// @Produce json
// @Param pinNumber path string true "PIN number"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pins/{pinNumber}/block [post]
func (h *PINHandler) Block(c *gin.Context) {
	if err := h.service.Block(c.Request.Context(), c.Param("pinNumber")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Unblock godoc
// @Summary Unblock a blocked PIN
// @Tags PINs
// @Produce json
// @Param pinNumber path string true "PIN number"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pins/{pinNumber}/unblock [post]
func (h *PINHandler) Unblock(c *gin.Context) {
	if err := h.service.Unblock(c.Request.Context(), c.Param("pinNumber")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Stats godoc
// @Summary Allocator statistics
// @Description Aggregate PIN counts computed fresh on every call
// @Tags PINs
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /pins/stats [get]
func (h *PINHandler) Stats(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	value, err := strconv.Atoi(raw)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, name+" must be an integer"))
		return 0, false
	}
	return value, true
}
