package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/trip-control-api/internal/dto"
	"github.com/noah-isme/trip-control-api/internal/models"
	appErrors "github.com/noah-isme/trip-control-api/pkg/errors"
	"github.com/noah-isme/trip-control-api/pkg/response"
)

type scheduleControlService interface {
	ListSchedule(ctx context.Context, query dto.ScheduleListQuery) (*dto.ScheduleListResult, error)
	SaveEdit(ctx context.Context, tripID string, req dto.SaveEditRequest, editor models.Editor) (*dto.SaveEditResult, error)
	SaveMany(ctx context.Context, req dto.BatchEditRequest, editor models.Editor) (*dto.BatchEditResult, error)
	History(ctx context.Context, tripID string, query dto.EditHistoryQuery) (*dto.EditHistoryResult, error)
}

// ScheduleControlHandler serves the editable schedule overlay.
type ScheduleControlHandler struct {
	service scheduleControlService
}

// NewScheduleControlHandler constructs the handler.
func NewScheduleControlHandler(service scheduleControlService) *ScheduleControlHandler {
	return &ScheduleControlHandler{service: service}
}

// List godoc
// @Summary Schedule view of a date
// @Tags ControleHorarios
// @Produce json
// @Security BearerAuth
// @Param data query string true "Reference date (YYYY-MM-DD)"
// @Param linha query string false "Line code"
// @Param servico query string false "Service number"
// @Param setor query string false "Sector"
// @Param editado query bool false "Only edited or unedited trips"
// @Param busca query string false "Free text"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /controle-horarios [get]
func (h *ScheduleControlHandler) List(c *gin.Context) {
	var query dto.ScheduleListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	result, err := h.service.ListSchedule(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, result.Pagination)
}

// SaveEdit godoc
// @Summary Edit one field of a trip
// @Description Propagates to later trips of the same line and service unless propagar is false.
// @Tags ControleHorarios
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Trip ID"
// @Param payload body dto.SaveEditRequest true "Edit"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /controle-horarios/{id} [patch]
func (h *ScheduleControlHandler) SaveEdit(c *gin.Context) {
	editor, ok := editorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SaveEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid edit payload"))
		return
	}
	result, err := h.service.SaveEdit(c.Request.Context(), c.Param("id"), req, editor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// SaveMany godoc
// @Summary Save many edits
// @Description Each item is applied on its own; failures are reported per item.
// @Tags ControleHorarios
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.BatchEditRequest true "Edits"
// @Success 200 {object} response.Envelope
// @Router /controle-horarios/lote [post]
func (h *ScheduleControlHandler) SaveMany(c *gin.Context) {
	editor, ok := editorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.BatchEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid batch payload"))
		return
	}
	result, err := h.service.SaveMany(c.Request.Context(), req, editor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// History godoc
// @Summary Edit history of a trip
// @Tags ControleHorarios
// @Produce json
// @Security BearerAuth
// @Param id path string true "Trip ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /controle-horarios/{id}/historico [get]
func (h *ScheduleControlHandler) History(c *gin.Context) {
	var query dto.EditHistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	result, err := h.service.History(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, result.Pagination)
}
