package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/trip-control-api/internal/dto"
	"github.com/noah-isme/trip-control-api/pkg/jobs"
	"github.com/noah-isme/trip-control-api/pkg/response"
)

type tripSyncService interface {
	ImportTransdata(ctx context.Context, rawDate string, rows []dto.TransdataTripInput) (*dto.ImportResult, error)
	ImportGlobus(ctx context.Context, rawDate string, rows []dto.GlobusTripInput) (*dto.ImportResult, error)
	RequestPull(ctx context.Context, rawSource, rawDate string) (*dto.SyncRequestResult, error)
	JobStatus(ctx context.Context, id string) (*jobs.Status, error)
}

// TripHandler receives trip snapshots from both sources.
type TripHandler struct {
	service tripSyncService
}

// NewTripHandler constructs the handler.
func NewTripHandler(service tripSyncService) *TripHandler {
	return &TripHandler{service: service}
}

// ImportTransdata godoc
// @Summary Replace the Transdata trips of a date
// @Tags Viagens
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param data query string true "Reference date (YYYY-MM-DD)"
// @Param payload body dto.ImportTransdataRequest true "Trips"
// @Success 200 {object} response.Envelope
// @Router /viagens/transdata [put]
func (h *TripHandler) ImportTransdata(c *gin.Context) {
	var req dto.ImportTransdataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid trips payload"))
		return
	}
	result, err := h.service.ImportTransdata(c.Request.Context(), c.Query("data"), req.Trips)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ImportGlobus godoc
// @Summary Replace the Globus trips of a date
// @Tags Viagens
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param data query string true "Reference date (YYYY-MM-DD)"
// @Param payload body dto.ImportGlobusRequest true "Trips"
// @Success 200 {object} response.Envelope
// @Router /viagens/globus [put]
func (h *TripHandler) ImportGlobus(c *gin.Context) {
	var req dto.ImportGlobusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid trips payload"))
		return
	}
	result, err := h.service.ImportGlobus(c.Request.Context(), c.Query("data"), req.Trips)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RequestSync godoc
// @Summary Pull a date from an upstream API
// @Tags Viagens
// @Produce json
// @Security BearerAuth
// @Param fonte path string true "transdata or globus"
// @Param data query string true "Reference date (YYYY-MM-DD)"
// @Success 202 {object} response.Envelope
// @Router /viagens/{fonte}/sincronizar [post]
func (h *TripHandler) RequestSync(c *gin.Context) {
	result, err := h.service.RequestPull(c.Request.Context(), c.Param("fonte"), c.Query("data"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, result)
}

// SyncStatus godoc
// @Summary State of a pull job
// @Tags Viagens
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /viagens/sincronizacoes/{id} [get]
func (h *TripHandler) SyncStatus(c *gin.Context) {
	status, err := h.service.JobStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
