package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/trip-control-api/internal/dto"
	"github.com/noah-isme/trip-control-api/internal/middleware"
	"github.com/noah-isme/trip-control-api/internal/models"
	appErrors "github.com/noah-isme/trip-control-api/pkg/errors"
	"github.com/noah-isme/trip-control-api/pkg/response"
)

type comparisonService interface {
	Run(ctx context.Context, rawDate string, executor models.Editor) (*dto.RunComparisonResult, error)
	ListComparisons(ctx context.Context, query dto.ComparisonListQuery) (*dto.ComparisonListResult, error)
	Statistics(ctx context.Context, rawDate string) (*dto.ComparisonStatistics, bool, error)
	History(ctx context.Context, query dto.RunHistoryQuery) (*dto.RunHistoryResult, error)
}

type comparisonExporter interface {
	Export(ctx context.Context, query dto.ExportQuery) (*dto.ExportFile, error)
}

// ComparisonHandler serves the Transdata x Globus reconciliation endpoints.
type ComparisonHandler struct {
	service  comparisonService
	exporter comparisonExporter
}

// NewComparisonHandler constructs the handler.
func NewComparisonHandler(service comparisonService, exporter comparisonExporter) *ComparisonHandler {
	return &ComparisonHandler{service: service, exporter: exporter}
}

// Run godoc
// @Summary Run reconciliation
// @Description Replaces the comparison rows of a date. A second run of the same date while one is in progress gets 409.
// @Tags Comparacoes
// @Produce json
// @Security BearerAuth
// @Param data query string true "Reference date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /comparacoes/executar [post]
func (h *ComparisonHandler) Run(c *gin.Context) {
	editor, ok := editorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.Run(c.Request.Context(), c.Query("data"), editor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List comparisons
// @Tags Comparacoes
// @Produce json
// @Security BearerAuth
// @Param data query string true "Reference date (YYYY-MM-DD)"
// @Param status query string false "compativel, divergente, horario_divergente, apenas_transdata, apenas_globus"
// @Param linha query string false "Line code"
// @Param setor query string false "Sector"
// @Param servicoCompativel query bool false "Service flag"
// @Param sentidoCompativel query bool false "Direction flag"
// @Param horarioCompativel query bool false "Time flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /comparacoes [get]
func (h *ComparisonHandler) List(c *gin.Context) {
	var query dto.ComparisonListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	result, err := h.service.ListComparisons(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetReferenceDate(c, query.Date)
	response.JSON(c, http.StatusOK, result, result.Pagination, middleware.ExtractMeta(c))
}

// Statistics godoc
// @Summary Latest run summary of a date
// @Tags Comparacoes
// @Produce json
// @Security BearerAuth
// @Param data query string true "Reference date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /comparacoes/estatisticas [get]
func (h *ComparisonHandler) Statistics(c *gin.Context) {
	stats, hit, err := h.service.Statistics(c.Request.Context(), c.Query("data"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	if stats != nil {
		middleware.SetReferenceDate(c, stats.ReferenceDate)
	}
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

// History godoc
// @Summary Reconciliation run history
// @Tags Comparacoes
// @Produce json
// @Security BearerAuth
// @Param dataInicio query string false "From (YYYY-MM-DD)"
// @Param dataFim query string false "To (YYYY-MM-DD)"
// @Param executadoPor query string false "Executor email"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /comparacoes/historico [get]
func (h *ComparisonHandler) History(c *gin.Context) {
	var query dto.RunHistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	result, err := h.service.History(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, result.Pagination)
}

// Export godoc
// @Summary Export comparisons
// @Tags Comparacoes
// @Produce octet-stream
// @Security BearerAuth
// @Param data query string true "Reference date (YYYY-MM-DD)"
// @Param formato query string false "csv, pdf or xlsx"
// @Success 200 {file} file
// @Router /comparacoes/exportar [get]
func (h *ComparisonHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}
