package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/trip-control-api/internal/dto"
	"github.com/noah-isme/trip-control-api/internal/models"
	"github.com/noah-isme/trip-control-api/pkg/civil"
	appErrors "github.com/noah-isme/trip-control-api/pkg/errors"
	"github.com/noah-isme/trip-control-api/pkg/export"
)

// maxExportRows bounds one export; larger days should be filtered by line or status.
const maxExportRows = 20000

type comparisonPager interface {
	ListComparisons(ctx context.Context, query dto.ComparisonListQuery) (*dto.ComparisonListResult, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type exportFormat struct {
	renderer    datasetRenderer
	contentType string
	extension   string
}

var comparisonColumns = []export.Column{
	{Key: "linha", Label: "Linha"},
	{Key: "nomeLinha", Label: "Nome da linha"},
	{Key: "setor", Label: "Setor"},
	{Key: "status", Label: "Status"},
	{Key: "transdataServico", Label: "Servico Transdata"},
	{Key: "globusServico", Label: "Servico Globus"},
	{Key: "transdataSentido", Label: "Sentido Transdata"},
	{Key: "globusSentido", Label: "Sentido Globus"},
	{Key: "transdataInicio", Label: "Inicio Transdata"},
	{Key: "globusInicio", Label: "Inicio Globus"},
	{Key: "diferenca", Label: "Diferenca (min)"},
	{Key: "motorista", Label: "Motorista"},
	{Key: "veiculo", Label: "Veiculo"},
}

// ExportService renders the comparison table of a date as CSV, PDF or XLSX.
type ExportService struct {
	comparisons comparisonPager
	formats     map[string]exportFormat
	zone        *civil.Zone
	logger      *zap.Logger
}

// NewExportService constructs an ExportService with the stock renderers.
func NewExportService(comparisons comparisonPager, zone *civil.Zone, logger *zap.Logger) *ExportService {
	if zone == nil {
		zone = civil.UTC()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		comparisons: comparisons,
		zone:        zone,
		logger:      logger,
		formats: map[string]exportFormat{
			"csv":  {renderer: export.NewCSVExporter(), contentType: "text/csv; charset=utf-8", extension: "csv"},
			"pdf":  {renderer: export.NewPDFExporter(), contentType: "application/pdf", extension: "pdf"},
			"xlsx": {renderer: export.NewXLSXExporter(), contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", extension: "xlsx"},
		},
	}
}

// Export renders every comparison matching the query filters, ignoring its paging.
func (s *ExportService) Export(ctx context.Context, query dto.ExportQuery) (*dto.ExportFile, error) {
	formatName := strings.ToLower(strings.TrimSpace(query.Format))
	if formatName == "" {
		formatName = "csv"
	}
	format, ok := s.formats[formatName]
	if !ok {
		return nil, appErrors.Validation("unsupported export format",
			appErrors.FieldError{Field: "formato", Message: "expected csv, pdf or xlsx"})
	}

	listQuery := query.ComparisonListQuery
	listQuery.Limit = maxComparisonLimit
	var rows []models.ComparisonRow
	for page := 1; ; page++ {
		listQuery.Page = page
		result, err := s.comparisons.ListComparisons(ctx, listQuery)
		if err != nil {
			return nil, err
		}
		rows = append(rows, result.Items...)
		if len(rows) > maxExportRows {
			return nil, appErrors.Validation("too many rows to export",
				appErrors.FieldError{Field: "data", Message: fmt.Sprintf("narrow the filters below %d rows", maxExportRows)})
		}
		if result.Pagination == nil || page >= result.Pagination.TotalPages {
			break
		}
	}

	date := strings.TrimSpace(query.Date)
	dataset := export.Dataset{
		Title:   "Comparacao Transdata x Globus " + date,
		Columns: comparisonColumns,
		Rows:    make([]map[string]string, 0, len(rows)),
	}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, s.exportRow(row))
	}

	payload, err := format.renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("comparison export rendered", zap.String("date", date), zap.String("format", formatName), zap.Int("rows", len(rows)))
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("comparacao-%s.%s", date, format.extension),
		ContentType: format.contentType,
		Payload:     payload,
	}, nil
}

func (s *ExportService) exportRow(row models.ComparisonRow) map[string]string {
	diff := ""
	if row.TimeDifferenceMinutes != nil {
		diff = strconv.Itoa(*row.TimeDifferenceMinutes)
	}
	driver := deref(row.GlobusDriver)
	if driver == "" {
		driver = deref(row.TransdataDriver)
	}
	vehicle := deref(row.TransdataVehicle)
	if vehicle == "" {
		vehicle = deref(row.GlobusVehicle)
	}
	return map[string]string{
		"linha":            row.LineCode,
		"nomeLinha":        deref(row.LineName),
		"setor":            deref(row.Sector),
		"status":           string(row.Status),
		"transdataServico": deref(row.TransdataService),
		"globusServico":    deref(row.GlobusService),
		"transdataSentido": deref(row.TransdataDirection),
		"globusSentido":    deref(row.GlobusDirection),
		"transdataInicio":  s.zone.FormatClock(row.TransdataStart),
		"globusInicio":     s.zone.FormatClock(row.GlobusStart),
		"diferenca":        diff,
		"motorista":        driver,
		"veiculo":          vehicle,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
