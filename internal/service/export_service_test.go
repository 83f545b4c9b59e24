package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/trip-control-api/internal/dto"
	"github.com/noah-isme/trip-control-api/internal/models"
	"github.com/noah-isme/trip-control-api/pkg/civil"
	appErrors "github.com/noah-isme/trip-control-api/pkg/errors"
)

type comparisonPagerStub struct {
	rows    []models.ComparisonRow
	queries []dto.ComparisonListQuery
}

func (p *comparisonPagerStub) ListComparisons(_ context.Context, query dto.ComparisonListQuery) (*dto.ComparisonListResult, error) {
	p.queries = append(p.queries, query)
	start := (query.Page - 1) * query.Limit
	end := min(start+query.Limit, len(p.rows))
	if start > len(p.rows) {
		start = len(p.rows)
	}
	return &dto.ComparisonListResult{
		Items:      p.rows[start:end],
		Pagination: models.NewPagination(query.Page, query.Limit, len(p.rows)),
	}, nil
}

func exportRows(n int) []models.ComparisonRow {
	loc := civil.MustLoad("America/Sao_Paulo").Location()
	start := time.Date(2025, 6, 10, 7, 30, 0, 0, loc)
	diff := 3
	line := "Centro"
	rows := make([]models.ComparisonRow, n)
	for i := range rows {
		rows[i] = models.ComparisonRow{
			TripComparison: models.TripComparison{LineCode: "101", Status: models.StatusCompatible, TimeDifferenceMinutes: &diff},
			LineName:       &line,
			TransdataStart: &start,
		}
	}
	return rows
}

func TestExportCSVWalksEveryPage(t *testing.T) {
	pager := &comparisonPagerStub{rows: exportRows(maxComparisonLimit + 5)}
	svc := NewExportService(pager, civil.MustLoad("America/Sao_Paulo"), nil)

	file, err := svc.Export(context.Background(), dto.ExportQuery{
		ComparisonListQuery: dto.ComparisonListQuery{Date: "2025-06-10", Page: 7, Limit: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, "comparacao-2025-06-10.csv", file.Filename)
	assert.Contains(t, file.ContentType, "text/csv")
	require.Len(t, pager.queries, 2)
	assert.Equal(t, 1, pager.queries[0].Page)
	assert.Equal(t, maxComparisonLimit, pager.queries[0].Limit)

	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(string(file.Payload), "\ufeff")), "\n")
	require.Len(t, lines, maxComparisonLimit+6)
	assert.True(t, strings.HasPrefix(lines[0], "Linha;Nome da linha"))
	assert.Contains(t, lines[1], "101;Centro;;compativel")
	assert.Contains(t, lines[1], "07:30")
}

func TestExportXLSXAndPDF(t *testing.T) {
	svc := NewExportService(&comparisonPagerStub{rows: exportRows(2)}, civil.MustLoad("America/Sao_Paulo"), nil)

	file, err := svc.Export(context.Background(), dto.ExportQuery{ComparisonListQuery: dto.ComparisonListQuery{Date: "2025-06-10"}, Format: "XLSX"})
	require.NoError(t, err)
	book, err := excelize.OpenReader(bytes.NewReader(file.Payload))
	require.NoError(t, err)
	defer book.Close()
	assert.NotEmpty(t, book.GetSheetList())

	file, err = svc.Export(context.Background(), dto.ExportQuery{ComparisonListQuery: dto.ComparisonListQuery{Date: "2025-06-10"}, Format: "pdf"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(file.Payload, []byte("%PDF")))
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(&comparisonPagerStub{}, nil, nil)
	_, err := svc.Export(context.Background(), dto.ExportQuery{ComparisonListQuery: dto.ComparisonListQuery{Date: "2025-06-10"}, Format: "docx"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
