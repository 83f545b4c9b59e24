package dto

import "github.com/noah-isme/trip-control-api/internal/models"

// ComparisonListQuery captures the filters of GET /comparacoes.
type ComparisonListQuery struct {
	Date                string `form:"data"`
	Status              string `form:"status"`
	LineCode            string `form:"linha"`
	Sector              string `form:"setor"`
	ServiceCompatible   *bool  `form:"servicoCompativel"`
	DirectionCompatible *bool  `form:"sentidoCompativel"`
	TimeCompatible      *bool  `form:"horarioCompativel"`
	Page                int    `form:"page"`
	Limit               int    `form:"limit"`
}

// RunHistoryQuery captures the filters of GET /comparacoes/historico.
type RunHistoryQuery struct {
	DateFrom   string `form:"dataInicio"`
	DateTo     string `form:"dataFim"`
	ExecutedBy string `form:"executadoPor"`
	Page       int    `form:"page"`
	Limit      int    `form:"limit"`
}

// ExportQuery selects the comparison table and output format of an export.
type ExportQuery struct {
	ComparisonListQuery
	Format string `form:"formato"`
}

// RunComparisonResult is the outcome of one reconciliation request. NoData is set when neither
// source holds trips for the date; the previous generation is then left untouched.
type RunComparisonResult struct {
	ReferenceDate string                `json:"dataReferencia"`
	NoData        bool                  `json:"semDados"`
	Message       string                `json:"mensagem,omitempty"`
	Run           *models.ComparisonRun `json:"execucao,omitempty"`
}

// ComparisonListResult is a page of comparison rows.
type ComparisonListResult struct {
	Items      []models.ComparisonRow `json:"comparacoes"`
	Pagination *models.Pagination     `json:"-"`
}

// ComparisonStatistics exposes the latest run summary of a date; Run is null before the first run.
type ComparisonStatistics struct {
	ReferenceDate string                `json:"dataReferencia"`
	Run           *models.ComparisonRun `json:"ultimaExecucao"`
}

// RunHistoryResult is a page of run summaries.
type RunHistoryResult struct {
	Items      []models.ComparisonRun `json:"execucoes"`
	Pagination *models.Pagination     `json:"-"`
}

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}
