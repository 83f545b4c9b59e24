package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ComparisonStatus classifies one matched or unmatched pair.
type ComparisonStatus string

const (
	StatusCompatible    ComparisonStatus = "compativel"
	StatusDivergent     ComparisonStatus = "divergente"
	StatusTimeDivergent ComparisonStatus = "horario_divergente"
	StatusTransdataOnly ComparisonStatus = "apenas_transdata"
	StatusGlobusOnly    ComparisonStatus = "apenas_globus"
)

// ComparisonStatuses lists every status in report order.
var ComparisonStatuses = []ComparisonStatus{
	StatusCompatible,
	StatusDivergent,
	StatusTimeDivergent,
	StatusTransdataOnly,
	StatusGlobusOnly,
}

// Valid reports whether s is a known status.
func (s ComparisonStatus) Valid() bool {
	for _, known := range ComparisonStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Percent is a two-decimal percentage rendered as a string ("97.50").
type Percent struct {
	decimal.Decimal
}

// NewPercent computes part/total*100 rounded half-up to 2 places; total 0 yields 0.00.
func NewPercent(part, total int) Percent {
	if total == 0 {
		return Percent{decimal.Zero}
	}
	return Percent{decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(total)), 2)}
}

// String renders the fixed two-place representation.
func (p Percent) String() string {
	return p.StringFixed(2)
}

// MarshalJSON emits the fixed two-place string.
func (p Percent) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.StringFixed(2))
}

// TripComparison is one persisted row of a reconciliation generation.
type TripComparison struct {
	ID                    string           `db:"id" json:"id"`
	RunID                 string           `db:"run_id" json:"execucaoId"`
	ReferenceDate         time.Time        `db:"reference_date" json:"dataReferencia"`
	LineCode              string           `db:"line_code" json:"codigoLinha"`
	TransdataTripID       *string          `db:"transdata_trip_id" json:"transdataId,omitempty"`
	GlobusTripID          *string          `db:"globus_trip_id" json:"globusId,omitempty"`
	ServiceCompatible     bool             `db:"service_compatible" json:"servicoCompativel"`
	DirectionCompatible   bool             `db:"direction_compatible" json:"sentidoCompativel"`
	TimeCompatible        bool             `db:"time_compatible" json:"horarioCompativel"`
	Status                ComparisonStatus `db:"status" json:"statusComparacao"`
	TimeDifferenceMinutes *int             `db:"time_difference_minutes" json:"diferencaHorarioMinutos"`
	CreatedAt             time.Time        `db:"created_at" json:"criadoEm"`
}

// ComparisonRow is a comparison joined with the display fields of both sides.
type ComparisonRow struct {
	TripComparison
	LineName             *string    `db:"line_name" json:"nomeLinha"`
	Sector               *string    `db:"sector" json:"setor"`
	TransdataService     *string    `db:"transdata_service" json:"transdataServico"`
	GlobusService        *string    `db:"globus_service" json:"globusServico"`
	TransdataDirection   *string    `db:"transdata_direction" json:"transdataSentido"`
	GlobusDirection      *string    `db:"globus_direction" json:"globusSentido"`
	TransdataStart       *time.Time `db:"transdata_start" json:"transdataHorarioPrevisto"`
	TransdataActualStart *time.Time `db:"transdata_actual_start" json:"transdataHorarioRealizado"`
	GlobusStart          *time.Time `db:"globus_start" json:"globusHorarioPrevisto"`
	TransdataDriver      *string    `db:"transdata_driver" json:"transdataMotorista"`
	GlobusDriver         *string    `db:"globus_driver" json:"globusMotorista"`
	TransdataVehicle     *string    `db:"transdata_vehicle" json:"transdataPrefixoVeiculo"`
	GlobusVehicle        *string    `db:"globus_vehicle" json:"globusPrefixoVeiculo"`
}

// ComparisonFilter narrows a comparison listing. Nil flags mean "any".
type ComparisonFilter struct {
	ReferenceDate       time.Time
	Status              ComparisonStatus
	LineCode            string
	Sector              string
	ServiceCompatible   *bool
	DirectionCompatible *bool
	TimeCompatible      *bool
	Page                int
	PageSize            int
}

// ComparisonRun is the append-only summary of one reconciliation execution.
type ComparisonRun struct {
	ID                   string    `db:"id" json:"id"`
	ReferenceDate        time.Time `db:"reference_date" json:"dataReferencia"`
	Total                int       `db:"total" json:"totalComparacoes"`
	Compatible           int       `db:"compatible" json:"compativeis"`
	Divergent            int       `db:"divergent" json:"divergentes"`
	TimeDivergent        int       `db:"time_divergent" json:"horarioDivergente"`
	TransdataOnly        int       `db:"transdata_only" json:"apenasTransdata"`
	GlobusOnly           int       `db:"globus_only" json:"apenasGlobus"`
	CompatibilityPercent Percent   `db:"compatibility_percent" json:"percentualCompatibilidade"`
	LinesAnalyzed        int       `db:"lines_analyzed" json:"linhasAnalisadas"`
	ProcessingMS         int64     `db:"processing_ms" json:"tempoProcessamentoMs"`
	ExecutedBy           string    `db:"executed_by" json:"executadoPor"`
	CreatedAt            time.Time `db:"created_at" json:"criadoEm"`
}

// Consistent reports whether the per-status counts add up to the total.
func (r ComparisonRun) Consistent() bool {
	return r.Compatible+r.Divergent+r.TimeDivergent+r.TransdataOnly+r.GlobusOnly == r.Total
}

// RunHistoryFilter narrows the run history listing.
type RunHistoryFilter struct {
	DateFrom   *time.Time
	DateTo     *time.Time
	ExecutedBy string
	Page       int
	PageSize   int
}
