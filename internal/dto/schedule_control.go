package dto

import "github.com/noah-isme/trip-control-api/internal/models"

// ScheduleListQuery captures the filters of GET /controle-horarios.
type ScheduleListQuery struct {
	Date          string `form:"data"`
	LineCode      string `form:"linha"`
	ServiceNumber string `form:"servico"`
	Sector        string `form:"setor"`
	Edited        *bool  `form:"editado"`
	Search        string `form:"busca"`
	Page          int    `form:"page"`
	Limit         int    `form:"limit"`
}

// ScheduleListResult is a page of the editable schedule plus stats over the filtered set.
type ScheduleListResult struct {
	Items      []models.ScheduleRow `json:"viagens"`
	Stats      models.ScheduleStats `json:"estatisticas"`
	Pagination *models.Pagination   `json:"-"`
}

// SaveEditRequest is the body of PATCH /controle-horarios/:id. Value accepts strings, booleans,
// numbers or null; Propagate defaults to true when omitted.
type SaveEditRequest struct {
	Field       string      `json:"campo" binding:"required"`
	Value       interface{} `json:"valor"`
	Observation string      `json:"observacao"`
	Propagate   *bool       `json:"propagar"`
}

// SaveEditResult reports the anchor after the edit and how far it reached.
type SaveEditResult struct {
	Trip           *models.ScheduleRow `json:"viagem"`
	Propagated     int                 `json:"viagensPropagadas"`
	HistoryWritten int                 `json:"historicoRegistrado"`
}

// BatchEditItem carries the changes of one trip in a batch save.
type BatchEditItem struct {
	TripID      string                 `json:"viagemId"`
	Changes     map[string]interface{} `json:"alteracoes"`
	Observation string                 `json:"observacao"`
}

// BatchEditRequest is the body of POST /controle-horarios/lote.
type BatchEditRequest struct {
	Date  string          `json:"data" binding:"required"`
	Items []BatchEditItem `json:"itens" binding:"required"`
}

// BatchEditFailure names one rejected batch item.
type BatchEditFailure struct {
	TripID  string `json:"viagemId"`
	Message string `json:"mensagem"`
}

// BatchEditResult tallies a batch save; failures never abort the other items.
type BatchEditResult struct {
	Saved    int                `json:"salvos"`
	Errors   int                `json:"erros"`
	Failures []BatchEditFailure `json:"falhas"`
}

// EditHistoryQuery pages through the audit trail of a trip.
type EditHistoryQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// EditHistoryResult is a page of audit rows.
type EditHistoryResult struct {
	Items      []models.EditHistoryEntry `json:"historico"`
	Pagination *models.Pagination        `json:"-"`
}
