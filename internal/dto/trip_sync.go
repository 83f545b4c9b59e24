package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// FlexString accepts JSON strings, booleans and numbers as text. Upstream direction flags arrive
// as any of the three.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	case 't', 'f':
		b, err := strconv.ParseBool(string(data))
		if err != nil {
			return fmt.Errorf("flex string: %w", err)
		}
		*f = FlexString(strconv.FormatBool(b))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("flex string: %w", err)
		}
		*f = FlexString(n.String())
	}
	return nil
}

// TransdataTripInput is one Transdata trip as pushed or pulled from upstream.
type TransdataTripInput struct {
	SourceID       FlexString `json:"idOrigem" validate:"required,max=64"`
	LineCode       FlexString `json:"codigoLinha" validate:"required,max=20"`
	LineName       string     `json:"nomeLinha" validate:"max=200"`
	ServiceNumber  FlexString `json:"servico" validate:"max=20"`
	Direction      FlexString `json:"sentido" validate:"max=20"`
	ScheduledStart string     `json:"inicioPrevisto"`
	ActualStart    string     `json:"inicioRealizado"`
	ScheduledEnd   string     `json:"fimPrevisto"`
	ActualEnd      string     `json:"fimRealizado"`
	DriverName     string     `json:"nomeMotorista" validate:"max=120"`
	DriverBadge    FlexString `json:"crachaMotorista" validate:"max=20"`
	CollectorName  string     `json:"nomeCobrador" validate:"max=120"`
	CollectorBadge FlexString `json:"crachaCobrador" validate:"max=20"`
	VehiclePrefix  FlexString `json:"prefixoVeiculo" validate:"max=20"`
}

// GlobusTripInput is one Globus trip as pushed or pulled from upstream.
type GlobusTripInput struct {
	SourceID       FlexString `json:"idOrigem" validate:"required,max=64"`
	LineCode       FlexString `json:"codigoLinha" validate:"required,max=20"`
	LineName       string     `json:"nomeLinha" validate:"max=200"`
	ServiceNumber  FlexString `json:"servico" validate:"max=20"`
	Direction      FlexString `json:"sentido" validate:"max=20"`
	Sector         string     `json:"setor" validate:"max=80"`
	ScheduledStart string     `json:"inicioPrevisto"`
	ScheduledEnd   string     `json:"fimPrevisto"`
	DriverName     string     `json:"nomeMotorista" validate:"max=120"`
	DriverBadge    FlexString `json:"crachaMotorista" validate:"max=20"`
	CollectorName  string     `json:"nomeCobrador" validate:"max=120"`
	CollectorBadge FlexString `json:"crachaCobrador" validate:"max=20"`
	VehiclePrefix  FlexString `json:"prefixoVeiculo" validate:"max=20"`
}

// ImportTransdataRequest is the body of PUT /viagens/transdata.
type ImportTransdataRequest struct {
	Trips []TransdataTripInput `json:"viagens" binding:"required"`
}

// ImportGlobusRequest is the body of PUT /viagens/globus.
type ImportGlobusRequest struct {
	Trips []GlobusTripInput `json:"viagens" binding:"required"`
}

// ImportResult reports a wholesale replacement of one source's trips for a date.
type ImportResult struct {
	Source        string    `json:"fonte"`
	ReferenceDate string    `json:"dataReferencia"`
	Inserted      int       `json:"inseridas"`
	SyncedAt      time.Time `json:"sincronizadoEm"`
}

// SyncRequestResult acknowledges a queued pull.
type SyncRequestResult struct {
	JobID         string `json:"jobId"`
	Source        string `json:"fonte"`
	ReferenceDate string `json:"dataReferencia"`
	State         string `json:"estado"`
}
