package models

import "time"

// TripSource names an upstream system trips are synced from.
type TripSource string

const (
	SourceTransdata TripSource = "transdata"
	SourceGlobus    TripSource = "globus"
)

// Valid reports whether s is a known source.
func (s TripSource) Valid() bool {
	return s == SourceTransdata || s == SourceGlobus
}

// Direction is the canonical travel direction of a trip.
type Direction string

const (
	DirectionOutbound Direction = "IDA"
	DirectionReturn   Direction = "VOLTA"
	DirectionCircular Direction = "CIRCULAR"
)

// TransdataTrip is a trip snapshot received from Transdata. Direction keeps the raw upstream value.
type TransdataTrip struct {
	ID             string     `db:"id" json:"id"`
	ReferenceDate  time.Time  `db:"reference_date" json:"dataReferencia"`
	SourceID       string     `db:"source_id" json:"idOrigem"`
	LineCode       string     `db:"line_code" json:"codigoLinha"`
	LineName       string     `db:"line_name" json:"nomeLinha"`
	ServiceNumber  string     `db:"service_number" json:"servico"`
	Direction      string     `db:"direction" json:"sentido"`
	ScheduledStart *time.Time `db:"scheduled_start" json:"inicioPrevisto,omitempty"`
	ActualStart    *time.Time `db:"actual_start" json:"inicioRealizado,omitempty"`
	ScheduledEnd   *time.Time `db:"scheduled_end" json:"fimPrevisto,omitempty"`
	ActualEnd      *time.Time `db:"actual_end" json:"fimRealizado,omitempty"`
	DriverName     string     `db:"driver_name" json:"nomeMotorista"`
	DriverBadge    string     `db:"driver_badge" json:"crachaMotorista"`
	CollectorName  string     `db:"collector_name" json:"nomeCobrador"`
	CollectorBadge string     `db:"collector_badge" json:"crachaCobrador"`
	VehiclePrefix  string     `db:"vehicle_prefix" json:"prefixoVeiculo"`
	SyncedAt       time.Time  `db:"synced_at" json:"sincronizadoEm"`
}

// GlobusTrip is a trip snapshot received from Globus, the base of the editable schedule.
type GlobusTrip struct {
	ID             string     `db:"id" json:"id"`
	ReferenceDate  time.Time  `db:"reference_date" json:"dataReferencia"`
	SourceID       string     `db:"source_id" json:"idOrigem"`
	LineCode       string     `db:"line_code" json:"codigoLinha"`
	LineName       string     `db:"line_name" json:"nomeLinha"`
	ServiceNumber  string     `db:"service_number" json:"servico"`
	Direction      Direction  `db:"direction" json:"sentido"`
	Sector         string     `db:"sector" json:"setor"`
	ScheduledStart *time.Time `db:"scheduled_start" json:"inicioPrevisto,omitempty"`
	ScheduledEnd   *time.Time `db:"scheduled_end" json:"fimPrevisto,omitempty"`
	DriverName     string     `db:"driver_name" json:"nomeMotorista"`
	DriverBadge    string     `db:"driver_badge" json:"crachaMotorista"`
	CollectorName  string     `db:"collector_name" json:"nomeCobrador"`
	CollectorBadge string     `db:"collector_badge" json:"crachaCobrador"`
	VehiclePrefix  string     `db:"vehicle_prefix" json:"prefixoVeiculo"`
	SyncedAt       time.Time  `db:"synced_at" json:"sincronizadoEm"`
}
