package models

import "time"

// EditField names an editable overlay attribute.
type EditField string

const (
	FieldVehicle                  EditField = "vehicle"
	FieldBadge                    EditField = "badge"
	FieldConfirmed                EditField = "confirmed"
	FieldAdjustedStart            EditField = "adjusted_start"
	FieldAdjustedEnd              EditField = "adjusted_end"
	FieldSubstituteDriverName     EditField = "substitute_driver_name"
	FieldSubstituteDriverBadge    EditField = "substitute_driver_badge"
	FieldSubstituteCollectorName  EditField = "substitute_collector_name"
	FieldSubstituteCollectorBadge EditField = "substitute_collector_badge"
	FieldObservation              EditField = "observation"
	FieldDelayReason              EditField = "delay_reason"
	FieldDelayObservation         EditField = "delay_observation"
)

// FieldKind drives value validation of an edit.
type FieldKind int

const (
	KindCode FieldKind = iota
	KindName
	KindClock
	KindBool
	KindText
)

type fieldSpec struct {
	column              string
	kind                FieldKind
	propagatable        bool
	requiresObservation bool
}

var editFields = map[EditField]fieldSpec{
	FieldVehicle:                  {column: "vehicle_number", kind: KindCode, propagatable: true},
	FieldBadge:                    {column: "badge", kind: KindCode, propagatable: true},
	FieldConfirmed:                {column: "confirmed", kind: KindBool},
	FieldAdjustedStart:            {column: "adjusted_start", kind: KindClock},
	FieldAdjustedEnd:              {column: "adjusted_end", kind: KindClock},
	FieldSubstituteDriverName:     {column: "substitute_driver_name", kind: KindName, propagatable: true, requiresObservation: true},
	FieldSubstituteDriverBadge:    {column: "substitute_driver_badge", kind: KindCode, propagatable: true, requiresObservation: true},
	FieldSubstituteCollectorName:  {column: "substitute_collector_name", kind: KindName, propagatable: true, requiresObservation: true},
	FieldSubstituteCollectorBadge: {column: "substitute_collector_badge", kind: KindCode, propagatable: true, requiresObservation: true},
	FieldObservation:              {column: "observation", kind: KindText},
	FieldDelayReason:              {column: "delay_reason", kind: KindText},
	FieldDelayObservation:         {column: "delay_observation", kind: KindText},
}

// Valid reports whether f is part of the editable set.
func (f EditField) Valid() bool {
	_, ok := editFields[f]
	return ok
}

// Column is the schedule_overlays column backing f.
func (f EditField) Column() string { return editFields[f].column }

// Kind is the value shape accepted for f.
func (f EditField) Kind() FieldKind { return editFields[f].kind }

// Propagatable reports whether an edit of f is copied to later trips of the same service.
func (f EditField) Propagatable() bool { return editFields[f].propagatable }

// RequiresObservation reports whether f may only be set with a non-blank observation.
func (f EditField) RequiresObservation() bool { return editFields[f].requiresObservation }

// Editor identifies who performed an edit or run.
type Editor struct {
	Name  string
	Email string
}

// ScheduleRow is a Globus trip left-joined with its overlay.
type ScheduleRow struct {
	GlobusTrip
	VehicleNumber            *string    `db:"vehicle_number" json:"numeroCarro"`
	Badge                    *string    `db:"badge" json:"cracha"`
	SubstituteDriverName     *string    `db:"substitute_driver_name" json:"nomeMotoristaSubstituto"`
	SubstituteDriverBadge    *string    `db:"substitute_driver_badge" json:"crachaMotoristaSubstituto"`
	SubstituteCollectorName  *string    `db:"substitute_collector_name" json:"nomeCobradorSubstituto"`
	SubstituteCollectorBadge *string    `db:"substitute_collector_badge" json:"crachaCobradorSubstituto"`
	AdjustedStart            *string    `db:"adjusted_start" json:"horarioInicioAjustado"`
	AdjustedEnd              *string    `db:"adjusted_end" json:"horarioFimAjustado"`
	Observation              *string    `db:"observation" json:"observacoes"`
	DelayReason              *string    `db:"delay_reason" json:"motivoAtraso"`
	DelayObservation         *string    `db:"delay_observation" json:"observacaoAtraso"`
	Confirmed                bool       `db:"confirmed" json:"confirmado"`
	EditorName               *string    `db:"editor_name" json:"editorNome"`
	EditorEmail              *string    `db:"editor_email" json:"editorEmail"`
	UpdatedAt                *time.Time `db:"updated_at" json:"atualizadoEm"`
	Edited                   bool       `db:"edited" json:"editado"`
}

// ScheduleFilter narrows the editable schedule view.
type ScheduleFilter struct {
	ReferenceDate time.Time
	LineCode      string
	ServiceNumber string
	Sector        string
	Edited        *bool
	Search        string
	Page          int
	PageSize      int
}

// ScheduleStats aggregates the filtered schedule view.
type ScheduleStats struct {
	Total         int     `db:"total" json:"totalViagens"`
	Edited        int     `db:"edited" json:"viagensEditadas"`
	Unedited      int     `json:"viagensNaoEditadas"`
	PercentEdited Percent `json:"percentualEditado"`
}

// EditHistoryEntry is one immutable audit row for a single field change.
type EditHistoryEntry struct {
	ID             string    `db:"id" json:"id"`
	GlobusTripID   string    `db:"globus_trip_id" json:"viagemId"`
	Field          EditField `db:"field" json:"campo"`
	OldValue       *string   `db:"old_value" json:"valorAnterior"`
	NewValue       *string   `db:"new_value" json:"valorNovo"`
	EditorName     string    `db:"editor_name" json:"editorNome"`
	EditorEmail    string    `db:"editor_email" json:"editorEmail"`
	PropagatedFrom *string   `db:"propagated_from" json:"propagadoDe,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"criadoEm"`
}
