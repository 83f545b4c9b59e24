package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/trip-control-api/internal/dto"
	"github.com/noah-isme/trip-control-api/internal/models"
	"github.com/noah-isme/trip-control-api/internal/source"
	"github.com/noah-isme/trip-control-api/pkg/civil"
	appErrors "github.com/noah-isme/trip-control-api/pkg/errors"
	"github.com/noah-isme/trip-control-api/pkg/jobs"
)

// JobTypeTripPull is the queue job type of an upstream pull.
const JobTypeTripPull = "trip_pull"

// tripNamespace seeds the deterministic trip ids; changing it orphans every overlay.
var tripNamespace = uuid.MustParse("6f1c2a8e-3d54-5b7a-9e21-0c4d8f7a1b36")

type tripWriter interface {
	ReplaceTransdata(ctx context.Context, date time.Time, trips []models.TransdataTrip) error
	ReplaceGlobus(ctx context.Context, date time.Time, trips []models.GlobusTrip) error
}

type payloadFetcher interface {
	Fetch(ctx context.Context, endpoint source.Endpoint, date string) ([]byte, error)
}

type payloadArchive interface {
	Archive(src, date, tag string, data []byte) (string, error)
}

type jobQueue interface {
	Enqueue(job jobs.Job) error
	Status(id string) (jobs.Status, bool)
}

// TripSyncConfig points the pull worker at the upstream APIs.
type TripSyncConfig struct {
	Transdata source.Endpoint
	Globus    source.Endpoint
}

type pullPayload struct {
	Source models.TripSource
	Date   string
}

// TripSyncService replaces a date's trips of one source, from a pushed body or an upstream pull.
type TripSyncService struct {
	trips     tripWriter
	fetcher   payloadFetcher
	archive   payloadArchive
	queue     jobQueue
	validator *validator.Validate
	metrics   *MetricsService
	zone      *civil.Zone
	logger    *zap.Logger
	config    TripSyncConfig
	now       func() time.Time
}

// NewTripSyncService wires a TripSyncService. Pulls stay unavailable until UseQueue is called.
func NewTripSyncService(trips tripWriter, fetcher payloadFetcher, archive payloadArchive, validate *validator.Validate, metrics *MetricsService, zone *civil.Zone, logger *zap.Logger, cfg TripSyncConfig) *TripSyncService {
	if validate == nil {
		validate = validator.New()
	}
	if zone == nil {
		zone = civil.UTC()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TripSyncService{
		trips:     trips,
		fetcher:   fetcher,
		archive:   archive,
		validator: validate,
		metrics:   metrics,
		zone:      zone,
		logger:    logger,
		config:    cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// UseQueue attaches the worker pool that runs HandleJob.
func (s *TripSyncService) UseQueue(q jobQueue) {
	s.queue = q
}

// TripID derives the stable id of an upstream trip.
func TripID(src models.TripSource, date time.Time, sourceID string) string {
	name := fmt.Sprintf("%s|%s|%s", src, date.Format(civil.DateLayout), strings.TrimSpace(sourceID))
	return uuid.NewSHA1(tripNamespace, []byte(name)).String()
}

// ImportTransdata replaces every Transdata trip of a date.
func (s *TripSyncService) ImportTransdata(ctx context.Context, rawDate string, rows []dto.TransdataTripInput) (*dto.ImportResult, error) {
	date, err := s.parseDate(rawDate)
	if err != nil {
		return nil, err
	}
	syncedAt := s.now()

	var details []appErrors.FieldError
	seen := make(map[string]int, len(rows))
	trips := make([]models.TransdataTrip, 0, len(rows))
	for i, row := range rows {
		prefix := fmt.Sprintf("viagens[%d]", i)
		rowDetails := s.validateRow(prefix, row)
		rowDetails = append(rowDetails, duplicateCheck(seen, prefix, string(row.SourceID), i)...)

		scheduledStart, d1 := s.timestamp(date, prefix+".inicioPrevisto", row.ScheduledStart)
		actualStart, d2 := s.timestamp(date, prefix+".inicioRealizado", row.ActualStart)
		scheduledEnd, d3 := s.timestamp(date, prefix+".fimPrevisto", row.ScheduledEnd)
		actualEnd, d4 := s.timestamp(date, prefix+".fimRealizado", row.ActualEnd)
		rowDetails = append(rowDetails, d1...)
		rowDetails = append(rowDetails, d2...)
		rowDetails = append(rowDetails, d3...)
		rowDetails = append(rowDetails, d4...)
		if len(rowDetails) > 0 {
			details = append(details, rowDetails...)
			continue
		}

		sourceID := strings.TrimSpace(string(row.SourceID))
		trips = append(trips, models.TransdataTrip{
			ID:             TripID(models.SourceTransdata, date, sourceID),
			ReferenceDate:  date,
			SourceID:       sourceID,
			LineCode:       NormalizeLine(string(row.LineCode)),
			LineName:       strings.TrimSpace(row.LineName),
			ServiceNumber:  strings.TrimSpace(string(row.ServiceNumber)),
			Direction:      strings.TrimSpace(string(row.Direction)),
			ScheduledStart: scheduledStart,
			ActualStart:    actualStart,
			ScheduledEnd:   scheduledEnd,
			ActualEnd:      actualEnd,
			DriverName:     strings.TrimSpace(row.DriverName),
			DriverBadge:    strings.TrimSpace(string(row.DriverBadge)),
			CollectorName:  strings.TrimSpace(row.CollectorName),
			CollectorBadge: strings.TrimSpace(string(row.CollectorBadge)),
			VehiclePrefix:  strings.TrimSpace(string(row.VehiclePrefix)),
			SyncedAt:       syncedAt,
		})
	}
	if len(details) > 0 {
		s.metrics.ObserveSync(models.SourceTransdata, "invalid", 0)
		return nil, appErrors.Validation("invalid transdata trips", details...)
	}

	if err := s.trips.ReplaceTransdata(ctx, date, trips); err != nil {
		s.metrics.ObserveSync(models.SourceTransdata, "error", 0)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store transdata trips")
	}
	return s.imported(models.SourceTransdata, date, len(trips), syncedAt), nil
}

// ImportGlobus replaces every Globus trip of a date. Overlays keyed by trip id survive.
func (s *TripSyncService) ImportGlobus(ctx context.Context, rawDate string, rows []dto.GlobusTripInput) (*dto.ImportResult, error) {
	date, err := s.parseDate(rawDate)
	if err != nil {
		return nil, err
	}
	syncedAt := s.now()

	var details []appErrors.FieldError
	seen := make(map[string]int, len(rows))
	trips := make([]models.GlobusTrip, 0, len(rows))
	for i, row := range rows {
		prefix := fmt.Sprintf("viagens[%d]", i)
		rowDetails := s.validateRow(prefix, row)
		rowDetails = append(rowDetails, duplicateCheck(seen, prefix, string(row.SourceID), i)...)

		direction, ok := CanonicalDirection(string(row.Direction))
		if !ok {
			rowDetails = append(rowDetails, appErrors.FieldError{Field: prefix + ".sentido", Message: "expected IDA, VOLTA or CIRCULAR"})
		}
		scheduledStart, d1 := s.timestamp(date, prefix+".inicioPrevisto", row.ScheduledStart)
		scheduledEnd, d2 := s.timestamp(date, prefix+".fimPrevisto", row.ScheduledEnd)
		rowDetails = append(rowDetails, d1...)
		rowDetails = append(rowDetails, d2...)
		if len(rowDetails) > 0 {
			details = append(details, rowDetails...)
			continue
		}

		sourceID := strings.TrimSpace(string(row.SourceID))
		trips = append(trips, models.GlobusTrip{
			ID:             TripID(models.SourceGlobus, date, sourceID),
			ReferenceDate:  date,
			SourceID:       sourceID,
			LineCode:       NormalizeLine(string(row.LineCode)),
			LineName:       strings.TrimSpace(row.LineName),
			ServiceNumber:  strings.TrimSpace(string(row.ServiceNumber)),
			Direction:      direction,
			Sector:         strings.TrimSpace(row.Sector),
			ScheduledStart: scheduledStart,
			ScheduledEnd:   scheduledEnd,
			DriverName:     strings.TrimSpace(row.DriverName),
			DriverBadge:    strings.TrimSpace(string(row.DriverBadge)),
			CollectorName:  strings.TrimSpace(row.CollectorName),
			CollectorBadge: strings.TrimSpace(string(row.CollectorBadge)),
			VehiclePrefix:  strings.TrimSpace(string(row.VehiclePrefix)),
			SyncedAt:       syncedAt,
		})
	}
	if len(details) > 0 {
		s.metrics.ObserveSync(models.SourceGlobus, "invalid", 0)
		return nil, appErrors.Validation("invalid globus trips", details...)
	}

	if err := s.trips.ReplaceGlobus(ctx, date, trips); err != nil {
		s.metrics.ObserveSync(models.SourceGlobus, "error", 0)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store globus trips")
	}
	return s.imported(models.SourceGlobus, date, len(trips), syncedAt), nil
}

// RequestPull queues an upstream pull of one source for a date.
func (s *TripSyncService) RequestPull(ctx context.Context, rawSource, rawDate string) (*dto.SyncRequestResult, error) {
	src := models.TripSource(strings.ToLower(strings.TrimSpace(rawSource)))
	if !src.Valid() {
		return nil, appErrors.Validation("unknown trip source",
			appErrors.FieldError{Field: "fonte", Message: "expected transdata or globus"})
	}
	date, err := s.parseDate(rawDate)
	if err != nil {
		return nil, err
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "trip sync worker is not running")
	}
	if s.endpoint(src).URL == "" {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, fmt.Sprintf("%s api is not configured", src))
	}

	dateStr := date.Format(civil.DateLayout)
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    JobTypeTripPull,
		Payload: pullPayload{Source: src, Date: dateStr},
	}
	if err := s.queue.Enqueue(job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to queue trip sync")
	}
	s.logger.Info("trip pull queued", zap.String("job_id", job.ID), zap.String("source", string(src)), zap.String("date", dateStr))
	return &dto.SyncRequestResult{JobID: job.ID, Source: string(src), ReferenceDate: dateStr, State: string(jobs.StateQueued)}, nil
}

// JobStatus reports the state of a queued pull.
func (s *TripSyncService) JobStatus(_ context.Context, id string) (*jobs.Status, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "sync job not found")
	}
	st, ok := s.queue.Status(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "sync job not found")
	}
	return &st, nil
}

// HandleJob is the queue handler: fetch, archive the raw body, extract rows, import.
func (s *TripSyncService) HandleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(pullPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	endpoint := s.endpoint(payload.Source)

	body, err := s.fetcher.Fetch(ctx, endpoint, payload.Date)
	if err != nil {
		s.metrics.ObserveSync(payload.Source, "fetch_error", 0)
		return err
	}
	if s.archive != nil {
		if path, err := s.archive.Archive(string(payload.Source), payload.Date, job.ID, body); err != nil {
			s.logger.Warn("failed to archive source payload", zap.String("job_id", job.ID), zap.Error(err))
		} else {
			s.logger.Debug("source payload archived", zap.String("path", path))
		}
	}

	var result *dto.ImportResult
	switch payload.Source {
	case models.SourceTransdata:
		rows, extractErr := source.TransdataRecords(body, endpoint.RecordsPath)
		if extractErr != nil {
			s.metrics.ObserveSync(payload.Source, "invalid", 0)
			return extractErr
		}
		result, err = s.ImportTransdata(ctx, payload.Date, rows)
	case models.SourceGlobus:
		rows, extractErr := source.GlobusRecords(body, endpoint.RecordsPath)
		if extractErr != nil {
			s.metrics.ObserveSync(payload.Source, "invalid", 0)
			return extractErr
		}
		result, err = s.ImportGlobus(ctx, payload.Date, rows)
	default:
		return fmt.Errorf("unknown trip source %q", payload.Source)
	}
	if err != nil {
		return err
	}
	s.logger.Info("trip pull finished", zap.String("job_id", job.ID), zap.String("source", result.Source), zap.Int("inserted", result.Inserted))
	return nil
}

func (s *TripSyncService) endpoint(src models.TripSource) source.Endpoint {
	if src == models.SourceGlobus {
		return s.config.Globus
	}
	return s.config.Transdata
}

func (s *TripSyncService) imported(src models.TripSource, date time.Time, inserted int, syncedAt time.Time) *dto.ImportResult {
	s.metrics.ObserveSync(src, "success", inserted)
	dateStr := date.Format(civil.DateLayout)
	s.logger.Info("trips replaced", zap.String("source", string(src)), zap.String("date", dateStr), zap.Int("inserted", inserted))
	return &dto.ImportResult{Source: string(src), ReferenceDate: dateStr, Inserted: inserted, SyncedAt: syncedAt}
}

func (s *TripSyncService) parseDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, appErrors.Validation("reference date is required",
			appErrors.FieldError{Field: "data", Message: "required"})
	}
	date, err := s.zone.ParseDate(raw)
	if err != nil {
		return time.Time{}, appErrors.Validation("invalid reference date",
			appErrors.FieldError{Field: "data", Message: "expected YYYY-MM-DD"})
	}
	return civil.StorageDate(date), nil
}

func (s *TripSyncService) validateRow(prefix string, row interface{}) []appErrors.FieldError {
	err := s.validator.Struct(row)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []appErrors.FieldError{{Field: prefix, Message: err.Error()}}
	}
	details := make([]appErrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, appErrors.FieldError{Field: prefix + "." + jsonFieldName(fe.Field()), Message: fe.Tag()})
	}
	return details
}

func (s *TripSyncService) timestamp(date time.Time, field, raw string) (*time.Time, []appErrors.FieldError) {
	ts, err := s.zone.ParseTimestamp(date, raw)
	if err != nil {
		return nil, []appErrors.FieldError{{Field: field, Message: "unrecognised timestamp"}}
	}
	return ts, nil
}

func duplicateCheck(seen map[string]int, prefix, sourceID string, index int) []appErrors.FieldError {
	id := strings.TrimSpace(sourceID)
	if id == "" {
		return nil
	}
	if first, dup := seen[id]; dup {
		return []appErrors.FieldError{{Field: prefix + ".idOrigem", Message: fmt.Sprintf("duplicates viagens[%d]", first)}}
	}
	seen[id] = index
	return nil
}

var inputFieldNames = map[string]string{
	"SourceID":       "idOrigem",
	"LineCode":       "codigoLinha",
	"LineName":       "nomeLinha",
	"ServiceNumber":  "servico",
	"Direction":      "sentido",
	"Sector":         "setor",
	"DriverName":     "nomeMotorista",
	"DriverBadge":    "crachaMotorista",
	"CollectorName":  "nomeCobrador",
	"CollectorBadge": "crachaCobrador",
	"VehiclePrefix":  "prefixoVeiculo",
}

func jsonFieldName(field string) string {
	if name, ok := inputFieldNames[field]; ok {
		return name
	}
	return field
}
