package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/trip-control-api/internal/dto"
	"github.com/noah-isme/trip-control-api/internal/models"
	"github.com/noah-isme/trip-control-api/pkg/civil"
	appErrors "github.com/noah-isme/trip-control-api/pkg/errors"
)

const (
	defaultScheduleLimit    = 150
	maxScheduleLimit        = 1000
	defaultEditHistoryLimit = 50
	maxEditHistoryLimit     = 200

	maxCodeLength = 20
	maxNameLength = 120
	maxTextLength = 500
)

type scheduleControlStore interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleRow, models.ScheduleStats, error)
	FindRow(ctx context.Context, exec sqlx.ExtContext, tripID string) (*models.ScheduleRow, error)
	ListLaterTrips(ctx context.Context, exec sqlx.ExtContext, anchor *models.GlobusTrip) ([]models.GlobusTrip, error)
	LockFieldValue(ctx context.Context, exec sqlx.ExtContext, tripID string, field models.EditField) (*string, error)
	UpsertField(ctx context.Context, exec sqlx.ExtContext, tripID string, field models.EditField, value *string, editor models.Editor, at time.Time) error
	AppendHistory(ctx context.Context, exec sqlx.ExtContext, entry *models.EditHistoryEntry) error
	History(ctx context.Context, tripID string, page, pageSize int) ([]models.EditHistoryEntry, int, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// ScheduleControlConfig tunes the schedule view.
type ScheduleControlConfig struct {
	DefaultLimit int
}

// ScheduleControlService edits the overlay over Globus trips, propagating eligible edits
// forward along the same day, line and service, and keeps a per-field audit trail.
type ScheduleControlService struct {
	store   scheduleControlStore
	tx      txProvider
	metrics *MetricsService
	zone    *civil.Zone
	logger  *zap.Logger
	config  ScheduleControlConfig
	now     func() time.Time
}

// NewScheduleControlService wires a ScheduleControlService.
func NewScheduleControlService(store scheduleControlStore, tx txProvider, metrics *MetricsService, zone *civil.Zone, logger *zap.Logger, cfg ScheduleControlConfig) *ScheduleControlService {
	if zone == nil {
		zone = civil.UTC()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultLimit <= 0 || cfg.DefaultLimit > maxScheduleLimit {
		cfg.DefaultLimit = defaultScheduleLimit
	}
	return &ScheduleControlService{
		store:   store,
		tx:      tx,
		metrics: metrics,
		zone:    zone,
		logger:  logger,
		config:  cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ListSchedule returns the Globus trips of a date with their overlays and edit stats.
func (s *ScheduleControlService) ListSchedule(ctx context.Context, query dto.ScheduleListQuery) (*dto.ScheduleListResult, error) {
	if strings.TrimSpace(query.Date) == "" {
		return nil, appErrors.Validation("reference date is required", appErrors.FieldError{Field: "data", Message: "required"})
	}
	date, err := s.zone.ParseDate(query.Date)
	if err != nil {
		return nil, appErrors.Validation("invalid reference date", appErrors.FieldError{Field: "data", Message: "expected YYYY-MM-DD"})
	}
	page, limit := clampPage(query.Page, query.Limit, s.config.DefaultLimit, maxScheduleLimit)
	filter := models.ScheduleFilter{
		ReferenceDate: civil.StorageDate(date),
		LineCode:      NormalizeLine(query.LineCode),
		ServiceNumber: strings.TrimSpace(query.ServiceNumber),
		Sector:        strings.TrimSpace(query.Sector),
		Edited:        query.Edited,
		Search:        strings.TrimSpace(query.Search),
		Page:          page,
		PageSize:      limit,
	}

	var (
		rows  []models.ScheduleRow
		stats models.ScheduleStats
	)
	err = s.metrics.TimeDBQuery("schedule_list", func() (listErr error) {
		rows, stats, listErr = s.store.List(ctx, filter)
		return listErr
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedule")
	}
	if rows == nil {
		rows = []models.ScheduleRow{}
	}
	return &dto.ScheduleListResult{
		Items:      rows,
		Stats:      stats,
		Pagination: models.NewPagination(page, limit, stats.Total),
	}, nil
}

// History pages through the audit trail of one trip. Unknown trips yield an empty page.
func (s *ScheduleControlService) History(ctx context.Context, tripID string, query dto.EditHistoryQuery) (*dto.EditHistoryResult, error) {
	page, limit := clampPage(query.Page, query.Limit, defaultEditHistoryLimit, maxEditHistoryLimit)
	if _, err := uuid.Parse(tripID); err != nil {
		return &dto.EditHistoryResult{Items: []models.EditHistoryEntry{}, Pagination: models.NewPagination(page, limit, 0)}, nil
	}

	entries, total, err := s.store.History(ctx, tripID, page, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load edit history")
	}
	if entries == nil {
		entries = []models.EditHistoryEntry{}
	}
	return &dto.EditHistoryResult{Items: entries, Pagination: models.NewPagination(page, limit, total)}, nil
}

// SaveEdit applies one field edit to a trip and, when requested and eligible, to every later
// trip of the same date, line and service, all in one transaction.
func (s *ScheduleControlService) SaveEdit(ctx context.Context, tripID string, req dto.SaveEditRequest, editor models.Editor) (result *dto.SaveEditResult, err error) {
	field := models.EditField(strings.TrimSpace(req.Field))
	raw, err := editValue(req.Value)
	if err != nil {
		return nil, appErrors.Validation("invalid edit value", appErrors.FieldError{Field: "valor", Message: err.Error()})
	}
	value, observation, err := validateEdit(field, raw, req.Observation)
	if err != nil {
		return nil, err
	}
	if _, parseErr := uuid.Parse(tripID); parseErr != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "trip not found")
	}
	propagate := req.Propagate == nil || *req.Propagate

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	anchor, err := s.store.FindRow(ctx, tx, tripID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "trip not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trip")
	}

	at := s.now()
	w := &editWriter{store: s.store, metrics: s.metrics, exec: tx, editor: editor, at: at}

	anchorChanged, err := w.apply(ctx, anchor.ID, field, value, nil)
	if err != nil {
		return nil, err
	}
	if observation != nil {
		if _, err = w.apply(ctx, anchor.ID, models.FieldObservation, observation, nil); err != nil {
			return nil, err
		}
	}

	propagated := 0
	if propagate && field.Propagatable() {
		targets, listErr := s.store.ListLaterTrips(ctx, tx, &anchor.GlobusTrip)
		if listErr != nil {
			err = listErr
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to find later trips")
		}
		from := anchor.ID
		for _, target := range targets {
			changed, applyErr := w.apply(ctx, target.ID, field, value, &from)
			if applyErr != nil {
				err = applyErr
				return nil, err
			}
			if !changed {
				continue
			}
			propagated++
			if observation != nil {
				if _, err = w.apply(ctx, target.ID, models.FieldObservation, observation, &from); err != nil {
					return nil, err
				}
			}
		}
	}

	updated, err := s.store.FindRow(ctx, tx, anchor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload trip")
	}

	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit edit")
	}

	anchorWrites := 0
	if anchorChanged {
		anchorWrites = 1
	}
	s.metrics.ObserveScheduleEdit(field, anchorWrites, propagated)
	s.logger.Info("schedule edit saved",
		zap.String("trip_id", anchor.ID),
		zap.String("field", string(field)),
		zap.Bool("changed", anchorChanged),
		zap.Int("propagated", propagated),
		zap.Int("history_rows", w.history),
		zap.String("editor", editor.Email),
	)

	return &dto.SaveEditResult{Trip: updated, Propagated: propagated, HistoryWritten: w.history}, nil
}

// SaveMany applies a batch of edits item by item, each in its own transaction and without
// propagation. Failed items are reported and never roll back the others.
func (s *ScheduleControlService) SaveMany(ctx context.Context, req dto.BatchEditRequest, editor models.Editor) (*dto.BatchEditResult, error) {
	if strings.TrimSpace(req.Date) == "" {
		return nil, appErrors.Validation("reference date is required", appErrors.FieldError{Field: "data", Message: "required"})
	}
	date, err := s.zone.ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Validation("invalid reference date", appErrors.FieldError{Field: "data", Message: "expected YYYY-MM-DD"})
	}
	dateKey := s.zone.FormatDate(date)

	result := &dto.BatchEditResult{Failures: []dto.BatchEditFailure{}}
	for _, item := range req.Items {
		if err := s.saveItem(ctx, dateKey, item, editor); err != nil {
			result.Errors++
			result.Failures = append(result.Failures, dto.BatchEditFailure{TripID: item.TripID, Message: failureMessage(err)})
			s.logger.Warn("batch edit item rejected", zap.String("trip_id", item.TripID), zap.Error(err))
			continue
		}
		result.Saved++
	}

	s.logger.Info("schedule batch saved",
		zap.String("reference_date", dateKey),
		zap.Int("saved", result.Saved),
		zap.Int("errors", result.Errors),
		zap.String("editor", editor.Email),
	)
	return result, nil
}

type validatedChange struct {
	field models.EditField
	value *string
}

func (s *ScheduleControlService) saveItem(ctx context.Context, dateKey string, item dto.BatchEditItem, editor models.Editor) (err error) {
	if _, parseErr := uuid.Parse(item.TripID); parseErr != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "trip not found")
	}

	fields := make([]string, 0, len(item.Changes))
	for name := range item.Changes {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	observation := normalizeText(item.Observation)
	if observation != nil && utf8.RuneCountInString(*observation) > maxTextLength {
		return appErrors.Validation("observation too long", appErrors.FieldError{Field: "observacao", Message: fmt.Sprintf("at most %d characters", maxTextLength)})
	}

	changes := make([]validatedChange, 0, len(fields))
	for _, name := range fields {
		field := models.EditField(strings.TrimSpace(name))
		raw, convErr := editValue(item.Changes[name])
		if convErr != nil {
			return appErrors.Validation("invalid edit value", appErrors.FieldError{Field: name, Message: convErr.Error()})
		}
		value, _, validErr := validateEdit(field, raw, item.Observation)
		if validErr != nil {
			return validErr
		}
		if field == models.FieldObservation {
			observation = nil
		}
		changes = append(changes, validatedChange{field: field, value: value})
	}
	if len(changes) == 0 && observation == nil {
		return appErrors.Validation("no changes to apply", appErrors.FieldError{Field: "alteracoes", Message: "required"})
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row, err := s.store.FindRow(ctx, tx, item.TripID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "trip not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trip")
	}
	if s.zone.FormatDate(row.ReferenceDate) != dateKey {
		err = appErrors.Validation("trip does not belong to the reference date", appErrors.FieldError{Field: "viagemId", Message: "trip is from " + s.zone.FormatDate(row.ReferenceDate)})
		return err
	}

	w := &editWriter{store: s.store, metrics: s.metrics, exec: tx, editor: editor, at: s.now()}
	for _, change := range changes {
		changed, applyErr := w.apply(ctx, row.ID, change.field, change.value, nil)
		if applyErr != nil {
			err = applyErr
			return err
		}
		if changed {
			s.metrics.ObserveScheduleEdit(change.field, 1, 0)
		}
	}
	if observation != nil {
		if _, err = w.apply(ctx, row.ID, models.FieldObservation, observation, nil); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit edit")
	}
	return nil
}

// editWriter performs locked read-compare-write cycles inside one transaction.
type editWriter struct {
	store   scheduleControlStore
	metrics *MetricsService
	exec    sqlx.ExtContext
	editor  models.Editor
	at      time.Time
	history int
}

// apply writes value to one overlay field unless it already holds it. It reports whether a
// write (and its history row) happened.
func (w *editWriter) apply(ctx context.Context, tripID string, field models.EditField, value *string, propagatedFrom *string) (bool, error) {
	var old *string
	err := w.metrics.TimeDBQuery("schedule_lock_field", func() (lockErr error) {
		old, lockErr = w.store.LockFieldValue(ctx, w.exec, tripID, field)
		return lockErr
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "trip not found")
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read current value")
	}
	if field == models.FieldConfirmed && old == nil {
		unset := strconv.FormatBool(false)
		old = &unset
	}
	if sameValue(old, value) {
		return false, nil
	}

	if err := w.metrics.TimeDBQuery("schedule_upsert_field", func() error {
		return w.store.UpsertField(ctx, w.exec, tripID, field, value, w.editor, w.at)
	}); err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write overlay")
	}
	entry := &models.EditHistoryEntry{
		GlobusTripID:   tripID,
		Field:          field,
		OldValue:       old,
		NewValue:       value,
		EditorName:     w.editor.Name,
		EditorEmail:    w.editor.Email,
		PropagatedFrom: propagatedFrom,
		CreatedAt:      w.at,
	}
	if err := w.store.AppendHistory(ctx, w.exec, entry); err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record edit history")
	}
	w.history++
	return true, nil
}

func sameValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// validateEdit checks the field and value shape and returns the normalised value plus the
// observation to store alongside it (nil when none or when the field is the observation itself).
func validateEdit(field models.EditField, value *string, observation string) (*string, *string, error) {
	if !field.Valid() {
		return nil, nil, appErrors.Validation("unknown field", appErrors.FieldError{Field: "campo", Message: fmt.Sprintf("%q is not editable", field)})
	}

	obs := normalizeText(observation)
	if obs != nil && utf8.RuneCountInString(*obs) > maxTextLength {
		return nil, nil, appErrors.Validation("observation too long", appErrors.FieldError{Field: "observacao", Message: fmt.Sprintf("at most %d characters", maxTextLength)})
	}
	if field.RequiresObservation() && obs == nil {
		return nil, nil, appErrors.Validation("observation required for substitutions", appErrors.FieldError{Field: "observacao", Message: "required when setting a substitute"})
	}

	normalized, err := normalizeFieldValue(field, value)
	if err != nil {
		return nil, nil, appErrors.Validation("invalid value for "+string(field), appErrors.FieldError{Field: "valor", Message: err.Error()})
	}
	if field == models.FieldObservation {
		obs = nil
	}
	return normalized, obs, nil
}

func normalizeFieldValue(field models.EditField, value *string) (*string, error) {
	switch field.Kind() {
	case models.KindBool:
		if value == nil {
			return nil, errors.New("a boolean is required")
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(*value))
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", *value)
		}
		out := strconv.FormatBool(parsed)
		return &out, nil
	case models.KindClock:
		out := normalizeText(stringOrEmpty(value))
		if out != nil && !civil.ValidClock(*out) {
			return nil, fmt.Errorf("%q is not HH:MM", *out)
		}
		return out, nil
	case models.KindCode:
		return limitLength(value, maxCodeLength)
	case models.KindName:
		return limitLength(value, maxNameLength)
	default:
		return limitLength(value, maxTextLength)
	}
}

func limitLength(value *string, limit int) (*string, error) {
	out := normalizeText(stringOrEmpty(value))
	if out != nil && utf8.RuneCountInString(*out) > limit {
		return nil, fmt.Errorf("at most %d characters", limit)
	}
	return out, nil
}

// normalizeText trims and maps blank input to nil, which clears the field.
func normalizeText(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// editValue turns a decoded JSON value into the text stored in the overlay.
func editValue(raw interface{}) (*string, error) {
	var out string
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		out = v
	case bool:
		out = strconv.FormatBool(v)
	case float64:
		out = strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		out = v.String()
	default:
		return nil, fmt.Errorf("unsupported value type %T", raw)
	}
	return &out, nil
}

func failureMessage(err error) string {
	appErr := appErrors.FromError(err)
	if len(appErr.Details) == 0 {
		return appErr.Message
	}
	parts := make([]string, 0, len(appErr.Details))
	for _, d := range appErr.Details {
		parts = append(parts, d.Field+": "+d.Message)
	}
	return appErr.Message + " (" + strings.Join(parts, "; ") + ")"
}
