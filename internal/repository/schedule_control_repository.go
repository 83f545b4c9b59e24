package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/trip-control-api/internal/models"
)

const scheduleRowColumns = `g.id, g.reference_date, g.source_id, g.line_code, g.line_name, g.service_number, g.direction, g.sector,
g.scheduled_start, g.scheduled_end, g.driver_name, g.driver_badge, g.collector_name, g.collector_badge, g.vehicle_prefix, g.synced_at,
o.vehicle_number, o.badge, o.substitute_driver_name, o.substitute_driver_badge, o.substitute_collector_name, o.substitute_collector_badge,
o.adjusted_start, o.adjusted_end, o.observation, o.delay_reason, o.delay_observation, COALESCE(o.confirmed, FALSE) AS confirmed,
o.editor_name, o.editor_email, o.updated_at, (o.globus_trip_id IS NOT NULL) AS edited`

const historyColumns = `id, globus_trip_id, field, old_value, new_value, editor_name, editor_email, propagated_from, created_at`

// ScheduleControlRepository reads and writes the editable overlay over Globus trips.
type ScheduleControlRepository struct {
	db *sqlx.DB
}

// NewScheduleControlRepository creates a new instance of ScheduleControlRepository.
func NewScheduleControlRepository(db *sqlx.DB) *ScheduleControlRepository {
	return &ScheduleControlRepository{db: db}
}

func (r *ScheduleControlRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

func scheduleWhere(filter models.ScheduleFilter) (string, []interface{}) {
	where := `WHERE g.reference_date = $1`
	args := []interface{}{filter.ReferenceDate}
	var conditions []string

	if filter.LineCode != "" {
		conditions = append(conditions, fmt.Sprintf("g.line_code = $%d", len(args)+1))
		args = append(args, strings.TrimSpace(filter.LineCode))
	}
	if filter.ServiceNumber != "" {
		conditions = append(conditions, fmt.Sprintf("g.service_number = $%d", len(args)+1))
		args = append(args, strings.TrimSpace(filter.ServiceNumber))
	}
	if filter.Sector != "" {
		conditions = append(conditions, fmt.Sprintf("g.sector = $%d", len(args)+1))
		args = append(args, filter.Sector)
	}
	if filter.Edited != nil {
		if *filter.Edited {
			conditions = append(conditions, "o.globus_trip_id IS NOT NULL")
		} else {
			conditions = append(conditions, "o.globus_trip_id IS NULL")
		}
	}
	if filter.Search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf(`(LOWER(g.line_name) LIKE $%[1]d OR LOWER(g.driver_name) LIKE $%[1]d OR LOWER(g.collector_name) LIKE $%[1]d
OR LOWER(g.vehicle_prefix) LIKE $%[1]d OR LOWER(COALESCE(o.vehicle_number, '')) LIKE $%[1]d
OR LOWER(COALESCE(o.substitute_driver_name, '')) LIKE $%[1]d OR LOWER(COALESCE(o.substitute_collector_name, '')) LIKE $%[1]d)`, n))
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(filter.Search))+"%")
	}
	if len(conditions) > 0 {
		where += " AND " + strings.Join(conditions, " AND ")
	}
	return where, args
}

// List returns a page of Globus trips joined with their overlays plus stats over the whole filtered set.
func (r *ScheduleControlRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleRow, models.ScheduleStats, error) {
	where, args := scheduleWhere(filter)
	from := `FROM globus_trips g LEFT JOIN schedule_overlays o ON o.globus_trip_id = g.id ` + where

	limit, offset := pageWindow(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY g.line_code, g.service_number, g.scheduled_start, g.source_id LIMIT %d OFFSET %d", scheduleRowColumns, from, limit, offset)

	var rows []models.ScheduleRow
	if err := r.db.SelectContext(ctx, &rows, listQuery, args...); err != nil {
		return nil, models.ScheduleStats{}, fmt.Errorf("list schedule: %w", err)
	}

	var stats models.ScheduleStats
	statsQuery := `SELECT COUNT(*) AS total, COUNT(o.globus_trip_id) AS edited ` + from
	if err := r.db.GetContext(ctx, &stats, statsQuery, args...); err != nil {
		return nil, models.ScheduleStats{}, fmt.Errorf("schedule stats: %w", err)
	}
	stats.Unedited = stats.Total - stats.Edited
	stats.PercentEdited = models.NewPercent(stats.Edited, stats.Total)
	return rows, stats, nil
}

// FindRow returns one Globus trip joined with its overlay; sql.ErrNoRows when the trip is absent.
func (r *ScheduleControlRepository) FindRow(ctx context.Context, exec sqlx.ExtContext, tripID string) (*models.ScheduleRow, error) {
	query := `SELECT ` + scheduleRowColumns + ` FROM globus_trips g LEFT JOIN schedule_overlays o ON o.globus_trip_id = g.id WHERE g.id = $1`
	var row models.ScheduleRow
	if err := sqlx.GetContext(ctx, r.exec(exec), &row, query, tripID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find schedule row: %w", err)
	}
	return &row, nil
}

// ListLaterTrips returns the trips of the anchor's date, line and service starting strictly after it.
func (r *ScheduleControlRepository) ListLaterTrips(ctx context.Context, exec sqlx.ExtContext, anchor *models.GlobusTrip) ([]models.GlobusTrip, error) {
	if anchor == nil || anchor.ScheduledStart == nil {
		return nil, nil
	}
	query := `SELECT ` + globusColumns + ` FROM globus_trips
WHERE reference_date = $1 AND line_code = $2 AND service_number = $3 AND scheduled_start > $4 AND id <> $5
ORDER BY scheduled_start, source_id`
	var trips []models.GlobusTrip
	if err := sqlx.SelectContext(ctx, r.exec(exec), &trips, query, anchor.ReferenceDate, anchor.LineCode, anchor.ServiceNumber, *anchor.ScheduledStart, anchor.ID); err != nil {
		return nil, fmt.Errorf("list later trips: %w", err)
	}
	return trips, nil
}

// LockFieldValue locks the trip row and returns the current overlay value of field as text.
// A trip without overlay yields nil; a missing trip yields sql.ErrNoRows.
func (r *ScheduleControlRepository) LockFieldValue(ctx context.Context, exec sqlx.ExtContext, tripID string, field models.EditField) (*string, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("unknown edit field %q", field)
	}
	column := "o." + field.Column()
	if field == models.FieldConfirmed {
		column = "CASE WHEN o.confirmed IS NULL THEN NULL WHEN o.confirmed THEN 'true' ELSE 'false' END"
	}
	query := fmt.Sprintf(`SELECT %s FROM globus_trips g LEFT JOIN schedule_overlays o ON o.globus_trip_id = g.id WHERE g.id = $1 FOR UPDATE OF g`, column)

	var value sql.NullString
	if err := sqlx.GetContext(ctx, r.exec(exec), &value, query, tripID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock overlay field %s: %w", field, err)
	}
	if !value.Valid {
		return nil, nil
	}
	return &value.String, nil
}

// UpsertField writes one overlay column, creating the overlay on first edit.
func (r *ScheduleControlRepository) UpsertField(ctx context.Context, exec sqlx.ExtContext, tripID string, field models.EditField, value *string, editor models.Editor, at time.Time) error {
	if !field.Valid() {
		return fmt.Errorf("unknown edit field %q", field)
	}
	var arg interface{}
	if value != nil {
		arg = *value
	}
	if field == models.FieldConfirmed {
		confirmed := false
		if value != nil {
			parsed, err := strconv.ParseBool(*value)
			if err != nil {
				return fmt.Errorf("confirmed value %q: %w", *value, err)
			}
			confirmed = parsed
		}
		arg = confirmed
	}

	col := field.Column()
	query := fmt.Sprintf(`INSERT INTO schedule_overlays (globus_trip_id, %[1]s, editor_name, editor_email, updated_at) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (globus_trip_id) DO UPDATE SET %[1]s = EXCLUDED.%[1]s, editor_name = EXCLUDED.editor_name, editor_email = EXCLUDED.editor_email, updated_at = EXCLUDED.updated_at`, col)
	if _, err := r.exec(exec).ExecContext(ctx, query, tripID, arg, editor.Name, editor.Email, at); err != nil {
		return fmt.Errorf("upsert overlay %s: %w", field, err)
	}
	return nil
}

// AppendHistory stores one immutable audit row.
func (r *ScheduleControlRepository) AppendHistory(ctx context.Context, exec sqlx.ExtContext, entry *models.EditHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO schedule_edit_history (` + historyColumns + `) VALUES (:id, :globus_trip_id, :field, :old_value, :new_value, :editor_name, :editor_email, :propagated_from, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entry); err != nil {
		return fmt.Errorf("append edit history: %w", err)
	}
	return nil
}

// History pages through the audit trail of one trip, newest first.
func (r *ScheduleControlRepository) History(ctx context.Context, tripID string, page, pageSize int) ([]models.EditHistoryEntry, int, error) {
	limit, offset := pageWindow(page, pageSize)
	query := fmt.Sprintf(`SELECT %s FROM schedule_edit_history WHERE globus_trip_id = $1 ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`, historyColumns, limit, offset)

	var entries []models.EditHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, tripID); err != nil {
		return nil, 0, fmt.Errorf("list edit history: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM schedule_edit_history WHERE globus_trip_id = $1`, tripID); err != nil {
		return nil, 0, fmt.Errorf("count edit history: %w", err)
	}
	return entries, total, nil
}
