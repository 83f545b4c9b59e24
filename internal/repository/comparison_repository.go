package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/trip-control-api/internal/models"
)

// ErrRunLocked is returned when another transaction holds the advisory lock of the date.
var ErrRunLocked = errors.New("reconciliation advisory lock held")

const runColumns = `id, reference_date, total, compatible, divergent, time_divergent, transdata_only, globus_only, compatibility_percent, lines_analyzed, processing_ms, executed_by, created_at`

// ComparisonRepository persists reconciliation generations and their run summaries.
type ComparisonRepository struct {
	db *sqlx.DB
}

// NewComparisonRepository creates a new instance of ComparisonRepository.
func NewComparisonRepository(db *sqlx.DB) *ComparisonRepository {
	return &ComparisonRepository{db: db}
}

// ReplaceRun swaps the comparison rows of a date for a new generation and appends its summary,
// all or nothing. A concurrent writer on the same date yields ErrRunLocked.
func (r *ComparisonRepository) ReplaceRun(ctx context.Context, date time.Time, rows []models.TripComparison, run *models.ComparisonRun) (err error) {
	if run == nil {
		return fmt.Errorf("run summary is nil")
	}
	if !run.Consistent() {
		return fmt.Errorf("run summary counts do not add up to total %d", run.Total)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace comparison run: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked bool
	lockKey := "reconciliation:" + date.Format("2006-01-02")
	if err = tx.GetContext(ctx, &locked, `SELECT pg_try_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return fmt.Errorf("acquire reconciliation advisory lock: %w", err)
	}
	if !locked {
		err = ErrRunLocked
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM trip_comparisons WHERE reference_date = $1`, date); err != nil {
		return fmt.Errorf("delete comparisons: %w", err)
	}

	const insertRows = `INSERT INTO trip_comparisons (id, run_id, reference_date, line_code, transdata_trip_id, globus_trip_id, service_compatible, direction_compatible, time_compatible, status, time_difference_minutes, created_at) VALUES (:id, :run_id, :reference_date, :line_code, :transdata_trip_id, :globus_trip_id, :service_compatible, :direction_compatible, :time_compatible, :status, :time_difference_minutes, :created_at)`
	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))
		if _, err = sqlx.NamedExecContext(ctx, tx, insertRows, rows[start:end]); err != nil {
			return fmt.Errorf("insert comparisons: %w", err)
		}
	}

	const insertRun = `INSERT INTO comparison_runs (` + runColumns + `) VALUES (:id, :reference_date, :total, :compatible, :divergent, :time_divergent, :transdata_only, :globus_only, :compatibility_percent, :lines_analyzed, :processing_ms, :executed_by, :created_at)`
	if _, err = sqlx.NamedExecContext(ctx, tx, insertRun, run); err != nil {
		return fmt.Errorf("insert comparison run: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit comparison run: %w", err)
	}
	return nil
}

// List returns a page of comparisons joined with the display fields of both sources.
func (r *ComparisonRepository) List(ctx context.Context, filter models.ComparisonFilter) ([]models.ComparisonRow, int, error) {
	baseQuery := `FROM trip_comparisons c
LEFT JOIN transdata_trips t ON t.id = c.transdata_trip_id
LEFT JOIN globus_trips g ON g.id = c.globus_trip_id
WHERE c.reference_date = $1`
	args := []interface{}{filter.ReferenceDate}
	var conditions []string

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.LineCode != "" {
		conditions = append(conditions, fmt.Sprintf("c.line_code = $%d", len(args)+1))
		args = append(args, strings.TrimSpace(filter.LineCode))
	}
	if filter.Sector != "" {
		conditions = append(conditions, fmt.Sprintf("g.sector = $%d", len(args)+1))
		args = append(args, filter.Sector)
	}
	if filter.ServiceCompatible != nil {
		conditions = append(conditions, fmt.Sprintf("c.service_compatible = $%d", len(args)+1))
		args = append(args, *filter.ServiceCompatible)
	}
	if filter.DirectionCompatible != nil {
		conditions = append(conditions, fmt.Sprintf("c.direction_compatible = $%d", len(args)+1))
		args = append(args, *filter.DirectionCompatible)
	}
	if filter.TimeCompatible != nil {
		conditions = append(conditions, fmt.Sprintf("c.time_compatible = $%d", len(args)+1))
		args = append(args, *filter.TimeCompatible)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	limit, offset := pageWindow(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf(`SELECT c.id, c.run_id, c.reference_date, c.line_code, c.transdata_trip_id, c.globus_trip_id,
c.service_compatible, c.direction_compatible, c.time_compatible, c.status, c.time_difference_minutes, c.created_at,
COALESCE(g.line_name, t.line_name) AS line_name, g.sector AS sector,
t.service_number AS transdata_service, g.service_number AS globus_service,
t.direction AS transdata_direction, g.direction AS globus_direction,
t.scheduled_start AS transdata_start, t.actual_start AS transdata_actual_start, g.scheduled_start AS globus_start,
t.driver_name AS transdata_driver, g.driver_name AS globus_driver,
t.vehicle_prefix AS transdata_vehicle, g.vehicle_prefix AS globus_vehicle
%s ORDER BY c.line_code, COALESCE(t.scheduled_start, g.scheduled_start), c.id LIMIT %d OFFSET %d`, baseQuery, limit, offset)

	var rows []models.ComparisonRow
	if err := r.db.SelectContext(ctx, &rows, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list comparisons: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count comparisons: %w", err)
	}
	return rows, total, nil
}

// LatestRun returns the newest run summary of a date; sql.ErrNoRows when none exists.
func (r *ComparisonRepository) LatestRun(ctx context.Context, date time.Time) (*models.ComparisonRun, error) {
	query := `SELECT ` + runColumns + ` FROM comparison_runs WHERE reference_date = $1 ORDER BY created_at DESC LIMIT 1`
	var run models.ComparisonRun
	if err := r.db.GetContext(ctx, &run, query, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("latest comparison run: %w", err)
	}
	return &run, nil
}

// ListRuns pages through the run history, newest reference date first.
func (r *ComparisonRepository) ListRuns(ctx context.Context, filter models.RunHistoryFilter) ([]models.ComparisonRun, int, error) {
	baseQuery := `FROM comparison_runs WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("reference_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("reference_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.ExecutedBy != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(executed_by) = $%d", len(args)+1))
		args = append(args, strings.ToLower(strings.TrimSpace(filter.ExecutedBy)))
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	limit, offset := pageWindow(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY reference_date DESC, created_at DESC LIMIT %d OFFSET %d", runColumns, baseQuery, limit, offset)

	var runs []models.ComparisonRun
	if err := r.db.SelectContext(ctx, &runs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list comparison runs: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count comparison runs: %w", err)
	}
	return runs, total, nil
}

// pageWindow turns a 1-based page into LIMIT/OFFSET; callers clamp page sizes beforehand.
func pageWindow(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return pageSize, (page - 1) * pageSize
}
