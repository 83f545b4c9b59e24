package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/trip-control-api/internal/models"
)

// insertChunk bounds rows per multi-row INSERT to stay far below the 65535 bind parameter cap.
const insertChunk = 500

const transdataColumns = `id, reference_date, source_id, line_code, line_name, service_number, direction, scheduled_start, actual_start, scheduled_end, actual_end, driver_name, driver_badge, collector_name, collector_badge, vehicle_prefix, synced_at`

const globusColumns = `id, reference_date, source_id, line_code, line_name, service_number, direction, sector, scheduled_start, scheduled_end, driver_name, driver_badge, collector_name, collector_badge, vehicle_prefix, synced_at`

// TripRepository stores the synced trip snapshots of both sources.
type TripRepository struct {
	db *sqlx.DB
}

// NewTripRepository creates a new instance of TripRepository.
func NewTripRepository(db *sqlx.DB) *TripRepository {
	return &TripRepository{db: db}
}

// ListTransdataByDate returns every Transdata trip of a reference date.
func (r *TripRepository) ListTransdataByDate(ctx context.Context, date time.Time) ([]models.TransdataTrip, error) {
	query := `SELECT ` + transdataColumns + ` FROM transdata_trips WHERE reference_date = $1 ORDER BY line_code, scheduled_start, source_id`
	var trips []models.TransdataTrip
	if err := r.db.SelectContext(ctx, &trips, query, date); err != nil {
		return nil, fmt.Errorf("list transdata trips: %w", err)
	}
	return trips, nil
}

// ListGlobusByDate returns every Globus trip of a reference date.
func (r *TripRepository) ListGlobusByDate(ctx context.Context, date time.Time) ([]models.GlobusTrip, error) {
	query := `SELECT ` + globusColumns + ` FROM globus_trips WHERE reference_date = $1 ORDER BY line_code, scheduled_start, source_id`
	var trips []models.GlobusTrip
	if err := r.db.SelectContext(ctx, &trips, query, date); err != nil {
		return nil, fmt.Errorf("list globus trips: %w", err)
	}
	return trips, nil
}

// CountByDate reports how many trips each source holds for a date.
func (r *TripRepository) CountByDate(ctx context.Context, date time.Time) (transdata int, globus int, err error) {
	const query = `SELECT (SELECT COUNT(*) FROM transdata_trips WHERE reference_date = $1), (SELECT COUNT(*) FROM globus_trips WHERE reference_date = $1)`
	if err = r.db.QueryRowxContext(ctx, query, date).Scan(&transdata, &globus); err != nil {
		return 0, 0, fmt.Errorf("count trips by date: %w", err)
	}
	return transdata, globus, nil
}

// ReplaceTransdata swaps the Transdata trips of a date in one transaction.
func (r *TripRepository) ReplaceTransdata(ctx context.Context, date time.Time, trips []models.TransdataTrip) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace transdata trips: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM transdata_trips WHERE reference_date = $1`, date); err != nil {
		return fmt.Errorf("delete transdata trips: %w", err)
	}
	query := `INSERT INTO transdata_trips (` + transdataColumns + `) VALUES (:id, :reference_date, :source_id, :line_code, :line_name, :service_number, :direction, :scheduled_start, :actual_start, :scheduled_end, :actual_end, :driver_name, :driver_badge, :collector_name, :collector_badge, :vehicle_prefix, :synced_at)`
	for start := 0; start < len(trips); start += insertChunk {
		end := min(start+insertChunk, len(trips))
		if _, err = sqlx.NamedExecContext(ctx, tx, query, trips[start:end]); err != nil {
			return fmt.Errorf("insert transdata trips: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace transdata trips: %w", err)
	}
	return nil
}

// ReplaceGlobus swaps the Globus trips of a date in one transaction. Overlays are keyed by the
// deterministic trip id and therefore survive the swap.
func (r *TripRepository) ReplaceGlobus(ctx context.Context, date time.Time, trips []models.GlobusTrip) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace globus trips: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM globus_trips WHERE reference_date = $1`, date); err != nil {
		return fmt.Errorf("delete globus trips: %w", err)
	}
	query := `INSERT INTO globus_trips (` + globusColumns + `) VALUES (:id, :reference_date, :source_id, :line_code, :line_name, :service_number, :direction, :sector, :scheduled_start, :scheduled_end, :driver_name, :driver_badge, :collector_name, :collector_badge, :vehicle_prefix, :synced_at)`
	for start := 0; start < len(trips); start += insertChunk {
		end := min(start+insertChunk, len(trips))
		if _, err = sqlx.NamedExecContext(ctx, tx, query, trips[start:end]); err != nil {
			return fmt.Errorf("insert globus trips: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace globus trips: %w", err)
	}
	return nil
}
