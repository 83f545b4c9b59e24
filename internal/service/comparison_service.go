package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/trip-control-api/internal/dto"
	"github.com/noah-isme/trip-control-api/internal/models"
	"github.com/noah-isme/trip-control-api/internal/repository"
	"github.com/noah-isme/trip-control-api/pkg/civil"
	appErrors "github.com/noah-isme/trip-control-api/pkg/errors"
	"github.com/noah-isme/trip-control-api/pkg/lock"
)

const (
	defaultComparisonLimit = 150
	maxComparisonLimit     = 1000
	defaultHistoryLimit    = 20
	maxHistoryLimit        = 200
)

type comparisonTripReader interface {
	ListTransdataByDate(ctx context.Context, date time.Time) ([]models.TransdataTrip, error)
	ListGlobusByDate(ctx context.Context, date time.Time) ([]models.GlobusTrip, error)
}

type comparisonStore interface {
	ReplaceRun(ctx context.Context, date time.Time, rows []models.TripComparison, run *models.ComparisonRun) error
	List(ctx context.Context, filter models.ComparisonFilter) ([]models.ComparisonRow, int, error)
	LatestRun(ctx context.Context, date time.Time) (*models.ComparisonRun, error)
	ListRuns(ctx context.Context, filter models.RunHistoryFilter) ([]models.ComparisonRun, int, error)
}

// ComparisonConfig tunes reconciliation runs and reads.
type ComparisonConfig struct {
	Tolerance    time.Duration
	Timeout      time.Duration
	LockTTL      time.Duration
	CacheTTL     time.Duration
	DefaultLimit int
}

// ComparisonService runs the Transdata x Globus reconciliation and serves its results.
type ComparisonService struct {
	trips   comparisonTripReader
	store   comparisonStore
	locker  lock.Locker
	cache   *CacheService
	metrics *MetricsService
	zone    *civil.Zone
	logger  *zap.Logger
	config  ComparisonConfig
	now     func() time.Time
}

// NewComparisonService wires a ComparisonService. A nil locker falls back to an in-process lock.
func NewComparisonService(trips comparisonTripReader, store comparisonStore, locker lock.Locker, cache *CacheService, metrics *MetricsService, zone *civil.Zone, logger *zap.Logger, cfg ComparisonConfig) *ComparisonService {
	if locker == nil {
		locker = lock.NewMemory()
	}
	if zone == nil {
		zone = civil.UTC()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Tolerance < 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.Timeout + time.Minute
	}
	if cfg.DefaultLimit <= 0 || cfg.DefaultLimit > maxComparisonLimit {
		cfg.DefaultLimit = defaultComparisonLimit
	}
	return &ComparisonService{
		trips:   trips,
		store:   store,
		locker:  locker,
		cache:   cache,
		metrics: metrics,
		zone:    zone,
		logger:  logger,
		config:  cfg,
		now:     time.Now,
	}
}

func statsCacheKey(date string) string {
	return "comparison:stats:" + date
}

// Run reconciles the trips of one reference date and replaces the stored generation.
// Concurrent runs for the same date are rejected with RECONCILIATION_IN_PROGRESS.
func (s *ComparisonService) Run(ctx context.Context, rawDate string, executor models.Editor) (*dto.RunComparisonResult, error) {
	date, err := s.parseDate(rawDate)
	if err != nil {
		return nil, err
	}
	dateKey := s.zone.FormatDate(date)
	started := s.now()
	logger := s.logger.With(zap.String("reference_date", dateKey), zap.String("executed_by", executor.Email))

	handle, err := s.locker.TryLock(ctx, "reconciliation:"+dateKey, s.config.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			s.metrics.ObserveReconciliation("conflict", time.Since(started), nil)
			return nil, appErrors.Clone(appErrors.ErrRunInProgress, fmt.Sprintf("a reconciliation for %s is already running", dateKey))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to acquire reconciliation lock")
	}
	defer func() {
		if releaseErr := handle.Release(context.Background()); releaseErr != nil {
			logger.Warn("failed to release reconciliation lock", zap.Error(releaseErr))
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	transdata, err := s.trips.ListTransdataByDate(runCtx, date)
	if err != nil {
		return nil, s.runFailure(logger, started, err, "failed to load transdata trips")
	}
	globus, err := s.trips.ListGlobusByDate(runCtx, date)
	if err != nil {
		return nil, s.runFailure(logger, started, err, "failed to load globus trips")
	}

	if len(transdata) == 0 && len(globus) == 0 {
		s.metrics.ObserveReconciliation("no_data", time.Since(started), nil)
		logger.Info("reconciliation skipped, no trips for date")
		return &dto.RunComparisonResult{
			ReferenceDate: dateKey,
			NoData:        true,
			Message:       "no trips synced for this date",
		}, nil
	}

	result := Reconcile(transdata, globus, MatchOptions{Tolerance: s.config.Tolerance})

	runID := uuid.NewString()
	createdAt := s.now().UTC()
	rows := make([]models.TripComparison, 0, len(result.Pairs))
	for _, pair := range result.Pairs {
		row := models.TripComparison{
			ID:                    uuid.NewString(),
			RunID:                 runID,
			ReferenceDate:         date,
			LineCode:              pair.LineCode,
			ServiceCompatible:     pair.ServiceCompatible,
			DirectionCompatible:   pair.DirectionCompatible,
			TimeCompatible:        pair.TimeCompatible,
			Status:                pair.Status,
			TimeDifferenceMinutes: pair.TimeDifferenceMinutes,
			CreatedAt:             createdAt,
		}
		if pair.Transdata != nil {
			id := pair.Transdata.ID
			row.TransdataTripID = &id
		}
		if pair.Globus != nil {
			id := pair.Globus.ID
			row.GlobusTripID = &id
		}
		rows = append(rows, row)
	}

	counts := result.Counts
	run := &models.ComparisonRun{
		ID:                   runID,
		ReferenceDate:        date,
		Total:                counts.Total,
		Compatible:           counts.Compatible,
		Divergent:            counts.Divergent,
		TimeDivergent:        counts.TimeDivergent,
		TransdataOnly:        counts.TransdataOnly,
		GlobusOnly:           counts.GlobusOnly,
		CompatibilityPercent: counts.CompatibilityPercent,
		LinesAnalyzed:        counts.LinesAnalyzed,
		ExecutedBy:           executor.Email,
		CreatedAt:            createdAt,
	}
	run.ProcessingMS = s.now().Sub(started).Milliseconds()

	// invalidated on both sides of the replace
	s.invalidateStats(ctx, logger, dateKey)
	if err := s.metrics.TimeDBQuery("comparison_replace_run", func() error {
		return s.store.ReplaceRun(runCtx, date, rows, run)
	}); err != nil {
		if errors.Is(err, repository.ErrRunLocked) {
			s.metrics.ObserveReconciliation("conflict", time.Since(started), nil)
			return nil, appErrors.Clone(appErrors.ErrRunInProgress, fmt.Sprintf("a reconciliation for %s is already running", dateKey))
		}
		return nil, s.runFailure(logger, started, err, "failed to store reconciliation")
	}

	s.invalidateStats(ctx, logger, dateKey)
	s.metrics.ObserveReconciliation("ok", time.Since(started), &counts)
	logger.Info("reconciliation completed",
		zap.String("run_id", runID),
		zap.Int("total", counts.Total),
		zap.Int("compatible", counts.Compatible),
		zap.String("compatibility_percent", counts.CompatibilityPercent.String()),
		zap.Int64("processing_ms", run.ProcessingMS),
	)

	return &dto.RunComparisonResult{ReferenceDate: dateKey, Run: run}, nil
}

func (s *ComparisonService) invalidateStats(ctx context.Context, logger *zap.Logger, dateKey string) {
	if err := s.cache.Invalidate(ctx, statsCacheKey(dateKey)); err != nil {
		logger.Warn("statistics cache not invalidated, stale summary may be served until ttl", zap.Error(err))
	}
}

func (s *ComparisonService) runFailure(logger *zap.Logger, started time.Time, err error, message string) error {
	s.metrics.ObserveReconciliation("error", time.Since(started), nil)
	logger.Error(message, zap.Error(err))
	if errors.Is(err, context.DeadlineExceeded) {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "reconciliation timed out")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// ListComparisons returns a filtered page of the stored comparison rows.
func (s *ComparisonService) ListComparisons(ctx context.Context, query dto.ComparisonListQuery) (*dto.ComparisonListResult, error) {
	filter, err := s.comparisonFilter(query)
	if err != nil {
		return nil, err
	}

	var (
		rows  []models.ComparisonRow
		total int
	)
	err = s.metrics.TimeDBQuery("comparison_list", func() (listErr error) {
		rows, total, listErr = s.store.List(ctx, filter)
		return listErr
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comparisons")
	}
	if rows == nil {
		rows = []models.ComparisonRow{}
	}
	return &dto.ComparisonListResult{
		Items:      rows,
		Pagination: models.NewPagination(filter.Page, filter.PageSize, total),
	}, nil
}

func (s *ComparisonService) comparisonFilter(query dto.ComparisonListQuery) (models.ComparisonFilter, error) {
	date, err := s.parseDate(query.Date)
	if err != nil {
		return models.ComparisonFilter{}, err
	}
	status := models.ComparisonStatus(strings.ToLower(strings.TrimSpace(query.Status)))
	if status != "" && !status.Valid() {
		return models.ComparisonFilter{}, appErrors.Validation("invalid comparison status",
			appErrors.FieldError{Field: "status", Message: "unknown status " + query.Status})
	}
	page, limit := clampPage(query.Page, query.Limit, s.config.DefaultLimit, maxComparisonLimit)
	return models.ComparisonFilter{
		ReferenceDate:       date,
		Status:              status,
		LineCode:            NormalizeLine(query.LineCode),
		Sector:              strings.TrimSpace(query.Sector),
		ServiceCompatible:   query.ServiceCompatible,
		DirectionCompatible: query.DirectionCompatible,
		TimeCompatible:      query.TimeCompatible,
		Page:                page,
		PageSize:            limit,
	}, nil
}

// Statistics returns the latest run summary of a date, served from cache when possible.
// The boolean reports a cache hit.
func (s *ComparisonService) Statistics(ctx context.Context, rawDate string) (*dto.ComparisonStatistics, bool, error) {
	date, err := s.parseDate(rawDate)
	if err != nil {
		return nil, false, err
	}
	dateKey := s.zone.FormatDate(date)

	stats, hit, err := Remember(ctx, s.cache, statsCacheKey(dateKey), s.config.CacheTTL, func(ctx context.Context) (*dto.ComparisonStatistics, error) {
		run, err := s.store.LatestRun(ctx, date)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return &dto.ComparisonStatistics{ReferenceDate: dateKey, Run: run}, nil
	})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comparison statistics")
	}
	return stats, hit, nil
}

// History pages through the run summaries, newest reference date first.
func (s *ComparisonService) History(ctx context.Context, query dto.RunHistoryQuery) (*dto.RunHistoryResult, error) {
	var details []appErrors.FieldError
	filter := models.RunHistoryFilter{ExecutedBy: strings.TrimSpace(query.ExecutedBy)}
	if query.DateFrom != "" {
		from, err := s.zone.ParseDate(query.DateFrom)
		if err != nil {
			details = append(details, appErrors.FieldError{Field: "dataInicio", Message: "expected YYYY-MM-DD"})
		} else {
			from = civil.StorageDate(from)
			filter.DateFrom = &from
		}
	}
	if query.DateTo != "" {
		to, err := s.zone.ParseDate(query.DateTo)
		if err != nil {
			details = append(details, appErrors.FieldError{Field: "dataFim", Message: "expected YYYY-MM-DD"})
		} else {
			to = civil.StorageDate(to)
			filter.DateTo = &to
		}
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		details = append(details, appErrors.FieldError{Field: "dataFim", Message: "must not precede dataInicio"})
	}
	if len(details) > 0 {
		return nil, appErrors.Validation("invalid history filter", details...)
	}
	filter.Page, filter.PageSize = clampPage(query.Page, query.Limit, defaultHistoryLimit, maxHistoryLimit)

	runs, total, err := s.store.ListRuns(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comparison runs")
	}
	if runs == nil {
		runs = []models.ComparisonRun{}
	}
	return &dto.RunHistoryResult{
		Items:      runs,
		Pagination: models.NewPagination(filter.Page, filter.PageSize, total),
	}, nil
}

func (s *ComparisonService) parseDate(raw string) (time.Time, error) {
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

// clampPage normalises 1-based paging parameters.
func clampPage(page, limit, fallback, ceiling int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = fallback
	}
	if limit > ceiling {
		limit = ceiling
	}
	return page, limit
}
