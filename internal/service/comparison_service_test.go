package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/trip-control-api/internal/dto"
	"github.com/noah-isme/trip-control-api/internal/models"
	"github.com/noah-isme/trip-control-api/internal/repository"
	"github.com/noah-isme/trip-control-api/pkg/civil"
	appErrors "github.com/noah-isme/trip-control-api/pkg/errors"
	"github.com/noah-isme/trip-control-api/pkg/lock"
)

type tripReaderStub struct {
	transdata []models.TransdataTrip
	globus    []models.GlobusTrip
	err       error
}

func (s *tripReaderStub) ListTransdataByDate(ctx context.Context, date time.Time) ([]models.TransdataTrip, error) {
	return s.transdata, s.err
}

func (s *tripReaderStub) ListGlobusByDate(ctx context.Context, date time.Time) ([]models.GlobusTrip, error) {
	return s.globus, s.err
}

type comparisonStoreStub struct {
	mu          sync.Mutex
	generations map[string][]models.TripComparison
	runs        []models.ComparisonRun
	replaceErr  error
	entered     chan struct{}
	release     chan struct{}
	latestCalls int
	listFilter  models.ComparisonFilter
	runFilter   models.RunHistoryFilter
}

func newComparisonStoreStub() *comparisonStoreStub {
	return &comparisonStoreStub{generations: map[string][]models.TripComparison{}}
}

func (s *comparisonStoreStub) ReplaceRun(ctx context.Context, date time.Time, rows []models.TripComparison, run *models.ComparisonRun) error {
	if s.entered != nil {
		s.entered <- struct{}{}
		<-s.release
	}
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[date.Format(civil.DateLayout)] = rows
	s.runs = append(s.runs, *run)
	return nil
}

func (s *comparisonStoreStub) List(ctx context.Context, filter models.ComparisonFilter) ([]models.ComparisonRow, int, error) {
	s.listFilter = filter
	return nil, 0, nil
}

func (s *comparisonStoreStub) LatestRun(ctx context.Context, date time.Time) (*models.ComparisonRun, error) {
	s.latestCalls++
	if len(s.runs) == 0 {
		return nil, sql.ErrNoRows
	}
	run := s.runs[len(s.runs)-1]
	return &run, nil
}

func (s *comparisonStoreStub) ListRuns(ctx context.Context, filter models.RunHistoryFilter) ([]models.ComparisonRun, int, error) {
	s.runFilter = filter
	return s.runs, len(s.runs), nil
}

func reconciliationFixture(t *testing.T) *tripReaderStub {
	t.Helper()
	zone := civil.MustLoad("America/Sao_Paulo")
	date, err := zone.ParseDate("2025-06-10")
	require.NoError(t, err)
	at := func(clock string) *time.Time {
		ts, err := zone.ParseTimestamp(date, clock)
		require.NoError(t, err)
		return ts
	}
	return &tripReaderStub{
		transdata: []models.TransdataTrip{
			{ID: "a1", SourceID: "1", LineCode: "101", ServiceNumber: "12", Direction: "IDA", ScheduledStart: at("08:00")},
			{ID: "a2", SourceID: "2", LineCode: "101", ServiceNumber: "12", Direction: "VOLTA", ScheduledStart: at("09:00")},
			{ID: "a3", SourceID: "3", LineCode: "202", ServiceNumber: "4", Direction: "IDA", ScheduledStart: at("10:00")},
		},
		globus: []models.GlobusTrip{
			{ID: "b1", SourceID: "1", LineCode: "101", ServiceNumber: "012", Direction: models.DirectionOutbound, ScheduledStart: at("08:03")},
			{ID: "b2", SourceID: "2", LineCode: "101", ServiceNumber: "12", Direction: models.DirectionReturn, ScheduledStart: at("09:20")},
			{ID: "b3", SourceID: "3", LineCode: "303", ServiceNumber: "1", Direction: models.DirectionOutbound, ScheduledStart: at("11:00")},
		},
	}
}

func newComparisonFixture(trips *tripReaderStub, store *comparisonStoreStub, locker lock.Locker, cache *CacheService) *ComparisonService {
	return NewComparisonService(trips, store, locker, cache, NewMetricsService(), civil.MustLoad("America/Sao_Paulo"), nil, ComparisonConfig{
		Tolerance: 5 * time.Minute,
		Timeout:   time.Minute,
	})
}

var testExecutor = models.Editor{Name: "Ana Analista", Email: "ana@example.com"}

func TestRunPersistsConsistentGeneration(t *testing.T) {
	store := newComparisonStoreStub()
	svc := newComparisonFixture(reconciliationFixture(t), store, lock.NewMemory(), nil)

	result, err := svc.Run(context.Background(), "2025-06-10", testExecutor)
	require.NoError(t, err)
	require.False(t, result.NoData)
	require.NotNil(t, result.Run)

	run := result.Run
	assert.Equal(t, "2025-06-10", result.ReferenceDate)
	assert.Equal(t, "ana@example.com", run.ExecutedBy)
	assert.True(t, run.Consistent())
	assert.Equal(t, 4, run.Total)
	assert.Equal(t, 1, run.Compatible)
	assert.Equal(t, 1, run.TimeDivergent)
	assert.Equal(t, 1, run.TransdataOnly)
	assert.Equal(t, 1, run.GlobusOnly)
	assert.Equal(t, "25.00", run.CompatibilityPercent.String())
	assert.Equal(t, 3, run.LinesAnalyzed)

	rows := store.generations["2025-06-10"]
	require.Len(t, rows, 4)
	for _, row := range rows {
		assert.Equal(t, run.ID, row.RunID)
		assert.True(t, row.TransdataTripID != nil || row.GlobusTripID != nil)
	}
}

func TestRunIsIdempotentForUnchangedInputs(t *testing.T) {
	store := newComparisonStoreStub()
	svc := newComparisonFixture(reconciliationFixture(t), store, lock.NewMemory(), nil)

	first, err := svc.Run(context.Background(), "2025-06-10", testExecutor)
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), "2025-06-10", testExecutor)
	require.NoError(t, err)

	assert.Equal(t, first.Run.Total, second.Run.Total)
	assert.Equal(t, first.Run.Compatible, second.Run.Compatible)
	assert.Equal(t, first.Run.CompatibilityPercent.String(), second.Run.CompatibilityPercent.String())
	assert.Len(t, store.generations["2025-06-10"], second.Run.Total)
	assert.Len(t, store.runs, 2)
	for _, row := range store.generations["2025-06-10"] {
		assert.Equal(t, second.Run.ID, row.RunID)
	}
}

func TestRunWithoutTripsReportsNoData(t *testing.T) {
	store := newComparisonStoreStub()
	svc := newComparisonFixture(&tripReaderStub{}, store, lock.NewMemory(), nil)

	result, err := svc.Run(context.Background(), "2025-06-10", testExecutor)
	require.NoError(t, err)
	assert.True(t, result.NoData)
	assert.Nil(t, result.Run)
	assert.Empty(t, store.runs)
}

func TestRunRejectsInvalidDate(t *testing.T) {
	svc := newComparisonFixture(&tripReaderStub{}, newComparisonStoreStub(), lock.NewMemory(), nil)

	_, err := svc.Run(context.Background(), "10/06/2025", testExecutor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, "data", appErrors.FromError(err).Details[0].Field)
}

func TestConcurrentRunsForSameDateConflict(t *testing.T) {
	store := newComparisonStoreStub()
	store.entered = make(chan struct{})
	store.release = make(chan struct{})
	svc := newComparisonFixture(reconciliationFixture(t), store, lock.NewMemory(), nil)

	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Run(context.Background(), "2025-06-10", testExecutor)
		firstErr <- err
	}()
	<-store.entered

	_, err := svc.Run(context.Background(), "2025-06-10", testExecutor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrRunInProgress))
	assert.True(t, appErrors.IsRetryable(err))

	close(store.release)
	require.NoError(t, <-firstErr)
	assert.Len(t, store.runs, 1)
}

func TestRunMapsAdvisoryLockToConflict(t *testing.T) {
	store := newComparisonStoreStub()
	store.replaceErr = repository.ErrRunLocked
	svc := newComparisonFixture(reconciliationFixture(t), store, lock.NewMemory(), nil)

	_, err := svc.Run(context.Background(), "2025-06-10", testExecutor)
	assert.True(t, errors.Is(err, appErrors.ErrRunInProgress))
}

func TestRunStorageFailureIsInternal(t *testing.T) {
	store := newComparisonStoreStub()
	store.replaceErr = errors.New("disk full")
	svc := newComparisonFixture(reconciliationFixture(t), store, lock.NewMemory(), nil)

	_, err := svc.Run(context.Background(), "2025-06-10", testExecutor)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))

	// the lock is released after a failure
	store.replaceErr = nil
	_, err = svc.Run(context.Background(), "2025-06-10", testExecutor)
	assert.NoError(t, err)
}

func TestListComparisonsValidatesAndClamps(t *testing.T) {
	store := newComparisonStoreStub()
	svc := newComparisonFixture(&tripReaderStub{}, store, lock.NewMemory(), nil)

	_, err := svc.ListComparisons(context.Background(), dto.ComparisonListQuery{Date: "2025-06-10", Status: "quase"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	flag := false
	result, err := svc.ListComparisons(context.Background(), dto.ComparisonListQuery{
		Date:           "2025-06-10",
		Status:         "Divergente",
		LineCode:       " 101a ",
		TimeCompatible: &flag,
		Limit:          5000,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Equal(t, models.StatusDivergent, store.listFilter.Status)
	assert.Equal(t, "101A", store.listFilter.LineCode)
	assert.Equal(t, maxComparisonLimit, store.listFilter.PageSize)
	assert.Equal(t, 1, store.listFilter.Page)
	require.NotNil(t, store.listFilter.TimeCompatible)
	assert.False(t, *store.listFilter.TimeCompatible)
}

func TestStatisticsCachedUntilNextRun(t *testing.T) {
	store := newComparisonStoreStub()
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)
	svc := newComparisonFixture(reconciliationFixture(t), store, lock.NewMemory(), cache)

	stats, hit, err := svc.Statistics(context.Background(), "2025-06-10")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, stats.Run)

	_, err = svc.Run(context.Background(), "2025-06-10", testExecutor)
	require.NoError(t, err)

	stats, hit, err = svc.Statistics(context.Background(), "2025-06-10")
	require.NoError(t, err)
	assert.False(t, hit)
	require.NotNil(t, stats.Run)
	assert.Equal(t, 4, stats.Run.Total)

	stats, hit, err = svc.Statistics(context.Background(), "2025-06-10")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "25.00", stats.Run.CompatibilityPercent.String())
	assert.Equal(t, 2, store.latestCalls)
}

func TestRunInvalidatesStatisticsAroundReplace(t *testing.T) {
	repo := newMemoryCacheRepo()
	store := newComparisonStoreStub()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	svc := newComparisonFixture(reconciliationFixture(t), store, lock.NewMemory(), cache)

	_, err := svc.Run(context.Background(), "2025-06-10", testExecutor)
	require.NoError(t, err)
	assert.Equal(t, []string{"comparison:stats:2025-06-10", "comparison:stats:2025-06-10"}, repo.deleted)

	_, err = svc.ListComparisons(context.Background(), dto.ComparisonListQuery{Date: "2025-06-10"})
	require.NoError(t, err)
	assert.Equal(t, 2, testutil.CollectAndCount(svc.metrics.dbQueryDuration))
}

func TestRunSurvivesFailedInvalidationAndCountsIt(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.deleteErr = errors.New("redis down")
	metrics := NewMetricsService()
	cache := NewCacheService(repo, metrics, time.Minute, nil, true)
	store := newComparisonStoreStub()
	svc := newComparisonFixture(reconciliationFixture(t), store, lock.NewMemory(), cache)

	result, err := svc.Run(context.Background(), "2025-06-10", testExecutor)
	require.NoError(t, err)
	require.NotNil(t, result.Run)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.cacheInvalidateFailures))
}

func TestHistoryValidatesRange(t *testing.T) {
	store := newComparisonStoreStub()
	svc := newComparisonFixture(&tripReaderStub{}, store, lock.NewMemory(), nil)

	_, err := svc.History(context.Background(), dto.RunHistoryQuery{DateFrom: "2025-06-10", DateTo: "2025-06-01"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	result, err := svc.History(context.Background(), dto.RunHistoryQuery{DateFrom: "2025-06-01", ExecutedBy: " ana@example.com ", Limit: 999})
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Equal(t, maxHistoryLimit, store.runFilter.PageSize)
	assert.Equal(t, "ana@example.com", store.runFilter.ExecutedBy)
	require.NotNil(t, store.runFilter.DateFrom)
	assert.Equal(t, "2025-06-01", store.runFilter.DateFrom.Format(civil.DateLayout))
}
