package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/trip-control-api/internal/dto"
	"github.com/noah-isme/trip-control-api/internal/models"
	"github.com/noah-isme/trip-control-api/internal/source"
	"github.com/noah-isme/trip-control-api/pkg/civil"
	appErrors "github.com/noah-isme/trip-control-api/pkg/errors"
	"github.com/noah-isme/trip-control-api/pkg/jobs"
	"github.com/noah-isme/trip-control-api/pkg/storage"
)

type tripWriterStub struct {
	mu        sync.Mutex
	transdata map[string][]models.TransdataTrip
	globus    map[string][]models.GlobusTrip
	err       error
}

func newTripWriterStub() *tripWriterStub {
	return &tripWriterStub{transdata: map[string][]models.TransdataTrip{}, globus: map[string][]models.GlobusTrip{}}
}

func (s *tripWriterStub) ReplaceTransdata(_ context.Context, date time.Time, trips []models.TransdataTrip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.transdata[date.Format(civil.DateLayout)] = trips
	return nil
}

func (s *tripWriterStub) ReplaceGlobus(_ context.Context, date time.Time, trips []models.GlobusTrip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.globus[date.Format(civil.DateLayout)] = trips
	return nil
}

func (s *tripWriterStub) globusFor(date string) []models.GlobusTrip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.globus[date]
}

type fetcherStub struct {
	body  []byte
	err   error
	calls int
}

func (f *fetcherStub) Fetch(_ context.Context, _ source.Endpoint, _ string) ([]byte, error) {
	f.calls++
	return f.body, f.err
}

func newSyncFixture(t *testing.T, fetcher payloadFetcher) (*TripSyncService, *tripWriterStub, *storage.LocalStorage) {
	t.Helper()
	archive, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	writer := newTripWriterStub()
	svc := NewTripSyncService(writer, fetcher, archive, nil, NewMetricsService(), civil.MustLoad("America/Sao_Paulo"), nil, TripSyncConfig{
		Transdata: source.Endpoint{URL: "http://transdata.local/viagens", RecordsPath: "data"},
		Globus:    source.Endpoint{URL: "http://globus.local/viagens", RecordsPath: "data"},
	})
	return svc, writer, archive
}

func TestImportTransdataNormalisesAndDerivesIDs(t *testing.T) {
	svc, writer, _ := newSyncFixture(t, &fetcherStub{})

	result, err := svc.ImportTransdata(context.Background(), "2025-06-10", []dto.TransdataTripInput{
		{SourceID: "991", LineCode: " 101a ", ServiceNumber: "012", Direction: "true", ScheduledStart: "08:00", ActualStart: "2025-06-10 08:04:00"},
		{SourceID: "992", LineCode: "101A", ServiceNumber: "13", Direction: "V", ScheduledStart: "24:30"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, "transdata", result.Source)
	assert.Equal(t, "2025-06-10", result.ReferenceDate)

	stored := writer.transdata["2025-06-10"]
	require.Len(t, stored, 2)
	assert.Equal(t, "101A", stored[0].LineCode)
	assert.Equal(t, "012", stored[0].ServiceNumber)
	assert.Equal(t, "true", stored[0].Direction)

	date := civil.StorageDate(time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, TripID(models.SourceTransdata, date, "991"), stored[0].ID)
	assert.NotEqual(t, TripID(models.SourceGlobus, date, "991"), stored[0].ID)

	loc := civil.MustLoad("America/Sao_Paulo").Location()
	require.NotNil(t, stored[0].ScheduledStart)
	assert.Equal(t, "08:00", stored[0].ScheduledStart.In(loc).Format(civil.ClockLayout))
	require.NotNil(t, stored[0].ActualStart)
	assert.Equal(t, "08:04", stored[0].ActualStart.In(loc).Format(civil.ClockLayout))
	require.NotNil(t, stored[1].ScheduledStart)
	assert.Equal(t, 11, stored[1].ScheduledStart.In(loc).Day())
	assert.Nil(t, stored[1].ActualStart)
}

func TestImportIDsAreStableAcrossResync(t *testing.T) {
	svc, writer, _ := newSyncFixture(t, &fetcherStub{})
	rows := []dto.GlobusTripInput{{SourceID: "77", LineCode: "202", Direction: "IDA", ScheduledStart: "06:15"}}

	_, err := svc.ImportGlobus(context.Background(), "2025-06-10", rows)
	require.NoError(t, err)
	first := writer.globusFor("2025-06-10")[0].ID

	_, err = svc.ImportGlobus(context.Background(), "2025-06-10", rows)
	require.NoError(t, err)
	assert.Equal(t, first, writer.globusFor("2025-06-10")[0].ID)
}

func TestImportGlobusRejectsInvalidRows(t *testing.T) {
	svc, writer, _ := newSyncFixture(t, &fetcherStub{})

	_, err := svc.ImportGlobus(context.Background(), "2025-06-10", []dto.GlobusTripInput{
		{SourceID: "1", LineCode: "202", Direction: "IDA"},
		{SourceID: "", LineCode: "202", Direction: "SIDEWAYS", ScheduledStart: "soon"},
		{SourceID: "1", LineCode: "202", Direction: "VOLTA"},
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	fields := make([]string, 0, len(appErr.Details))
	for _, d := range appErr.Details {
		fields = append(fields, d.Field)
	}
	assert.Contains(t, fields, "viagens[1].idOrigem")
	assert.Contains(t, fields, "viagens[1].sentido")
	assert.Contains(t, fields, "viagens[1].inicioPrevisto")
	assert.Contains(t, fields, "viagens[2].idOrigem")
	assert.Empty(t, writer.globusFor("2025-06-10"), "nothing is stored when any row is invalid")
}

func TestImportRequiresValidDate(t *testing.T) {
	svc, _, _ := newSyncFixture(t, &fetcherStub{})
	_, err := svc.ImportTransdata(context.Background(), "10/06/2025", nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestImportStorageFailureIsInternal(t *testing.T) {
	svc, writer, _ := newSyncFixture(t, &fetcherStub{})
	writer.err = errors.New("connection reset")

	_, err := svc.ImportTransdata(context.Background(), "2025-06-10", []dto.TransdataTripInput{{SourceID: "1", LineCode: "101"}})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestHandleJobFetchesArchivesAndImports(t *testing.T) {
	fetcher := &fetcherStub{body: []byte(`{"data":[{"id":"5","linha":"303","sentido":"C","horaSaida":"05:40"}]}`)}
	svc, writer, archive := newSyncFixture(t, fetcher)

	err := svc.HandleJob(context.Background(), jobs.Job{ID: "job-1", Type: JobTypeTripPull, Payload: pullPayload{Source: models.SourceGlobus, Date: "2025-06-10"}})
	require.NoError(t, err)

	stored := writer.globusFor("2025-06-10")
	require.Len(t, stored, 1)
	assert.Equal(t, models.DirectionCircular, stored[0].Direction)

	files, err := archive.List("globus", "2025-06-10")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestHandleJobSurfacesFetchErrors(t *testing.T) {
	svc, _, _ := newSyncFixture(t, &fetcherStub{err: errors.New("upstream down")})
	err := svc.HandleJob(context.Background(), jobs.Job{ID: "job-2", Payload: pullPayload{Source: models.SourceTransdata, Date: "2025-06-10"}})
	assert.EqualError(t, err, "upstream down")
}

func TestRequestPullRunsThroughQueue(t *testing.T) {
	fetcher := &fetcherStub{body: []byte(`{"data":[{"id":"9","linha":"101","sentido":"IDA"}]}`)}
	svc, writer, _ := newSyncFixture(t, fetcher)

	_, err := svc.RequestPull(context.Background(), "globus", "2025-06-10")
	assert.ErrorIs(t, err, appErrors.ErrUnavailable, "no queue attached yet")

	queue := jobs.NewQueue("trip-sync-test", svc.HandleJob, jobs.QueueConfig{Workers: 1, RetryDelay: time.Millisecond})
	queue.Start(context.Background())
	defer queue.Stop()
	svc.UseQueue(queue)

	ack, err := svc.RequestPull(context.Background(), " GLOBUS ", "2025-06-10")
	require.NoError(t, err)
	assert.Equal(t, "globus", ack.Source)
	assert.Equal(t, string(jobs.StateQueued), ack.State)

	require.Eventually(t, func() bool {
		st, err := svc.JobStatus(context.Background(), ack.JobID)
		return err == nil && st.State == jobs.StateDone
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, writer.globusFor("2025-06-10"), 1)

	_, err = svc.JobStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestRequestPullValidatesSource(t *testing.T) {
	svc, _, _ := newSyncFixture(t, &fetcherStub{})
	_, err := svc.RequestPull(context.Background(), "gtfs", "2025-06-10")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
