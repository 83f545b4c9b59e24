package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/trip-control-api/internal/dto"
	internalmiddleware "github.com/noah-isme/trip-control-api/internal/middleware"
	"github.com/noah-isme/trip-control-api/internal/models"
	"github.com/noah-isme/trip-control-api/internal/service"
	appErrors "github.com/noah-isme/trip-control-api/pkg/errors"
	"github.com/noah-isme/trip-control-api/pkg/jobs"
)

type authServiceStub struct{}

func (authServiceStub) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if req.Password != "secret123" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.LoginResponse{AccessToken: "token", User: models.UserInfo{Email: req.Email}}, nil
}

type comparisonServiceStub struct {
	runErr   error
	executor models.Editor
	query    dto.ComparisonListQuery
	statsHit bool
}

func (s *comparisonServiceStub) Run(_ context.Context, rawDate string, executor models.Editor) (*dto.RunComparisonResult, error) {
	s.executor = executor
	if s.runErr != nil {
		return nil, s.runErr
	}
	return &dto.RunComparisonResult{ReferenceDate: rawDate, Run: &models.ComparisonRun{Total: 4, CompatibilityPercent: models.NewPercent(1, 4)}}, nil
}

func (s *comparisonServiceStub) ListComparisons(_ context.Context, query dto.ComparisonListQuery) (*dto.ComparisonListResult, error) {
	s.query = query
	return &dto.ComparisonListResult{
		Items:      []models.ComparisonRow{{TripComparison: models.TripComparison{LineCode: "101", Status: models.StatusCompatible}}},
		Pagination: models.NewPagination(1, 150, 1),
	}, nil
}

func (s *comparisonServiceStub) Statistics(_ context.Context, rawDate string) (*dto.ComparisonStatistics, bool, error) {
	return &dto.ComparisonStatistics{ReferenceDate: rawDate}, s.statsHit, nil
}

func (s *comparisonServiceStub) History(_ context.Context, _ dto.RunHistoryQuery) (*dto.RunHistoryResult, error) {
	return &dto.RunHistoryResult{Pagination: models.NewPagination(1, 20, 0)}, nil
}

type exporterStub struct{}

func (exporterStub) Export(_ context.Context, query dto.ExportQuery) (*dto.ExportFile, error) {
	return &dto.ExportFile{Filename: "comparacao-" + query.Date + ".csv", ContentType: "text/csv", Payload: []byte("Linha\n101\n")}, nil
}

type scheduleServiceStub struct {
	tripID string
	req    dto.SaveEditRequest
	editor models.Editor
}

func (s *scheduleServiceStub) ListSchedule(_ context.Context, _ dto.ScheduleListQuery) (*dto.ScheduleListResult, error) {
	return &dto.ScheduleListResult{Pagination: models.NewPagination(1, 150, 0)}, nil
}

func (s *scheduleServiceStub) SaveEdit(_ context.Context, tripID string, req dto.SaveEditRequest, editor models.Editor) (*dto.SaveEditResult, error) {
	s.tripID, s.req, s.editor = tripID, req, editor
	if tripID == "missing" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "trip not found")
	}
	return &dto.SaveEditResult{Propagated: 2, HistoryWritten: 3}, nil
}

func (s *scheduleServiceStub) SaveMany(_ context.Context, req dto.BatchEditRequest, _ models.Editor) (*dto.BatchEditResult, error) {
	return &dto.BatchEditResult{Saved: len(req.Items)}, nil
}

func (s *scheduleServiceStub) History(_ context.Context, _ string, _ dto.EditHistoryQuery) (*dto.EditHistoryResult, error) {
	return &dto.EditHistoryResult{Pagination: models.NewPagination(1, 50, 0)}, nil
}

type tripServiceStub struct {
	imported int
}

func (s *tripServiceStub) ImportTransdata(_ context.Context, rawDate string, rows []dto.TransdataTripInput) (*dto.ImportResult, error) {
	s.imported = len(rows)
	return &dto.ImportResult{Source: "transdata", ReferenceDate: rawDate, Inserted: len(rows)}, nil
}

func (s *tripServiceStub) ImportGlobus(_ context.Context, rawDate string, rows []dto.GlobusTripInput) (*dto.ImportResult, error) {
	s.imported = len(rows)
	return &dto.ImportResult{Source: "globus", ReferenceDate: rawDate, Inserted: len(rows)}, nil
}

func (s *tripServiceStub) RequestPull(_ context.Context, rawSource, rawDate string) (*dto.SyncRequestResult, error) {
	return &dto.SyncRequestResult{JobID: "job-1", Source: rawSource, ReferenceDate: rawDate, State: string(jobs.StateQueued)}, nil
}

func (s *tripServiceStub) JobStatus(_ context.Context, id string) (*jobs.Status, error) {
	if id != "job-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "sync job not found")
	}
	return &jobs.Status{ID: id, State: jobs.StateDone}, nil
}

type testDeps struct {
	comparisons *comparisonServiceStub
	schedule    *scheduleServiceStub
	trips       *tripServiceStub
}

func buildRouter(t *testing.T, checks map[string]ReadinessCheck) (*gin.Engine, testDeps) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	deps := testDeps{comparisons: &comparisonServiceStub{}, schedule: &scheduleServiceStub{}, trips: &tripServiceStub{}}

	router := gin.New()
	Routes{
		Auth:            NewAuthHandler(authServiceStub{}),
		Comparison:      NewComparisonHandler(deps.comparisons, exporterStub{}),
		ScheduleControl: NewScheduleControlHandler(deps.schedule),
		Trip:            NewTripHandler(deps.trips),
		Metrics:         NewMetricsHandler(service.NewMetricsService(), checks),
		Authenticate: func(c *gin.Context) {
			role := c.GetHeader("X-Test-Role")
			if role == "" {
				c.AbortWithStatus(http.StatusUnauthorized)
				return
			}
			c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", Email: "user@example.com", FullName: "Test User", Role: models.UserRole(role)})
			c.Next()
		},
	}.Register(router, "/api/v1")
	return router, deps
}

func perform(router *gin.Engine, method, path, role string, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestLoginRoute(t *testing.T) {
	router, _ := buildRouter(t, nil)

	w := perform(router, http.MethodPost, "/api/v1/auth/login", "", `{"email":"a@example.com","password":"secret123"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "token", decode(t, w)["data"].(map[string]interface{})["access_token"])

	w = perform(router, http.MethodPost, "/api/v1/auth/login", "", `{"email":"a@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = perform(router, http.MethodPost, "/api/v1/auth/login", "", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunComparisonRoles(t *testing.T) {
	router, deps := buildRouter(t, nil)

	w := perform(router, http.MethodPost, "/api/v1/comparacoes/executar?data=2025-06-10", string(models.RoleViewer), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = perform(router, http.MethodPost, "/api/v1/comparacoes/executar?data=2025-06-10", string(models.RoleAnalyst), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user@example.com", deps.comparisons.executor.Email)
	run := decode(t, w)["data"].(map[string]interface{})["execucao"].(map[string]interface{})
	assert.Equal(t, "25.00", run["percentualCompatibilidade"])

	w = perform(router, http.MethodPost, "/api/v1/comparacoes/executar?data=2025-06-10", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRunComparisonConflictIsRetryable(t *testing.T) {
	router, deps := buildRouter(t, nil)
	deps.comparisons.runErr = appErrors.Clone(appErrors.ErrRunInProgress, "")

	w := perform(router, http.MethodPost, "/api/v1/comparacoes/executar?data=2025-06-10", string(models.RoleAdmin), "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))
	assert.Equal(t, "RECONCILIATION_IN_PROGRESS", decode(t, w)["error"].(map[string]interface{})["code"])
}

func TestListComparisonsBindsFilters(t *testing.T) {
	router, deps := buildRouter(t, nil)

	w := perform(router, http.MethodGet, "/api/v1/comparacoes?data=2025-06-10&status=divergente&linha=101&horarioCompativel=false&page=2&limit=10", string(models.RoleViewer), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "divergente", deps.comparisons.query.Status)
	require.NotNil(t, deps.comparisons.query.TimeCompatible)
	assert.False(t, *deps.comparisons.query.TimeCompatible)
	assert.Nil(t, deps.comparisons.query.ServiceCompatible)
	assert.Equal(t, 2, deps.comparisons.query.Page)

	body := decode(t, w)
	assert.NotNil(t, body["pagination"])
	assert.Equal(t, "2025-06-10", body["meta"].(map[string]interface{})["reference_date"])

	w = perform(router, http.MethodGet, "/api/v1/comparacoes?data=2025-06-10&page=abc", string(models.RoleViewer), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatisticsReportsCacheHit(t *testing.T) {
	router, deps := buildRouter(t, nil)
	deps.comparisons.statsHit = true

	w := perform(router, http.MethodGet, "/api/v1/comparacoes/estatisticas?data=2025-06-10", string(models.RoleViewer), "")
	require.Equal(t, http.StatusOK, w.Code)
	meta := decode(t, w)["meta"].(map[string]interface{})
	assert.Equal(t, true, meta["cache_hit"])
	assert.Equal(t, "2025-06-10", meta["reference_date"])
	assert.Contains(t, meta, "processing_time_ms")
}

func TestExportStreamsAttachment(t *testing.T) {
	router, _ := buildRouter(t, nil)

	w := perform(router, http.MethodGet, "/api/v1/comparacoes/exportar?data=2025-06-10&formato=csv", string(models.RoleViewer), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "comparacao-2025-06-10.csv")
	assert.Equal(t, "Linha\n101\n", w.Body.String())
}

func TestSaveEditRoute(t *testing.T) {
	router, deps := buildRouter(t, nil)

	w := perform(router, http.MethodPatch, "/api/v1/controle-horarios/trip-1", string(models.RoleAnalyst), `{"campo":"vehicle","valor":"1234"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = perform(router, http.MethodPatch, "/api/v1/controle-horarios/trip-1", string(models.RoleOperator), `{"campo":"vehicle","valor":"1234","propagar":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "trip-1", deps.schedule.tripID)
	assert.Equal(t, "Test User", deps.schedule.editor.Name)
	require.NotNil(t, deps.schedule.req.Propagate)
	assert.False(t, *deps.schedule.req.Propagate)

	w = perform(router, http.MethodPatch, "/api/v1/controle-horarios/trip-1", string(models.RoleOperator), `{"valor":"1234"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "campo is required")

	w = perform(router, http.MethodPatch, "/api/v1/controle-horarios/missing", string(models.RoleOperator), `{"campo":"vehicle","valor":"1"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSaveManyAndHistoryRoutes(t *testing.T) {
	router, _ := buildRouter(t, nil)

	w := perform(router, http.MethodPost, "/api/v1/controle-horarios/lote", string(models.RoleOperator),
		`{"data":"2025-06-10","itens":[{"viagemId":"a","alteracoes":{"vehicle":"1"}},{"viagemId":"b","alteracoes":{"confirmed":true}}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["data"].(map[string]interface{})["salvos"])

	w = perform(router, http.MethodGet, "/api/v1/controle-horarios/trip-1/historico", string(models.RoleViewer), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTripRoutesAdminOnly(t *testing.T) {
	router, deps := buildRouter(t, nil)
	payload := `{"viagens":[{"idOrigem":991,"codigoLinha":"101","sentido":true}]}`

	w := perform(router, http.MethodPut, "/api/v1/viagens/transdata?data=2025-06-10", string(models.RoleOperator), payload)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = perform(router, http.MethodPut, "/api/v1/viagens/transdata?data=2025-06-10", string(models.RoleAdmin), payload)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, deps.trips.imported)

	w = perform(router, http.MethodPost, "/api/v1/viagens/globus/sincronizar?data=2025-06-10", string(models.RoleAdmin), "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "job-1", decode(t, w)["data"].(map[string]interface{})["jobId"])

	w = perform(router, http.MethodGet, "/api/v1/viagens/sincronizacoes/job-1", string(models.RoleAdmin), "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = perform(router, http.MethodGet, "/api/v1/viagens/sincronizacoes/other", string(models.RoleAdmin), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOpsEndpoints(t *testing.T) {
	router, _ := buildRouter(t, map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return nil },
	})
	assert.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/ready", "", "").Code)

	w := perform(router, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "goroutines_total")

	failing, _ := buildRouter(t, map[string]ReadinessCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	w = perform(failing, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
