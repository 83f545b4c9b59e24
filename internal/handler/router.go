package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/trip-control-api/internal/middleware"
	"github.com/noah-isme/trip-control-api/internal/models"
)

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Auth            *AuthHandler
	Comparison      *ComparisonHandler
	ScheduleControl *ScheduleControlHandler
	Trip            *TripHandler
	Metrics         *MetricsHandler

	// Authenticate guards every non-public route.
	Authenticate gin.HandlerFunc
	AuditLogger  *zap.Logger
}

// Register mounts ops endpoints at the root and the API under prefix.
func (rt Routes) Register(r *gin.Engine, prefix string) {
	if rt.Metrics != nil {
		r.GET("/health", rt.Metrics.Health)
		r.GET("/ready", rt.Metrics.Ready)
		r.GET("/metrics", rt.Metrics.Prometheus)
	}

	api := r.Group(prefix)
	api.Use(middleware.WithResponseMeta())
	api.POST("/auth/login", rt.Auth.Login)

	secured := api.Group("")
	secured.Use(rt.Authenticate)
	secured.GET("/auth/me", rt.Auth.Me)

	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(rt.AuditLogger, action, resource)
	}

	comparisons := secured.Group("/comparacoes")
	comparisons.GET("", rt.Comparison.List)
	comparisons.GET("/estatisticas", rt.Comparison.Statistics)
	comparisons.GET("/historico", rt.Comparison.History)
	comparisons.GET("/exportar", rt.Comparison.Export)
	comparisons.POST("/executar", middleware.RequireRoles(models.RoleAnalyst), audit("run", "comparison"), rt.Comparison.Run)

	schedule := secured.Group("/controle-horarios")
	schedule.GET("", rt.ScheduleControl.List)
	schedule.POST("/lote", middleware.RequireRoles(models.RoleOperator), audit("batch_edit", "schedule"), rt.ScheduleControl.SaveMany)
	schedule.PATCH("/:id", middleware.RequireRoles(models.RoleOperator), audit("edit", "schedule"), rt.ScheduleControl.SaveEdit)
	schedule.GET("/:id/historico", rt.ScheduleControl.History)

	trips := secured.Group("/viagens", middleware.RequireRoles(models.RoleAdmin))
	trips.PUT("/transdata", audit("import", "transdata_trips"), rt.Trip.ImportTransdata)
	trips.PUT("/globus", audit("import", "globus_trips"), rt.Trip.ImportGlobus)
	trips.GET("/sincronizacoes/:id", rt.Trip.SyncStatus)
	trips.POST("/:fonte/sincronizar", audit("sync", "trips"), rt.Trip.RequestSync)
}
