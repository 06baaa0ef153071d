package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/newstagger/internal/api/handler"
	"github.com/timmy/newstagger/internal/api/middleware"
	"github.com/timmy/newstagger/internal/config"
	"github.com/timmy/newstagger/internal/logger"
	"github.com/timmy/newstagger/internal/storage"
)

// Dependencies are the backends served by the router. Nil members disable
// their routes.
type Dependencies struct {
	Jobs         handler.JobReader
	Rows         handler.RowReader
	Exports      storage.ObjectStorage
	ExportPrefix string
	Runner       handler.BatchRunner
	Location     *time.Location
	Checks       map[string]handler.Pinger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps Dependencies, cfg config.ServerConfig, log *logger.Logger) (*gin.Engine, *handler.AdminHandler) {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(deps.Checks)
	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	if deps.Jobs != nil {
		jobHandler := handler.NewJobHandler(deps.Jobs)
		v1.GET("/jobs", jobHandler.ListJobs)
		v1.GET("/jobs/:id", jobHandler.GetJob)
	}
	if deps.Rows != nil {
		rowHandler := handler.NewRowHandler(deps.Rows)
		v1.GET("/rows", rowHandler.ListRows)
	}
	if deps.Exports != nil {
		exportHandler := handler.NewExportHandler(deps.Exports, deps.ExportPrefix)
		v1.GET("/exports/:date", exportHandler.Download)
	}

	var adminHandler *handler.AdminHandler
	if deps.Runner != nil {
		adminHandler = handler.NewAdminHandler(deps.Runner, deps.Location)
		admin := v1.Group("/admin")
		admin.POST("/batch", adminHandler.TriggerBatch)
		admin.GET("/batch/status", adminHandler.GetBatchStatus)
	}

	return r, adminHandler
}
