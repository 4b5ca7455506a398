package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/leasingborsen/listing-reconciler/internal/http/handlers"
	httpMW "github.com/leasingborsen/listing-reconciler/internal/http/middleware"
	"github.com/leasingborsen/listing-reconciler/internal/observability"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	SessionHandler *httpH.SessionHandler
	ChangeHandler  *httpH.ChangeHandler
	ApplyHandler   *httpH.ApplyHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.Observe(cfg.Log, cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Sessions
	if cfg.SessionHandler != nil {
		api.POST("/sessions", cfg.SessionHandler.CreateSession)
		api.GET("/sessions", cfg.SessionHandler.ListSessions)
		api.GET("/sessions/:id", cfg.SessionHandler.GetSession)
		api.POST("/sessions/:id/records", cfg.SessionHandler.StageRecords)
		api.POST("/sessions/:id/classify", cfg.SessionHandler.Classify)
		api.GET("/sessions/:id/summary", cfg.SessionHandler.Summary)
	}

	// Review
	if cfg.ChangeHandler != nil {
		api.GET("/sessions/:id/changes", cfg.ChangeHandler.ListChanges)
		api.POST("/sessions/:id/changes/approve-all", cfg.ChangeHandler.ApproveAll)
		api.GET("/sessions/:id/changes/:changeId", cfg.ChangeHandler.GetChange)
		api.POST("/sessions/:id/changes/:changeId/approve", cfg.ChangeHandler.Approve)
		api.POST("/sessions/:id/changes/:changeId/reject", cfg.ChangeHandler.Reject)
		api.POST("/sessions/:id/changes/:changeId/reset", cfg.ChangeHandler.Reset)
	}

	// Apply
	if cfg.ApplyHandler != nil {
		api.POST("/sessions/:id/apply", cfg.ApplyHandler.Apply)
	}

	return r
}
