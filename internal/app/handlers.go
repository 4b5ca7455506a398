package app

import (
	"database/sql"

	"github.com/gin-gonic/gin"

	"github.com/leasingborsen/listing-reconciler/internal/http"
	httpH "github.com/leasingborsen/listing-reconciler/internal/http/handlers"
	httpMW "github.com/leasingborsen/listing-reconciler/internal/http/middleware"
	"github.com/leasingborsen/listing-reconciler/internal/observability"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
)

type Middleware struct {
	// Auth is nil when JWT_SECRET is empty.
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health  *httpH.HealthHandler
	Session *httpH.SessionHandler
	Change  *httpH.ChangeHandler
	Apply   *httpH.ApplyHandler
}

func wireHandlers(log *logger.Logger, sqlDB *sql.DB, services Services) Handlers {
	log.Info("Wiring handlers...")
	var pinger httpH.Pinger
	if sqlDB != nil {
		pinger = sqlDB
	}
	return Handlers{
		Health:  httpH.NewHealthHandler(pinger),
		Session: httpH.NewSessionHandler(log, services.Extraction),
		Change:  httpH.NewChangeHandler(log, services.Review),
		Apply:   httpH.NewApplyHandler(log, services.Apply),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	mw := Middleware{Auth: httpMW.NewAuthMiddleware(log, cfg.JWTSecret)}
	if mw.Auth == nil {
		log.Warn("JWT_SECRET empty; admin API runs without authentication")
	}
	return mw
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	otelService := ""
	if cfg.Otel.Enabled {
		otelService = serviceName
	}
	return http.NewRouter(http.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    otelService,
		CORSOrigins:    cfg.CORSOrigins,
		AuthMiddleware: middleware.Auth,
		SessionHandler: handlers.Session,
		ChangeHandler:  handlers.Change,
		ApplyHandler:   handlers.Apply,
		HealthHandler:  handlers.Health,
	})
}
