// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docseq/internal/core/numerator"
	"docseq/internal/infrastructure/http/v1/handlers"
	"docseq/internal/infrastructure/http/v1/middleware"
	"docseq/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// DB is pinged by the readiness probe.
	DB handlers.Pinger

	Logger *logger.Logger

	Numerator numerator.Generator
	Documents handlers.DocumentService

	// AuditHistory enables GET /documents/:id/history when set.
	AuditHistory handlers.AuditHistory

	// Metrics is served on /metrics when set.
	Metrics http.Handler

	Version string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// order matters: recovery wraps everything, errors are rendered innermost
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	base := handlers.NewBaseHandler()
	v1 := router.Group("/api/v1")
	{
		handlers.NewNumberingHandler(base, cfg.Numerator).RegisterRoutes(v1.Group("/numbering"))
		handlers.NewDocumentHandler(base, cfg.Documents, cfg.AuditHistory).RegisterRoutes(v1.Group("/documents"))
		v1.POST("/summary", handlers.NewSummaryHandler(base).Compute)
	}

	return router
}
