package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/bridge-service/bridge_service/internal/api/handlers"
	"github.com/bridge-service/bridge_service/internal/api/middleware"
	"github.com/bridge-service/bridge_service/internal/domain/entities"
	"github.com/bridge-service/bridge_service/internal/infrastructure/di"
	"github.com/bridge-service/bridge_service/pkg/idempotency"
	"github.com/bridge-service/bridge_service/pkg/tracing"
)

// SetupRoutes configures all application routes
func SetupRoutes(container *di.Container) *gin.Engine {
	router := gin.New()

	// Global middleware - order matters
	router.Use(tracing.HTTPMiddleware())
	router.Use(middleware.RequestID())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.InputValidation())
	router.Use(middleware.Logger(container.Logger))
	router.Use(middleware.Recovery(container.Logger))
	router.Use(middleware.CORS(container.Config.Server.AllowedOrigins))
	router.Use(middleware.RateLimit(container.Config.Server.RateLimitPerMin))
	router.Use(middleware.SecurityHeaders())

	coreHandlers := handlers.NewCoreHandlers(container.DB, container.Logger)
	transferHandlers := handlers.NewTransferHandlers(
		container.GetTransferService(),
		container.Bus,
		entities.SigningCredential(container.Config.Signer.CredentialRef),
		container.Logger,
	)

	// Health checks (no auth required)
	router.GET("/health", coreHandlers.Health)
	router.GET("/ready", coreHandlers.Ready)
	router.GET("/live", coreHandlers.Live)
	router.GET("/version", coreHandlers.Version)
	router.GET("/metrics", coreHandlers.Metrics)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		transfers := v1.Group("/transfers")
		{
			transfers.POST("",
				idempotency.Middleware(container.IdempotencyRepo, container.ZapLog),
				transferHandlers.CreateTransfer)
			transfers.GET("/events", transferHandlers.StreamEvents)
			transfers.GET("/:id", transferHandlers.GetTransfer)
		}

		v1.GET("/attestations", transferHandlers.GetAttestation)
	}

	return router
}
