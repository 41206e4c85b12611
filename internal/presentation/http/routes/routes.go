// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/AtRiskMedia/campaigns-go/internal/application/container"
	"github.com/AtRiskMedia/campaigns-go/internal/presentation/http/handlers"
	"github.com/AtRiskMedia/campaigns-go/internal/presentation/http/middleware"
	"github.com/AtRiskMedia/campaigns-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	// Initialize handlers
	campaignHandlers := handlers.NewCampaignHandlers(container.CampaignService, container.Logger, container.PerfTracker)
	readerHandlers := handlers.NewReaderHandlers(container.ReaderService, container.Logger, container.PerfTracker)
	segmentHandlers := handlers.NewSegmentHandlers(container.SegmentService, container.Logger)
	authHandlers := handlers.NewAuthHandlers(container.AuthService, config.AdminTokenTTL, container.Logger)
	healthHandlers := handlers.NewHealthHandlers(container.DB, container.Logger, container.PerfTracker)

	r.GET("/health", healthHandlers.GetHealth)

	api := r.Group("/api/v1")
	api.Use(middleware.AdminContext(container.AuthService, container.Logger))
	{
		api.GET("/stats", middleware.RequireAdmin(), healthHandlers.GetStats)

		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandlers.PostLogin)
			auth.POST("/logout", authHandlers.PostLogout)
		}

		campaignsGroup := api.Group("/campaigns")
		{
			campaignsGroup.POST("/evaluate", campaignHandlers.PostEvaluate)
		}

		readers := api.Group("/readers")
		{
			readers.POST("/:clientId/events", readerHandlers.PostEvents)
			readers.GET("/:clientId/segment", readerHandlers.GetSegment)
			readers.GET("/:clientId", middleware.RequireAdmin(), readerHandlers.GetReader)
			readers.GET("/:clientId/linked", middleware.RequireAdmin(), readerHandlers.GetLinked)
		}

		segments := api.Group("/segments")
		{
			segments.GET("", segmentHandlers.GetAllSegments)
			segments.GET("/:id", segmentHandlers.GetSegment)

			segments.POST("", middleware.RequireAdmin(), segmentHandlers.CreateSegment)
			segments.POST("/reorder", middleware.RequireAdmin(), segmentHandlers.ReorderSegments)
			segments.PUT("/:id", middleware.RequireAdmin(), segmentHandlers.UpdateSegment)
			segments.DELETE("/:id", middleware.RequireAdmin(), segmentHandlers.DeleteSegment)
		}
	}

	return r
}
