package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"commute/internal/handler"
	"commute/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	TripHandler      *handler.TripHandler
	UserHandler      *handler.UserHandler
	WebSocketHandler *handler.WebSocketHandler
	IdempotencyStore middleware.ResponseStore
	NewRelicApp      *newrelic.Application
	Logger           *zap.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.IdempotencyStore, deps.Logger))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Trip routes.
		trips := v1.Group("/trips")
		{
			trips.POST("", deps.TripHandler.CreateTrip)
			trips.GET("/:id", deps.TripHandler.GetTrip)
			trips.POST("/:id/begin", deps.TripHandler.BeginMonitoring)
			trips.POST("/:id/watch", deps.TripHandler.RestartWatch)
			trips.POST("/:id/positions", deps.TripHandler.ReportPosition)
			trips.POST("/:id/position-errors", deps.TripHandler.ReportPositionError)
			trips.POST("/:id/cancel", deps.TripHandler.Cancel)
			trips.POST("/:id/ack", deps.TripHandler.Acknowledge)
			trips.GET("/:id/ws", deps.WebSocketHandler.Subscribe)
		}

		// User routes.
		users := v1.Group("/users")
		{
			users.GET("/:id/trips", deps.UserHandler.History)
			users.GET("/:id/profile", deps.UserHandler.GetProfile)
			users.PUT("/:id/profile", deps.UserHandler.UpdateProfile)
			users.GET("/:id/favorites", deps.UserHandler.ListFavorites)
			users.POST("/:id/favorites", deps.UserHandler.AddFavorite)
			users.DELETE("/:id/favorites/:fav", deps.UserHandler.RemoveFavorite)
			users.GET("/:id/draft", deps.UserHandler.GetDraft)
			users.DELETE("/:id/draft", deps.UserHandler.ClearDraft)
		}
	}

	return router
}
