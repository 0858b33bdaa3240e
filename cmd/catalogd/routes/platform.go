package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/datapulse/catalog/cmd/catalogd/container"
	"github.com/datapulse/catalog/cmd/catalogd/handlers"
)

// RegisterPlatformRoutes registers all platform-related routes
func RegisterPlatformRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewPlatformHandler(c)

	platforms := e.Group("/api/v1/platforms")
	{
		platforms.POST("", h.CreatePlatform)        // POST /api/v1/platforms
		platforms.GET("", h.ListPlatforms)          // GET /api/v1/platforms
		platforms.GET("/:id", h.GetPlatform)        // GET /api/v1/platforms/:id
		platforms.POST("/:id/sync", h.SyncPlatform) // POST /api/v1/platforms/:id/sync
		platforms.GET("/:id/history", h.GetSyncHistory)
	}
}
