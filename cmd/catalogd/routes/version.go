package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/datapulse/catalog/cmd/catalogd/container"
	"github.com/datapulse/catalog/cmd/catalogd/handlers"
)

// RegisterVersionRoutes registers all version-log routes
func RegisterVersionRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewVersionHandler(c)

	e.GET("/api/v1/datasets/:id/versions", h.ListVersions)

	versions := e.Group("/api/v1/versions")
	{
		versions.GET("/:id", h.GetVersion)           // GET /api/v1/versions/:id
		versions.GET("/:id/snapshot", h.GetSnapshot) // GET /api/v1/versions/:id/snapshot
	}
}
