package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/datapulse/catalog/cmd/catalogd/container"
	"github.com/datapulse/catalog/cmd/catalogd/handlers"
)

// RegisterDatasetRoutes registers all dataset-related routes
func RegisterDatasetRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewDatasetHandler(c)

	e.GET("/api/v1/platforms/:id/datasets", h.ListDatasets)
	e.POST("/api/v1/platforms/:id/datasets/:dataset_id/ingest", h.EnqueueIngest)

	datasets := e.Group("/api/v1/datasets")
	{
		datasets.GET("/:id", h.GetDataset)            // GET /api/v1/datasets/:id
		datasets.POST("/:id/evaluate", h.EvaluateDataset) // POST /api/v1/datasets/:id/evaluate
	}
}
