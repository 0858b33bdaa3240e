package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/datapulse/catalog/cmd/catalogd/container"
	"github.com/datapulse/catalog/common/llm"
	"github.com/datapulse/catalog/common/worker"
)

// DatasetHandler handles dataset-related requests
type DatasetHandler struct {
	container *container.Container
}

// NewDatasetHandler creates a new dataset handler
func NewDatasetHandler(c *container.Container) *DatasetHandler {
	return &DatasetHandler{container: c}
}

// ListDatasets lists the datasets of a platform
// GET /api/v1/platforms/:id/datasets
func (h *DatasetHandler) ListDatasets(c echo.Context) error {
	platformID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid platform id")
	}

	datasets, err := h.container.Components.Stores.Datasets.ListByPlatform(c.Request().Context(), platformID)
	if err != nil {
		return errJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"datasets": datasets,
	})
}

// GetDataset retrieves a dataset by id
// GET /api/v1/datasets/:id
func (h *DatasetHandler) GetDataset(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid dataset id")
	}

	dataset, err := h.container.Components.Stores.Datasets.GetByID(c.Request().Context(), id)
	if err != nil {
		return errJSON(c, err)
	}
	return c.JSON(http.StatusOK, dataset)
}

// EnqueueIngest schedules an ingest of one upstream dataset. The task rides
// the shared Redis list in PROD and goes straight to the local pool
// otherwise.
// POST /api/v1/platforms/:id/datasets/:dataset_id/ingest
func (h *DatasetHandler) EnqueueIngest(c echo.Context) error {
	platformID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid platform id")
	}
	datasetID := c.Param("dataset_id")
	if datasetID == "" {
		return badRequest(c, "dataset id is required")
	}

	ctx := c.Request().Context()
	if _, err := h.container.Components.Stores.Platforms.GetByID(ctx, platformID); err != nil {
		return errJSON(c, err)
	}

	task := &worker.Task{PlatformID: platformID, DatasetID: datasetID}
	if err := h.container.EnqueueTask(ctx, task); err != nil {
		return errJSON(c, err)
	}

	return c.JSON(http.StatusAccepted, map[string]any{
		"platform_id": platformID,
		"dataset_id":  datasetID,
		"status":      "queued",
	})
}

// EvaluateDataset scores the metadata quality of the latest snapshot
// POST /api/v1/datasets/:id/evaluate
func (h *DatasetHandler) EvaluateDataset(c echo.Context) error {
	if h.container.Evaluator == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"error": "metadata evaluation is not configured",
		})
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid dataset id")
	}

	ctx := c.Request().Context()
	last, err := h.container.History.GetLastVersion(ctx, id)
	if err != nil {
		return errJSON(c, err)
	}

	tree, err := h.container.History.GetSnapshot(ctx, last.ID)
	if err != nil {
		return errJSON(c, err)
	}

	evaluation, err := h.container.Evaluator.EvaluateMetadata(ctx, &llm.Request{
		Dataset: tree,
	})
	if err != nil {
		return errJSON(c, err)
	}
	return c.JSON(http.StatusOK, evaluation)
}
