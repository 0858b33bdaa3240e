package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/datapulse/catalog/cmd/catalogd/container"
)

// VersionHandler handles version-log requests
type VersionHandler struct {
	container *container.Container
}

// NewVersionHandler creates a new version handler
func NewVersionHandler(c *container.Container) *VersionHandler {
	return &VersionHandler{container: c}
}

// ListVersions pages the version log of a dataset, newest first
// GET /api/v1/datasets/:id/versions?page=1&page_size=20
func (h *VersionHandler) ListVersions(c echo.Context) error {
	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid dataset id")
	}

	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 20)
	if page < 1 || pageSize < 1 || pageSize > 200 {
		return badRequest(c, "invalid pagination")
	}

	versions, total, err := h.container.History.GetVersions(c.Request().Context(), datasetID, page, pageSize)
	if err != nil {
		return errJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"versions":  versions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetVersion retrieves one version row
// GET /api/v1/versions/:id
func (h *VersionHandler) GetVersion(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid version id")
	}

	version, err := h.container.Components.Stores.Versions.GetByID(c.Request().Context(), id)
	if err != nil {
		return errJSON(c, err)
	}
	return c.JSON(http.StatusOK, version)
}

// GetSnapshot reconstructs the raw snapshot a version was ingested from
// GET /api/v1/versions/:id/snapshot
func (h *VersionHandler) GetSnapshot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid version id")
	}

	tree, err := h.container.History.GetSnapshot(c.Request().Context(), id)
	if err != nil {
		return errJSON(c, err)
	}
	return c.JSON(http.StatusOK, tree)
}

func queryInt(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}
