package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/datapulse/catalog/cmd/catalogd/container"
	"github.com/datapulse/catalog/common/models"
)

// PlatformHandler handles platform-related requests
type PlatformHandler struct {
	container *container.Container
}

// NewPlatformHandler creates a new platform handler
func NewPlatformHandler(c *container.Container) *PlatformHandler {
	return &PlatformHandler{container: c}
}

type createPlatformRequest struct {
	Name           string `json:"name"`
	Slug           string `json:"slug"`
	Type           string `json:"type"`
	URL            string `json:"url"`
	OrganizationID string `json:"organization_id"`
	Key            string `json:"key"`
}

// CreatePlatform registers a new monitored platform
// POST /api/v1/platforms
func (h *PlatformHandler) CreatePlatform(c echo.Context) error {
	req := &createPlatformRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, "malformed request body")
	}
	if req.Name == "" || req.Slug == "" || req.URL == "" {
		return badRequest(c, "name, slug and url are required")
	}

	platformType, err := models.ParsePlatformType(req.Type)
	if err != nil {
		return errJSON(c, err)
	}

	key := req.Key
	if key == "" {
		switch platformType {
		case models.PlatformOpendatasoft:
			key = h.container.Components.Config.Platforms.Opendatasoft
		case models.PlatformDataGouvFr:
			key = h.container.Components.Config.Platforms.DataGouvFr
		}
	}

	platform := &models.Platform{
		ID:             uuid.New(),
		Name:           req.Name,
		Slug:           req.Slug,
		Type:           platformType,
		URL:            req.URL,
		OrganizationID: req.OrganizationID,
		Key:            key,
		LastSyncStatus: models.SyncUnknown,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.container.Components.Stores.Platforms.Create(c.Request().Context(), platform); err != nil {
		return errJSON(c, err)
	}

	return c.JSON(http.StatusCreated, platform)
}

// ListPlatforms lists all platforms
// GET /api/v1/platforms
func (h *PlatformHandler) ListPlatforms(c echo.Context) error {
	list, err := h.container.Components.Stores.Platforms.List(c.Request().Context())
	if err != nil {
		return errJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"platforms": list,
	})
}

// GetPlatform retrieves a platform by id
// GET /api/v1/platforms/:id
func (h *PlatformHandler) GetPlatform(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid platform id")
	}

	platform, err := h.container.Components.Stores.Platforms.GetByID(c.Request().Context(), id)
	if err != nil {
		return errJSON(c, err)
	}
	return c.JSON(http.StatusOK, platform)
}

// SyncPlatform runs a full platform sync and returns the recorded history.
// A Redis SETNX lock serializes syncs of the same platform across instances.
// POST /api/v1/platforms/:id/sync
func (h *PlatformHandler) SyncPlatform(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid platform id")
	}

	ctx := c.Request().Context()
	if rdb := h.container.Components.Redis; rdb != nil {
		lockKey := "sync:platform:" + id.String()
		acquired, err := rdb.SetNX(ctx, lockKey, "1", time.Hour)
		if err != nil {
			return errJSON(c, err)
		}
		if !acquired {
			return c.JSON(http.StatusConflict, map[string]any{
				"error": "a sync of this platform is already running",
			})
		}
		defer func() {
			if err := rdb.Delete(ctx, lockKey); err != nil {
				h.container.Components.Logger.Warn("failed to release sync lock",
					"key", lockKey, "error", err)
			}
		}()
	}

	history, err := h.container.SyncService.SyncPlatform(ctx, id)
	if err != nil && history == nil {
		return errJSON(c, err)
	}
	return c.JSON(http.StatusOK, history)
}

// GetSyncHistory lists recent sync runs of a platform
// GET /api/v1/platforms/:id/history?limit=20
func (h *PlatformHandler) GetSyncHistory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid platform id")
	}

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return badRequest(c, "invalid limit")
		}
		limit = parsed
	}

	history, err := h.container.Components.Stores.SyncHistory.ListByPlatform(c.Request().Context(), id, limit)
	if err != nil {
		return errJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"history": history,
	})
}
