package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/datapulse/catalog/common/logger"
	"github.com/datapulse/catalog/common/models"
	"github.com/datapulse/catalog/common/platforms"
	"github.com/datapulse/catalog/common/repository"
)

// ConnectorFactory returns the connector for a platform type. Wired to
// platforms.New in production; tests inject fixtures.
type ConnectorFactory func(t models.PlatformType) (platforms.Connector, error)

// SyncService runs platform-level syncs: list the full catalog, ingest
// every dataset, soft-delete the ones that vanished, and record the run
// in the sync history.
type SyncService struct {
	stores      *repository.Stores
	coordinator *Coordinator
	connectors  ConnectorFactory
	log         *logger.Logger
	now         func() time.Time
}

// NewSyncService creates a platform sync service.
func NewSyncService(stores *repository.Stores, coordinator *Coordinator, connectors ConnectorFactory, log *logger.Logger) *SyncService {
	return &SyncService{
		stores:      stores,
		coordinator: coordinator,
		connectors:  connectors,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SyncPlatform syncs one platform end to end and returns the recorded
// history row.
func (s *SyncService) SyncPlatform(ctx context.Context, platformID uuid.UUID) (*models.PlatformSyncHistory, error) {
	platform, err := s.stores.Platforms.GetByID(ctx, platformID)
	if err != nil {
		return nil, err
	}

	connector, err := s.connectors(platform.Type)
	if err != nil {
		return nil, err
	}

	history := &models.PlatformSyncHistory{
		ID:         uuid.New(),
		PlatformID: platform.ID,
		StartedAt:  s.now(),
		Status:     models.SyncUnknown,
	}
	if err := s.stores.SyncHistory.Create(ctx, history); err != nil {
		return nil, err
	}

	listing, err := connector.List(ctx, platform.URL, platform.Key)
	if err != nil {
		s.finish(ctx, platform, history, models.SyncFailed, err)
		return history, fmt.Errorf("list platform catalog: %w", err)
	}

	visible := make(map[string]struct{}, len(listing))
	for _, raw := range listing {
		dto, err := connector.Map(raw)
		if err != nil {
			history.DatasetsFailed++
			s.log.Warn("skipping unmappable payload", "platform", platform.Slug, "error", err)
			continue
		}
		visible[dto.BUID] = struct{}{}

		result, err := s.coordinator.Ingest(ctx, platform, dto)
		if err != nil {
			history.DatasetsFailed++
			continue
		}
		if result.Outcome != OutcomeFailed {
			history.DatasetsSynced++
		}
	}

	// the listing above is complete by contract, so absence means deletion
	deleted, alreadyGone, err := s.coordinator.MarkAbsent(ctx, platform.ID, visible, false)
	history.DatasetsDeleted = len(deleted)
	if len(alreadyGone) > 0 {
		s.log.Debug("datasets still absent from listing",
			"platform", platform.Slug, "count", len(alreadyGone))
	}
	if err != nil {
		s.finish(ctx, platform, history, models.SyncFailed, err)
		return history, err
	}

	status := models.SyncSuccess
	if history.DatasetsFailed > 0 && history.DatasetsSynced == 0 {
		status = models.SyncFailed
	}
	s.finish(ctx, platform, history, status, nil)
	return history, nil
}

// finish closes the history row and rolls the platform's sync columns.
// Best-effort: bookkeeping failures are logged, never propagated.
func (s *SyncService) finish(ctx context.Context, platform *models.Platform, history *models.PlatformSyncHistory, status models.SyncStatus, cause error) {
	now := s.now()
	history.FinishedAt = &now
	history.Status = status
	if cause != nil {
		history.Error = cause.Error()
	}
	if err := s.stores.SyncHistory.Update(ctx, history); err != nil {
		s.log.Error("failed to finalize sync history", "platform", platform.Slug, "error", err)
	}

	platform.LastSync = &now
	platform.LastSyncStatus = status
	platform.DatasetsCount = history.DatasetsSynced
	if err := s.stores.Platforms.Update(ctx, platform); err != nil {
		s.log.Error("failed to update platform sync status", "platform", platform.Slug, "error", err)
	}

	s.log.Info("platform sync finished",
		"platform", platform.Slug,
		"status", string(status),
		"synced", history.DatasetsSynced,
		"failed", history.DatasetsFailed,
		"deleted", history.DatasetsDeleted)
}
