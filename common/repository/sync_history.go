package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/datapulse/catalog/common/db"
	"github.com/datapulse/catalog/common/models"
)

// SyncHistoryRepository handles database operations for platform sync runs
type SyncHistoryRepository struct {
	db *db.DB
}

// NewSyncHistoryRepository creates a new sync history repository
func NewSyncHistoryRepository(db *db.DB) *SyncHistoryRepository {
	return &SyncHistoryRepository{db: db}
}

// Create inserts a new sync history row
func (r *SyncHistoryRepository) Create(ctx context.Context, h *models.PlatformSyncHistory) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}

	query := `
		INSERT INTO platform_sync_histories
			(id, platform_id, started_at, finished_at, status,
			 datasets_synced, datasets_failed, datasets_deleted, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Q(ctx).Exec(ctx, query,
		h.ID, h.PlatformID, h.StartedAt, h.FinishedAt, h.Status,
		h.DatasetsSynced, h.DatasetsFailed, h.DatasetsDeleted, h.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync history: %w", err)
	}
	return nil
}

// Update finalizes a sync history row
func (r *SyncHistoryRepository) Update(ctx context.Context, h *models.PlatformSyncHistory) error {
	query := `
		UPDATE platform_sync_histories SET
			finished_at = $2, status = $3, datasets_synced = $4,
			datasets_failed = $5, datasets_deleted = $6, error = $7
		WHERE id = $1
	`

	_, err := r.db.Q(ctx).Exec(ctx, query,
		h.ID, h.FinishedAt, h.Status,
		h.DatasetsSynced, h.DatasetsFailed, h.DatasetsDeleted, h.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to update sync history: %w", err)
	}
	return nil
}

// ListByPlatform lists past sync runs of a platform, newest first
func (r *SyncHistoryRepository) ListByPlatform(ctx context.Context, platformID uuid.UUID, limit int) ([]*models.PlatformSyncHistory, error) {
	if limit < 1 {
		limit = 20
	}

	rows, err := r.db.Q(ctx).Query(ctx,
		`SELECT id, platform_id, started_at, finished_at, status,
		        datasets_synced, datasets_failed, datasets_deleted, error
		 FROM platform_sync_histories
		 WHERE platform_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2`,
		platformID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync history: %w", err)
	}
	defer rows.Close()

	var histories []*models.PlatformSyncHistory
	for rows.Next() {
		h := &models.PlatformSyncHistory{}
		err := rows.Scan(
			&h.ID, &h.PlatformID, &h.StartedAt, &h.FinishedAt, &h.Status,
			&h.DatasetsSynced, &h.DatasetsFailed, &h.DatasetsDeleted, &h.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync history: %w", err)
		}
		histories = append(histories, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync history: %w", err)
	}
	return histories, nil
}
