package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/datapulse/catalog/common/db"
	"github.com/datapulse/catalog/common/models"
)

const datasetColumns = `
	id, buid, slug, platform_id, page, publisher,
	created, modified, published, restricted, is_deleted,
	last_sync, last_sync_status, last_version_timestamp, linked_dataset_id
`

// DatasetRepository handles database operations for datasets
type DatasetRepository struct {
	db *db.DB
}

// NewDatasetRepository creates a new dataset repository
func NewDatasetRepository(db *db.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// Create inserts a new dataset
func (r *DatasetRepository) Create(ctx context.Context, d *models.Dataset) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}

	query := `
		INSERT INTO datasets (` + datasetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.Q(ctx).Exec(ctx, query,
		d.ID, d.BUID, d.Slug, d.PlatformID, d.Page, d.Publisher,
		d.Created, d.Modified, d.Published, d.Restricted, d.IsDeleted,
		d.LastSync, d.LastSyncStatus, d.LastVersionTimestamp, d.LinkedDatasetID,
	)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}
	return nil
}

// GetByID retrieves a dataset by id
func (r *DatasetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	return r.scanOne(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE id = $1`, id)
}

// GetBySlug retrieves a dataset by (platform_id, slug)
func (r *DatasetRepository) GetBySlug(ctx context.Context, platformID uuid.UUID, slug string) (*models.Dataset, error) {
	return r.scanOne(ctx,
		`SELECT `+datasetColumns+` FROM datasets WHERE platform_id = $1 AND slug = $2`,
		platformID, slug)
}

// GetByBUID retrieves a dataset by (platform_id, buid)
func (r *DatasetRepository) GetByBUID(ctx context.Context, platformID uuid.UUID, buid string) (*models.Dataset, error) {
	return r.scanOne(ctx,
		`SELECT `+datasetColumns+` FROM datasets WHERE platform_id = $1 AND buid = $2`,
		platformID, buid)
}

// Update rewrites the mutable dataset attributes
func (r *DatasetRepository) Update(ctx context.Context, d *models.Dataset) error {
	query := `
		UPDATE datasets SET
			buid = $2, slug = $3, page = $4, publisher = $5,
			created = $6, modified = $7, published = $8, restricted = $9,
			is_deleted = $10, last_sync = $11, last_sync_status = $12,
			last_version_timestamp = $13, linked_dataset_id = $14
		WHERE id = $1
	`

	tag, err := r.db.Q(ctx).Exec(ctx, query,
		d.ID, d.BUID, d.Slug, d.Page, d.Publisher,
		d.Created, d.Modified, d.Published, d.Restricted,
		d.IsDeleted, d.LastSync, d.LastSyncStatus,
		d.LastVersionTimestamp, d.LinkedDatasetID,
	)
	if err != nil {
		return fmt.Errorf("failed to update dataset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrDatasetNotFound
	}
	return nil
}

// UpdateSyncStatus records a sync outcome without touching anything else.
// Used as the best-effort write after a failed ingest.
func (r *DatasetRepository) UpdateSyncStatus(ctx context.Context, id uuid.UUID, status models.SyncStatus, at time.Time) error {
	tag, err := r.db.Q(ctx).Exec(ctx,
		`UPDATE datasets SET last_sync = $2, last_sync_status = $3 WHERE id = $1`,
		id, at, status,
	)
	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrDatasetNotFound
	}
	return nil
}

// SetLink points linked_dataset_id at another dataset (or clears it)
func (r *DatasetRepository) SetLink(ctx context.Context, id uuid.UUID, linkedID *uuid.UUID) error {
	tag, err := r.db.Q(ctx).Exec(ctx,
		`UPDATE datasets SET linked_dataset_id = $2 WHERE id = $1`,
		id, linkedID,
	)
	if err != nil {
		return fmt.Errorf("failed to set dataset link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrDatasetNotFound
	}
	return nil
}

// ListByPlatform lists all datasets of a platform
func (r *DatasetRepository) ListByPlatform(ctx context.Context, platformID uuid.UUID) ([]*models.Dataset, error) {
	rows, err := r.db.Q(ctx).Query(ctx,
		`SELECT `+datasetColumns+` FROM datasets WHERE platform_id = $1 ORDER BY slug`,
		platformID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	return scanDatasets(rows)
}

// FindBySlugExcludingPlatform finds link candidates: non-deleted datasets
// sharing a slug on other platforms, earliest created first.
func (r *DatasetRepository) FindBySlugExcludingPlatform(ctx context.Context, slug string, platformID uuid.UUID) ([]*models.Dataset, error) {
	rows, err := r.db.Q(ctx).Query(ctx,
		`SELECT `+datasetColumns+`
		 FROM datasets
		 WHERE slug = $1 AND platform_id != $2 AND NOT is_deleted
		 ORDER BY created ASC`,
		slug, platformID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find datasets by slug: %w", err)
	}
	defer rows.Close()

	return scanDatasets(rows)
}

func (r *DatasetRepository) scanOne(ctx context.Context, query string, args ...any) (*models.Dataset, error) {
	d := &models.Dataset{}
	err := r.db.Q(ctx).QueryRow(ctx, query, args...).Scan(
		&d.ID, &d.BUID, &d.Slug, &d.PlatformID, &d.Page, &d.Publisher,
		&d.Created, &d.Modified, &d.Published, &d.Restricted, &d.IsDeleted,
		&d.LastSync, &d.LastSyncStatus, &d.LastVersionTimestamp, &d.LinkedDatasetID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrDatasetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}
	return d, nil
}

func scanDatasets(rows pgx.Rows) ([]*models.Dataset, error) {
	var datasets []*models.Dataset
	for rows.Next() {
		d := &models.Dataset{}
		err := rows.Scan(
			&d.ID, &d.BUID, &d.Slug, &d.PlatformID, &d.Page, &d.Publisher,
			&d.Created, &d.Modified, &d.Published, &d.Restricted, &d.IsDeleted,
			&d.LastSync, &d.LastSyncStatus, &d.LastVersionTimestamp, &d.LinkedDatasetID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		datasets = append(datasets, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating datasets: %w", err)
	}
	return datasets, nil
}
