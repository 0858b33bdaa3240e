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

const platformColumns = `
	id, name, slug, type, url, organization_id, key,
	datasets_count, last_sync, last_sync_status, created_at
`

// PlatformRepository handles database operations for platforms
type PlatformRepository struct {
	db *db.DB
}

// NewPlatformRepository creates a new platform repository
func NewPlatformRepository(db *db.DB) *PlatformRepository {
	return &PlatformRepository{db: db}
}

// Create inserts a new platform
func (r *PlatformRepository) Create(ctx context.Context, p *models.Platform) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.LastSyncStatus == "" {
		p.LastSyncStatus = models.SyncUnknown
	}

	query := `
		INSERT INTO platforms (` + platformColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Q(ctx).Exec(ctx, query,
		p.ID, p.Name, p.Slug, p.Type, p.URL, p.OrganizationID, p.Key,
		p.DatasetsCount, p.LastSync, p.LastSyncStatus, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create platform: %w", err)
	}
	return nil
}

// GetByID retrieves a platform
func (r *PlatformRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Platform, error) {
	p := &models.Platform{}
	err := r.db.Q(ctx).QueryRow(ctx,
		`SELECT `+platformColumns+` FROM platforms WHERE id = $1`, id,
	).Scan(
		&p.ID, &p.Name, &p.Slug, &p.Type, &p.URL, &p.OrganizationID, &p.Key,
		&p.DatasetsCount, &p.LastSync, &p.LastSyncStatus, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrPlatformNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get platform: %w", err)
	}
	return p, nil
}

// List lists all platforms
func (r *PlatformRepository) List(ctx context.Context) ([]*models.Platform, error) {
	rows, err := r.db.Q(ctx).Query(ctx,
		`SELECT `+platformColumns+` FROM platforms ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list platforms: %w", err)
	}
	defer rows.Close()

	var platforms []*models.Platform
	for rows.Next() {
		p := &models.Platform{}
		err := rows.Scan(
			&p.ID, &p.Name, &p.Slug, &p.Type, &p.URL, &p.OrganizationID, &p.Key,
			&p.DatasetsCount, &p.LastSync, &p.LastSyncStatus, &p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan platform: %w", err)
		}
		platforms = append(platforms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating platforms: %w", err)
	}
	return platforms, nil
}

// Update rewrites the mutable platform attributes
func (r *PlatformRepository) Update(ctx context.Context, p *models.Platform) error {
	query := `
		UPDATE platforms SET
			name = $2, slug = $3, type = $4, url = $5, organization_id = $6,
			key = $7, datasets_count = $8, last_sync = $9, last_sync_status = $10
		WHERE id = $1
	`

	tag, err := r.db.Q(ctx).Exec(ctx, query,
		p.ID, p.Name, p.Slug, p.Type, p.URL, p.OrganizationID,
		p.Key, p.DatasetsCount, p.LastSync, p.LastSyncStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to update platform: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrPlatformNotFound
	}
	return nil
}
