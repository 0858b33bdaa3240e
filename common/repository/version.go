package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/datapulse/catalog/common/db"
	"github.com/datapulse/catalog/common/models"
)

const versionColumns = `
	id, dataset_id, timestamp, blob_id, checksum, title,
	downloads_count, api_calls_count, views_count, reuses_count,
	followers_count, popularity_score, diff, metadata_volatile, raw_snapshot
`

// VersionRepository handles database operations for the version log
type VersionRepository struct {
	db *db.DB
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(db *db.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// Append inserts a new version row
func (r *VersionRepository) Append(ctx context.Context, v *models.Version) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}

	query := `
		INSERT INTO dataset_versions (` + versionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.Q(ctx).Exec(ctx, query,
		v.ID, v.DatasetID, v.Timestamp, v.BlobID, v.Checksum, v.Title,
		v.DownloadsCount, v.APICallsCount, v.ViewsCount, v.ReusesCount,
		v.FollowersCount, v.PopularityScore, v.Diff, v.MetadataVolatile, v.RawSnapshot,
	)
	if err != nil {
		return fmt.Errorf("failed to append version: %w", err)
	}
	return nil
}

// List pages versions of a dataset, newest first
func (r *VersionRepository) List(ctx context.Context, datasetID uuid.UUID, page, pageSize int) ([]*models.Version, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var total int
	err := r.db.Q(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM dataset_versions WHERE dataset_id = $1`, datasetID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count versions: %w", err)
	}

	rows, err := r.db.Q(ctx).Query(ctx,
		`SELECT `+versionColumns+`
		 FROM dataset_versions
		 WHERE dataset_id = $1
		 ORDER BY timestamp DESC
		 LIMIT $2 OFFSET $3`,
		datasetID, pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.Version
	for rows.Next() {
		v := &models.Version{}
		if err := scanVersion(rows, v); err != nil {
			return nil, 0, err
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating versions: %w", err)
	}

	return versions, total, nil
}

// GetByID retrieves a single version
func (r *VersionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Version, error) {
	v := &models.Version{}
	row := r.db.Q(ctx).QueryRow(ctx,
		`SELECT `+versionColumns+` FROM dataset_versions WHERE id = $1`, id)
	if err := scanVersionRow(row, v); err != nil {
		return nil, err
	}
	return v, nil
}

// GetLast retrieves the most recent version of a dataset
func (r *VersionRepository) GetLast(ctx context.Context, datasetID uuid.UUID) (*models.Version, error) {
	v := &models.Version{}
	row := r.db.Q(ctx).QueryRow(ctx,
		`SELECT `+versionColumns+`
		 FROM dataset_versions
		 WHERE dataset_id = $1
		 ORDER BY timestamp DESC
		 LIMIT 1`, datasetID)
	if err := scanVersionRow(row, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Update rewrites a version row during bulk replay
func (r *VersionRepository) Update(ctx context.Context, v *models.Version) error {
	query := `
		UPDATE dataset_versions SET
			blob_id = $2, checksum = $3, title = $4,
			downloads_count = $5, api_calls_count = $6, views_count = $7,
			reuses_count = $8, followers_count = $9, popularity_score = $10,
			diff = $11, metadata_volatile = $12
		WHERE id = $1
	`

	tag, err := r.db.Q(ctx).Exec(ctx, query,
		v.ID, v.BlobID, v.Checksum, v.Title,
		v.DownloadsCount, v.APICallsCount, v.ViewsCount,
		v.ReusesCount, v.FollowersCount, v.PopularityScore,
		v.Diff, v.MetadataVolatile,
	)
	if err != nil {
		return fmt.Errorf("failed to update version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrVersionNotFound
	}
	return nil
}

// ClearBlobRefs nulls every blob_id before a replay restart
func (r *VersionRepository) ClearBlobRefs(ctx context.Context) error {
	if _, err := r.db.Q(ctx).Exec(ctx,
		`UPDATE dataset_versions SET blob_id = NULL WHERE blob_id IS NOT NULL`,
	); err != nil {
		return fmt.Errorf("failed to clear blob refs: %w", err)
	}
	return nil
}

// StreamRaw walks all versions ordered by (dataset_id, timestamp ASC).
// It reads on the pool, never inside the caller's transaction, so the
// replayer's batched writes commit on an independent connection.
func (r *VersionRepository) StreamRaw(ctx context.Context, fn func(v *models.Version) error) error {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+versionColumns+`
		 FROM dataset_versions
		 ORDER BY dataset_id, timestamp ASC`,
	)
	if err != nil {
		return fmt.Errorf("failed to stream versions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v := &models.Version{}
		if err := scanVersion(rows, v); err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error streaming versions: %w", err)
	}
	return nil
}

func scanVersion(rows pgx.Rows, v *models.Version) error {
	err := rows.Scan(
		&v.ID, &v.DatasetID, &v.Timestamp, &v.BlobID, &v.Checksum, &v.Title,
		&v.DownloadsCount, &v.APICallsCount, &v.ViewsCount, &v.ReusesCount,
		&v.FollowersCount, &v.PopularityScore, &v.Diff, &v.MetadataVolatile, &v.RawSnapshot,
	)
	if err != nil {
		return fmt.Errorf("failed to scan version: %w", err)
	}
	return nil
}

func scanVersionRow(row pgx.Row, v *models.Version) error {
	err := row.Scan(
		&v.ID, &v.DatasetID, &v.Timestamp, &v.BlobID, &v.Checksum, &v.Title,
		&v.DownloadsCount, &v.APICallsCount, &v.ViewsCount, &v.ReusesCount,
		&v.FollowersCount, &v.PopularityScore, &v.Diff, &v.MetadataVolatile, &v.RawSnapshot,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrVersionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}
	return nil
}
