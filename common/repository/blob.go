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

// BlobRepository handles database operations for dataset blobs
type BlobRepository struct {
	db *db.DB
}

// NewBlobRepository creates a new blob repository
func NewBlobRepository(db *db.DB) *BlobRepository {
	return &BlobRepository{db: db}
}

// Upsert inserts a blob, or returns the existing id on
// (dataset_id, hash) conflict. The conflicting insert never touches data.
func (r *BlobRepository) Upsert(ctx context.Context, b *models.Blob) (uuid.UUID, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.SizeBytes = int64(len(b.Data))

	query := `
		INSERT INTO dataset_blobs (id, dataset_id, hash, data, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (dataset_id, hash) DO NOTHING
		RETURNING id
	`

	var id uuid.UUID
	err := r.db.Q(ctx).QueryRow(ctx, query,
		b.ID,
		b.DatasetID,
		b.Hash,
		b.Data,
		b.SizeBytes,
		b.CreatedAt,
	).Scan(&id)

	if errors.Is(err, pgx.ErrNoRows) {
		// lost the race or re-ingest of a known fingerprint; read the winner
		existing, err := r.GetByHash(ctx, b.DatasetID, b.Hash)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to read existing blob: %w", err)
		}
		return existing.ID, nil
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to upsert blob: %w", err)
	}

	return id, nil
}

// GetByID retrieves a blob by its id
func (r *BlobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Blob, error) {
	query := `
		SELECT id, dataset_id, hash, data, size_bytes, created_at
		FROM dataset_blobs
		WHERE id = $1
	`
	return r.scanOne(ctx, query, id)
}

// GetByHash retrieves a blob by its content address within a dataset
func (r *BlobRepository) GetByHash(ctx context.Context, datasetID uuid.UUID, hash string) (*models.Blob, error) {
	query := `
		SELECT id, dataset_id, hash, data, size_bytes, created_at
		FROM dataset_blobs
		WHERE dataset_id = $1 AND hash = $2
	`
	return r.scanOne(ctx, query, datasetID, hash)
}

func (r *BlobRepository) scanOne(ctx context.Context, query string, args ...any) (*models.Blob, error) {
	b := &models.Blob{}
	err := r.db.Q(ctx).QueryRow(ctx, query, args...).Scan(
		&b.ID,
		&b.DatasetID,
		&b.Hash,
		&b.Data,
		&b.SizeBytes,
		&b.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}
	return b, nil
}

// CountForDataset counts distinct blobs of a dataset
func (r *BlobRepository) CountForDataset(ctx context.Context, datasetID uuid.UUID) (int, error) {
	var count int
	err := r.db.Q(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM dataset_blobs WHERE dataset_id = $1`, datasetID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count blobs: %w", err)
	}
	return count, nil
}

// DeleteAll truncates the blob store before a bulk replay
func (r *BlobRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.Q(ctx).Exec(ctx, `TRUNCATE dataset_blobs`); err != nil {
		return fmt.Errorf("failed to truncate blobs: %w", err)
	}
	return nil
}
