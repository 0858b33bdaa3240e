// Package repository provides the persistence layer for the five catalog
// tables. Each store has a Postgres implementation and an in-memory one
// selected by RUN_MODE=TEST.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/datapulse/catalog/common/models"
)

// TxRunner is the transactional unit-of-work boundary. The Postgres
// implementation carries a pgx.Tx in the context; the memory one serializes
// on a lock.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PlatformStore persists platforms.
type PlatformStore interface {
	Create(ctx context.Context, p *models.Platform) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Platform, error)
	List(ctx context.Context) ([]*models.Platform, error)
	Update(ctx context.Context, p *models.Platform) error
}

// SyncHistoryStore persists platform-level sync outcomes.
type SyncHistoryStore interface {
	Create(ctx context.Context, h *models.PlatformSyncHistory) error
	Update(ctx context.Context, h *models.PlatformSyncHistory) error
	ListByPlatform(ctx context.Context, platformID uuid.UUID, limit int) ([]*models.PlatformSyncHistory, error)
}

// DatasetStore persists datasets. (platform_id, buid) and
// (platform_id, slug) are unique.
type DatasetStore interface {
	Create(ctx context.Context, d *models.Dataset) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	GetBySlug(ctx context.Context, platformID uuid.UUID, slug string) (*models.Dataset, error)
	GetByBUID(ctx context.Context, platformID uuid.UUID, buid string) (*models.Dataset, error)
	Update(ctx context.Context, d *models.Dataset) error
	UpdateSyncStatus(ctx context.Context, id uuid.UUID, status models.SyncStatus, at time.Time) error
	SetLink(ctx context.Context, id uuid.UUID, linkedID *uuid.UUID) error
	ListByPlatform(ctx context.Context, platformID uuid.UUID) ([]*models.Dataset, error)
	// FindBySlugExcludingPlatform returns non-deleted datasets with the
	// given slug on every platform except the one passed, ordered by
	// created ascending.
	FindBySlugExcludingPlatform(ctx context.Context, slug string, platformID uuid.UUID) ([]*models.Dataset, error)
}

// BlobStore is the per-dataset content-addressed store of stable
// snapshots. Rows are immutable; Upsert never overwrites data.
type BlobStore interface {
	// Upsert inserts the blob or, on (dataset_id, hash) conflict, returns
	// the existing row's id. Atomic under concurrent ingest.
	Upsert(ctx context.Context, b *models.Blob) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Blob, error)
	GetByHash(ctx context.Context, datasetID uuid.UUID, hash string) (*models.Blob, error)
	CountForDataset(ctx context.Context, datasetID uuid.UUID) (int, error)
	// DeleteAll truncates the store. Only the bulk replayer calls this.
	DeleteAll(ctx context.Context) error
}

// VersionStore is the append-only per-dataset version log.
type VersionStore interface {
	Append(ctx context.Context, v *models.Version) error
	// List pages versions of a dataset ordered by timestamp descending.
	List(ctx context.Context, datasetID uuid.UUID, page, pageSize int) ([]*models.Version, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Version, error)
	GetLast(ctx context.Context, datasetID uuid.UUID) (*models.Version, error)
	// Update rewrites a version row. Only the bulk replayer calls this.
	Update(ctx context.Context, v *models.Version) error
	// ClearBlobRefs nulls blob_id on every version before a replay.
	ClearBlobRefs(ctx context.Context) error
	// StreamRaw walks all versions ordered by (dataset_id, timestamp ASC)
	// on a reader independent of the writer connection, invoking fn per
	// row. fn returning an error stops the stream.
	StreamRaw(ctx context.Context, fn func(v *models.Version) error) error
}

// Stores bundles the five stores plus the unit-of-work runner.
type Stores struct {
	Tx          TxRunner
	Platforms   PlatformStore
	SyncHistory SyncHistoryStore
	Datasets    DatasetStore
	Blobs       BlobStore
	Versions    VersionStore
}
