package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/datapulse/catalog/common/models"
	"github.com/datapulse/catalog/common/repository"
	"github.com/datapulse/catalog/common/snapshot"
)

// History is the read side of the version log: paged listings and faithful
// snapshot reconstruction.
type History struct {
	stores *repository.Stores
}

// NewHistory creates a history reader over the store bundle.
func NewHistory(stores *repository.Stores) *History {
	return &History{stores: stores}
}

// GetVersions pages a dataset's versions, newest first.
func (h *History) GetVersions(ctx context.Context, datasetID uuid.UUID, page, pageSize int) ([]*models.Version, int, error) {
	return h.stores.Versions.List(ctx, datasetID, page, pageSize)
}

// GetLastVersion returns the most recent version of a dataset.
func (h *History) GetLastVersion(ctx context.Context, datasetID uuid.UUID) (*models.Version, error) {
	return h.stores.Versions.GetLast(ctx, datasetID)
}

// GetSnapshot reconstructs the raw snapshot a version was ingested from:
// blob data merged with the stripped volatile remainder, metric counters
// re-injected into their conventional locations. Equal to the original
// payload up to key ordering.
//
// Legacy versions without a blob reference fall back to the stored raw
// snapshot column.
func (h *History) GetSnapshot(ctx context.Context, versionID uuid.UUID) (map[string]any, error) {
	version, err := h.stores.Versions.GetByID(ctx, versionID)
	if err != nil {
		return nil, err
	}

	if version.BlobID == nil {
		tree, err := snapshot.Decode(version.RawSnapshot)
		if err != nil {
			return nil, fmt.Errorf("decode legacy snapshot: %w", err)
		}
		return tree, nil
	}

	blob, err := h.stores.Blobs.GetByID(ctx, *version.BlobID)
	if err != nil {
		return nil, fmt.Errorf("load blob: %w", err)
	}
	stable, err := snapshot.Decode(blob.Data)
	if err != nil {
		return nil, fmt.Errorf("decode blob: %w", err)
	}

	var volatile map[string]any
	if len(version.MetadataVolatile) > 0 {
		volatile, err = snapshot.Decode(version.MetadataVolatile)
		if err != nil {
			return nil, fmt.Errorf("decode volatile metadata: %w", err)
		}
	}

	return snapshot.Reconstruct(stable, volatile, version.Metrics), nil
}
