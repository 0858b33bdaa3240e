package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/datapulse/catalog/common/models"
)

// ErrEmptyListing guards against a partial or failed platform listing
// soft-deleting an entire catalog. Callers that really mean an empty
// platform pass allowEmpty.
var ErrEmptyListing = errors.New("refusing to mark datasets absent from an empty listing")

// MarkAbsent soft-deletes every dataset of the platform whose buid is
// missing from visibleBUIDs.
//
// visibleBUIDs must be the COMPLETE set of buids returned by a full
// platform listing: the engine cannot tell a true deletion from a partial
// list and will soft-delete spuriously if handed an incomplete one.
//
// Datasets that are already deleted and still absent are reported in the
// alreadyDeleted buid list, never as errors: the returned error joins store
// failures only, so callers can tell a recurring absence from a write that
// did not land.
func (c *Coordinator) MarkAbsent(ctx context.Context, platformID uuid.UUID, visibleBUIDs map[string]struct{}, allowEmpty bool) (deleted []uuid.UUID, alreadyDeleted []string, err error) {
	if len(visibleBUIDs) == 0 && !allowEmpty {
		return nil, nil, ErrEmptyListing
	}

	datasets, err := c.stores.Datasets.ListByPlatform(ctx, platformID)
	if err != nil {
		return nil, nil, err
	}

	var errs []error
	for _, d := range datasets {
		if _, visible := visibleBUIDs[d.BUID]; visible {
			continue
		}
		if d.IsDeleted {
			alreadyDeleted = append(alreadyDeleted, d.BUID)
			continue
		}
		d.IsDeleted = true
		if err := c.stores.Datasets.Update(ctx, d); err != nil {
			errs = append(errs, fmt.Errorf("dataset %s: %w", d.BUID, err))
			continue
		}
		deleted = append(deleted, d.ID)
		c.log.Info("dataset soft-deleted", "dataset_id", d.ID, "buid", d.BUID)
	}
	return deleted, alreadyDeleted, errors.Join(errs...)
}

// MarkPresent restores a soft-deleted dataset that reappeared in a
// listing. Restoring a live dataset surfaces ErrDatasetNotDeleted.
func (c *Coordinator) MarkPresent(ctx context.Context, platformID uuid.UUID, buid string) error {
	d, err := c.stores.Datasets.GetByBUID(ctx, platformID, buid)
	if err != nil {
		return err
	}
	if !d.IsDeleted {
		return fmt.Errorf("dataset %s: %w", buid, models.ErrDatasetNotDeleted)
	}
	d.IsDeleted = false
	if err := c.stores.Datasets.Update(ctx, d); err != nil {
		return err
	}
	c.log.Info("dataset restored", "dataset_id", d.ID, "buid", buid)
	return nil
}
