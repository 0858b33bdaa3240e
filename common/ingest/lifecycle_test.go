package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapulse/catalog/common/models"
)

func TestMarkAbsent_RefusesEmptyListing(t *testing.T) {
	c, stores, _ := newTestCoordinator(0)
	ctx := context.Background()
	platform := testPlatform(t, stores)

	_, err := c.Ingest(ctx, platform, payloadDTO(1, ""))
	require.NoError(t, err)

	_, _, err = c.MarkAbsent(ctx, platform.ID, nil, false)
	assert.ErrorIs(t, err, ErrEmptyListing)

	// explicit override soft-deletes everything
	deleted, _, err := c.MarkAbsent(ctx, platform.ID, nil, true)
	require.NoError(t, err)
	assert.Len(t, deleted, 1)
}

func TestMarkAbsent_AlreadyDeletedReportedButNotAnError(t *testing.T) {
	c, stores, clock := newTestCoordinator(0)
	ctx := context.Background()
	platform := testPlatform(t, stores)

	res1, err := c.Ingest(ctx, platform, payloadDTO(1, ""))
	require.NoError(t, err)

	clock.advance(time.Minute)
	dto2 := payloadDTO(1, " second")
	dto2.BUID = "buid-2"
	dto2.Slug = "second"
	res2, err := c.Ingest(ctx, platform, dto2)
	require.NoError(t, err)

	// first pass deletes both
	_, _, err = c.MarkAbsent(ctx, platform.ID, map[string]struct{}{"ghost": {}}, false)
	require.NoError(t, err)

	// restore only the second, then run again: the first lands in the
	// already-deleted list while the second gets deleted anyway
	require.NoError(t, c.MarkPresent(ctx, platform.ID, "buid-2"))

	deleted, alreadyGone, err := c.MarkAbsent(ctx, platform.ID, map[string]struct{}{"ghost": {}}, false)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, res2.DatasetID, deleted[0])
	assert.NotContains(t, deleted, res1.DatasetID)
	assert.Equal(t, []string{"buid-1"}, alreadyGone)
}

func TestMarkAbsent_VisibleDatasetsUntouched(t *testing.T) {
	c, stores, _ := newTestCoordinator(0)
	ctx := context.Background()
	platform := testPlatform(t, stores)

	res, err := c.Ingest(ctx, platform, payloadDTO(1, ""))
	require.NoError(t, err)

	deleted, _, err := c.MarkAbsent(ctx, platform.ID, map[string]struct{}{"buid-1": {}}, false)
	require.NoError(t, err)
	assert.Empty(t, deleted)

	d, err := stores.Datasets.GetByID(ctx, res.DatasetID)
	require.NoError(t, err)
	assert.False(t, d.IsDeleted)
}

func TestMarkPresent_LiveDatasetErrors(t *testing.T) {
	c, stores, _ := newTestCoordinator(0)
	ctx := context.Background()
	platform := testPlatform(t, stores)

	_, err := c.Ingest(ctx, platform, payloadDTO(1, ""))
	require.NoError(t, err)

	err = c.MarkPresent(ctx, platform.ID, "buid-1")
	assert.ErrorIs(t, err, models.ErrDatasetNotDeleted)
}
