package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapulse/catalog/common/models"
	"github.com/datapulse/catalog/common/platforms"
	"github.com/datapulse/catalog/common/repository"
)

func fixtureFactory(tc *platforms.TestConnector) ConnectorFactory {
	return func(t models.PlatformType) (platforms.Connector, error) {
		if t != models.PlatformTest {
			return nil, models.ErrInvalidPlatformType
		}
		return tc, nil
	}
}

func TestSyncPlatform_FullRun(t *testing.T) {
	c, stores, clock := newTestCoordinator(0)
	ctx := context.Background()
	platform := testPlatform(t, stores)

	tc := platforms.NewTestConnector()
	tc.Seed("ds-1", []byte(`{"id":"ds-1","title":"One","metrics":{"downloads":1}}`))
	tc.Seed("ds-2", []byte(`{"id":"ds-2","title":"Two","metrics":{"downloads":2}}`))

	svc := NewSyncService(stores, c, fixtureFactory(tc), c.log)
	svc.now = clock.now

	history, err := svc.SyncPlatform(ctx, platform.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncSuccess, history.Status)
	assert.Equal(t, 2, history.DatasetsSynced)
	assert.Equal(t, 0, history.DatasetsFailed)
	assert.Equal(t, 0, history.DatasetsDeleted)
	require.NotNil(t, history.FinishedAt)

	p, err := stores.Platforms.GetByID(ctx, platform.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, p.DatasetsCount)
	assert.Equal(t, models.SyncSuccess, p.LastSyncStatus)
	require.NotNil(t, p.LastSync)

	rows, err := stores.SyncHistory.ListByPlatform(ctx, platform.ID, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSyncPlatform_VanishedDatasetSoftDeleted(t *testing.T) {
	c, stores, clock := newTestCoordinator(0)
	ctx := context.Background()
	platform := testPlatform(t, stores)

	tc := platforms.NewTestConnector()
	tc.Seed("ds-1", []byte(`{"id":"ds-1","title":"One"}`))
	tc.Seed("ds-2", []byte(`{"id":"ds-2","title":"Two"}`))

	svc := NewSyncService(stores, c, fixtureFactory(tc), c.log)
	svc.now = clock.now

	_, err := svc.SyncPlatform(ctx, platform.ID)
	require.NoError(t, err)

	// ds-2 vanishes upstream
	tc.Remove("ds-2")
	clock.advance(time.Hour)

	history, err := svc.SyncPlatform(ctx, platform.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncSuccess, history.Status)
	assert.Equal(t, 1, history.DatasetsDeleted)

	gone, err := stores.Datasets.GetByBUID(ctx, platform.ID, "ds-2")
	require.NoError(t, err)
	assert.True(t, gone.IsDeleted)

	kept, err := stores.Datasets.GetByBUID(ctx, platform.ID, "ds-1")
	require.NoError(t, err)
	assert.False(t, kept.IsDeleted)

	// third run: ds-2 still absent, the already-deleted guard must not
	// fail the sync
	clock.advance(time.Hour)
	history, err = svc.SyncPlatform(ctx, platform.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncSuccess, history.Status)
	assert.Equal(t, 0, history.DatasetsDeleted)
}

// failingUpdateDatasets fails the soft-delete write of one buid and
// delegates everything else.
type failingUpdateDatasets struct {
	repository.DatasetStore
	failBUID string
}

func (f *failingUpdateDatasets) Update(ctx context.Context, d *models.Dataset) error {
	if d.BUID == f.failBUID && d.IsDeleted {
		return errors.New("connection reset")
	}
	return f.DatasetStore.Update(ctx, d)
}

func TestSyncPlatform_SoftDeleteStoreFailureFailsTheRun(t *testing.T) {
	c, stores, clock := newTestCoordinator(0)
	ctx := context.Background()
	platform := testPlatform(t, stores)

	tc := platforms.NewTestConnector()
	tc.Seed("ds-1", []byte(`{"id":"ds-1","title":"One"}`))
	tc.Seed("ds-2", []byte(`{"id":"ds-2","title":"Two"}`))

	svc := NewSyncService(stores, c, fixtureFactory(tc), c.log)
	svc.now = clock.now

	_, err := svc.SyncPlatform(ctx, platform.ID)
	require.NoError(t, err)

	// ds-2 vanishes upstream, but its soft-delete write keeps failing
	tc.Remove("ds-2")
	stores.Datasets = &failingUpdateDatasets{DatasetStore: stores.Datasets, failBUID: "ds-2"}
	clock.advance(time.Hour)

	history, err := svc.SyncPlatform(ctx, platform.ID)
	require.Error(t, err)
	require.NotNil(t, history)
	assert.Equal(t, models.SyncFailed, history.Status)
	assert.Equal(t, 0, history.DatasetsDeleted)

	// the row is still live: nothing pretended the delete landed
	d, err := stores.Datasets.GetByBUID(ctx, platform.ID, "ds-2")
	require.NoError(t, err)
	assert.False(t, d.IsDeleted)
}

func TestSyncPlatform_UnmappablePayloadCountsAsFailed(t *testing.T) {
	c, stores, clock := newTestCoordinator(0)
	ctx := context.Background()
	platform := testPlatform(t, stores)

	tc := platforms.NewTestConnector()
	tc.Seed("ds-1", []byte(`{"id":"ds-1","title":"One"}`))
	tc.Seed("ds-bad", []byte(`{"title":"no id"}`))

	svc := NewSyncService(stores, c, fixtureFactory(tc), c.log)
	svc.now = clock.now

	history, err := svc.SyncPlatform(ctx, platform.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncSuccess, history.Status)
	assert.Equal(t, 1, history.DatasetsSynced)
	assert.Equal(t, 1, history.DatasetsFailed)
}
