package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapulse/catalog/common/logger"
	"github.com/datapulse/catalog/common/models"
	"github.com/datapulse/catalog/common/repository"
	"github.com/datapulse/catalog/common/snapshot"
)

func testPlatform(t *testing.T, stores *repository.Stores) *models.Platform {
	t.Helper()
	p := &models.Platform{
		ID:        uuid.New(),
		Name:      "Test portal",
		Slug:      "test-portal",
		Type:      models.PlatformTest,
		URL:       "https://test.example",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, stores.Platforms.Create(context.Background(), p))
	return p
}

// testClock is a manually advanced clock.
type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCoordinator(cooldown time.Duration) (*Coordinator, *repository.Stores, *testClock) {
	stores := repository.NewMemoryStores()
	clock := &testClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	log := logger.New("error", "json")
	c := NewCoordinator(stores, nil, cooldown, log).WithClock(clock.now)
	return c, stores, clock
}

func payloadDTO(downloads int64, extra string) *models.DatasetDTO {
	raw := fmt.Sprintf(`{
		"id": "buid-1",
		"title": "Air quality",
		"last_modified": "%s",
		"description": "hourly measurements%s",
		"metrics": {"downloads": %d}
	}`, time.Now().UTC().Format(time.RFC3339), extra, downloads)
	return &models.DatasetDTO{
		BUID:           "buid-1",
		Slug:           "air-quality",
		Title:          "Air quality",
		Page:           "https://test.example/datasets/air-quality",
		DownloadsCount: &downloads,
		Raw:            []byte(raw),
	}
}

func TestIngest_FirstSnapshotCreatesDatasetAndVersion(t *testing.T) {
	c, stores, _ := newTestCoordinator(15 * time.Hour)
	ctx := context.Background()
	platform := testPlatform(t, stores)

	res, err := c.Ingest(ctx, platform, payloadDTO(10, ""))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	require.NotEqual(t, uuid.Nil, res.VersionID)

	v, err := stores.Versions.GetByID(ctx, res.VersionID)
	require.NoError(t, err)
	assert.Nil(t, v.Diff)
	assert.NotNil(t, v.BlobID)
	assert.Equal(t, int64(10), v.DownloadsCount)

	d, err := stores.Datasets.GetByID(ctx, res.DatasetID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncSuccess, d.LastSyncStatus)
	require.NotNil(t, d.LastVersionTimestamp)

	n, err := stores.Blobs.CountForDataset(ctx, res.DatasetID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngest_IdenticalSnapshotIsUnchanged(t *testing.T) {
	c, stores, clock := newTestCoordinator(15 * time.Hour)
	ctx := context.Background()
	platform := testPlatform(t, stores)

	first, err := c.Ingest(ctx, platform, payloadDTO(10, ""))
	require.NoError(t, err)

	clock.advance(time.Hour)
	res, err := c.Ingest(ctx, platform, payloadDTO(10, ""))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, res.Outcome)
	assert.Equal(t, uuid.Nil, res.VersionID)

	_, total, err := stores.Versions.List(ctx, first.DatasetID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestIngest_MetricOnlyChangeHonorsCooldown(t *testing.T) {
	c, stores, clock := newTestCoordinator(15 * time.Hour)
	ctx := context.Background()
	platform := testPlatform(t, stores)

	first, err := c.Ingest(ctx, platform, payloadDTO(10, ""))
	require.NoError(t, err)

	// counters moved but the cooldown window is still open
	clock.advance(2 * time.Hour)
	res, err := c.Ingest(ctx, platform, payloadDTO(11, ""))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCooldownSkipped, res.Outcome)

	// past the cooldown the counter movement versions
	clock.advance(14 * time.Hour)
	res, err = c.Ingest(ctx, platform, payloadDTO(12, ""))
	require.NoError(t, err)
	assert.Equal(t, OutcomeMetricsOnly, res.Outcome)

	v, err := stores.Versions.GetByID(ctx, res.VersionID)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"downloads_count":{"_t":"changed","old":10,"new":12}}`,
		string(v.Diff))

	// same stable content, the blob is reused
	n, err := stores.Blobs.CountForDataset(ctx, first.DatasetID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngest_ZeroCooldownDisablesSkipping(t *testing.T) {
	c, _, clock := newTestCoordinator(0)
	ctx := context.Background()
	stores := c.stores
	platform := testPlatform(t, stores)

	_, err := c.Ingest(ctx, platform, payloadDTO(10, ""))
	require.NoError(t, err)

	clock.advance(time.Minute)
	res, err := c.Ingest(ctx, platform, payloadDTO(11, ""))
	require.NoError(t, err)
	assert.Equal(t, OutcomeMetricsOnly, res.Outcome)
}

func TestIngest_StructuralChangeBypassesCooldown(t *testing.T) {
	c, stores, clock := newTestCoordinator(15 * time.Hour)
	ctx := context.Background()
	platform := testPlatform(t, stores)

	first, err := c.Ingest(ctx, platform, payloadDTO(10, ""))
	require.NoError(t, err)

	clock.advance(time.Hour)
	res, err := c.Ingest(ctx, platform, payloadDTO(11, " (updated)"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeChanged, res.Outcome)

	v, err := stores.Versions.GetByID(ctx, res.VersionID)
	require.NoError(t, err)
	assert.Contains(t, string(v.Diff), `"description"`)
	assert.Contains(t, string(v.Diff), `"downloads_count"`)

	// new stable content, second blob
	n, err := stores.Blobs.CountForDataset(ctx, first.DatasetID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIngest_InvalidPayloadFailsWithoutWriting(t *testing.T) {
	c, stores, _ := newTestCoordinator(15 * time.Hour)
	ctx := context.Background()
	platform := testPlatform(t, stores)

	dto := payloadDTO(10, "")
	dto.BUID = ""
	res, err := c.Ingest(ctx, platform, dto)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)

	var domainErr *models.InvalidDomainValueError
	assert.ErrorAs(t, err, &domainErr)

	_, err = stores.Datasets.GetBySlug(ctx, platform.ID, "air-quality")
	assert.ErrorIs(t, err, models.ErrDatasetNotFound)
}

func TestIngest_NegativeMetricFailsAndRecordsSyncFailure(t *testing.T) {
	c, stores, _ := newTestCoordinator(15 * time.Hour)
	ctx := context.Background()
	platform := testPlatform(t, stores)

	good, err := c.Ingest(ctx, platform, payloadDTO(10, ""))
	require.NoError(t, err)

	bad := payloadDTO(10, "")
	negative := int64(-1)
	bad.ViewsCount = &negative
	res, err := c.Ingest(ctx, platform, bad)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)

	var metricErr *models.InvalidMetricValueError
	assert.ErrorAs(t, err, &metricErr)

	d, err := stores.Datasets.GetByID(ctx, good.DatasetID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncFailed, d.LastSyncStatus)

	// the failed attempt never appended a version
	_, total, err := stores.Versions.List(ctx, good.DatasetID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestIngest_VolatileMetadataStoredCanonically(t *testing.T) {
	c, stores, _ := newTestCoordinator(0)
	ctx := context.Background()
	platform := testPlatform(t, stores)

	dto := payloadDTO(10, "")
	res, err := c.Ingest(ctx, platform, dto)
	require.NoError(t, err)

	v, err := stores.Versions.GetLast(ctx, res.DatasetID)
	require.NoError(t, err)
	require.NotEmpty(t, v.MetadataVolatile)

	// same byte form a bulk replay would rebuild from the raw snapshot
	tree, err := snapshot.Decode(dto.Raw)
	require.NoError(t, err)
	_, volatile := snapshot.Strip(tree)
	want, err := snapshot.CanonicalJSON(volatile)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(v.MetadataVolatile))
}

func TestIngest_ReappearanceRestoresSoftDeleted(t *testing.T) {
	c, stores, clock := newTestCoordinator(15 * time.Hour)
	ctx := context.Background()
	platform := testPlatform(t, stores)

	res, err := c.Ingest(ctx, platform, payloadDTO(10, ""))
	require.NoError(t, err)

	_, _, err = c.MarkAbsent(ctx, platform.ID, map[string]struct{}{"other": {}}, false)
	require.NoError(t, err)

	d, err := stores.Datasets.GetByID(ctx, res.DatasetID)
	require.NoError(t, err)
	require.True(t, d.IsDeleted)

	// unchanged content still restores the row
	clock.advance(time.Hour)
	again, err := c.Ingest(ctx, platform, payloadDTO(10, ""))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, again.Outcome)

	d, err = stores.Datasets.GetByID(ctx, res.DatasetID)
	require.NoError(t, err)
	assert.False(t, d.IsDeleted)
}

func TestIngest_TimestampsStrictlyMonotonicUnderStalledClock(t *testing.T) {
	c, stores, _ := newTestCoordinator(0)
	ctx := context.Background()
	platform := testPlatform(t, stores)

	first, err := c.Ingest(ctx, platform, payloadDTO(10, ""))
	require.NoError(t, err)
	second, err := c.Ingest(ctx, platform, payloadDTO(11, ""))
	require.NoError(t, err)

	v1, err := stores.Versions.GetByID(ctx, first.VersionID)
	require.NoError(t, err)
	v2, err := stores.Versions.GetByID(ctx, second.VersionID)
	require.NoError(t, err)
	assert.True(t, v2.Timestamp.After(v1.Timestamp))
}
