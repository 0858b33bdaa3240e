package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapulse/catalog/common/models"
)

func TestMemoryBlobs_UpsertDedupsPerDataset(t *testing.T) {
	stores := NewMemoryStores()
	ctx := context.Background()
	datasetA := uuid.New()
	datasetB := uuid.New()

	id1, err := stores.Blobs.Upsert(ctx, &models.Blob{DatasetID: datasetA, Hash: "h1", Data: []byte(`{"a":1}`)})
	require.NoError(t, err)

	// same (dataset, hash): existing id comes back, data untouched
	id2, err := stores.Blobs.Upsert(ctx, &models.Blob{DatasetID: datasetA, Hash: "h1", Data: []byte(`{"other":true}`)})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	b, err := stores.Blobs.GetByID(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(b.Data))
	assert.Equal(t, int64(7), b.SizeBytes)

	// same hash on another dataset is a separate blob
	id3, err := stores.Blobs.Upsert(ctx, &models.Blob{DatasetID: datasetB, Hash: "h1", Data: []byte(`{"a":1}`)})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)

	n, err := stores.Blobs.CountForDataset(ctx, datasetA)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryVersions_ListPagesNewestFirst(t *testing.T) {
	stores := NewMemoryStores()
	ctx := context.Background()
	datasetID := uuid.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, stores.Versions.Append(ctx, &models.Version{
			ID:        uuid.New(),
			DatasetID: datasetID,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Title:     fmt.Sprintf("v%d", i),
		}))
	}

	page1, total, err := stores.Versions.List(ctx, datasetID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page1, 2)
	assert.Equal(t, "v4", page1[0].Title)
	assert.Equal(t, "v3", page1[1].Title)

	page3, total, err := stores.Versions.List(ctx, datasetID, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page3, 1)
	assert.Equal(t, "v0", page3[0].Title)

	empty, total, err := stores.Versions.List(ctx, datasetID, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, empty)
}

func TestMemoryVersions_StreamRawOrdered(t *testing.T) {
	stores := NewMemoryStores()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	dsA := uuid.New()
	dsB := uuid.New()
	for _, seed := range []struct {
		ds uuid.UUID
		at time.Time
	}{
		{dsA, base.Add(2 * time.Hour)},
		{dsB, base},
		{dsA, base},
		{dsB, base.Add(time.Hour)},
	} {
		require.NoError(t, stores.Versions.Append(ctx, &models.Version{
			ID: uuid.New(), DatasetID: seed.ds, Timestamp: seed.at,
		}))
	}

	var seen []struct {
		ds uuid.UUID
		at time.Time
	}
	err := stores.Versions.StreamRaw(ctx, func(v *models.Version) error {
		seen = append(seen, struct {
			ds uuid.UUID
			at time.Time
		}{v.DatasetID, v.Timestamp})
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 4)

	for i := 1; i < len(seen); i++ {
		prev, cur := seen[i-1], seen[i]
		if prev.ds == cur.ds {
			assert.True(t, prev.at.Before(cur.at), "timestamps must ascend within a dataset")
		}
	}
	// all rows of one dataset are contiguous
	switched := 0
	for i := 1; i < len(seen); i++ {
		if seen[i].ds != seen[i-1].ds {
			switched++
		}
	}
	assert.Equal(t, 1, switched)
}

func TestMemoryVersions_ClearBlobRefs(t *testing.T) {
	stores := NewMemoryStores()
	ctx := context.Background()
	blobID := uuid.New()
	v := &models.Version{
		ID:        uuid.New(),
		DatasetID: uuid.New(),
		Timestamp: time.Now().UTC(),
		BlobID:    &blobID,
	}
	require.NoError(t, stores.Versions.Append(ctx, v))

	require.NoError(t, stores.Versions.ClearBlobRefs(ctx))

	got, err := stores.Versions.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Nil(t, got.BlobID)
}

func TestMemoryDatasets_RowsAreCopied(t *testing.T) {
	stores := NewMemoryStores()
	ctx := context.Background()
	d := &models.Dataset{
		ID:         uuid.New(),
		BUID:       "b",
		Slug:       "s",
		PlatformID: uuid.New(),
	}
	require.NoError(t, stores.Datasets.Create(ctx, d))

	got, err := stores.Datasets.GetByID(ctx, d.ID)
	require.NoError(t, err)
	got.Slug = "mutated"

	again, err := stores.Datasets.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "s", again.Slug)
}
