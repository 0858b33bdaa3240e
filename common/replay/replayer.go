// Package replay re-runs the fingerprint and diff logic over the full
// historical raw-snapshot stream, rebuilding blobs and rewriting versions.
package replay

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/datapulse/catalog/common/diff"
	"github.com/datapulse/catalog/common/logger"
	"github.com/datapulse/catalog/common/models"
	"github.com/datapulse/catalog/common/repository"
	"github.com/datapulse/catalog/common/snapshot"
)

// Stats summarizes one replay run.
type Stats struct {
	Versions int
	Blobs    int
	Skipped  int
}

// Replayer streams all versions ordered by (dataset_id, timestamp ASC)
// and rewrites them with blob references, backfilled metrics, diffs,
// titles and volatile metadata. It is restartable: every run starts by
// clearing blob references and truncating the blob store, so a rerun over
// the same stream is deterministic.
type Replayer struct {
	stores    *repository.Stores
	batchSize int
	log       *logger.Logger
}

// NewReplayer creates a replayer committing in batches of batchSize.
func NewReplayer(stores *repository.Stores, batchSize int, log *logger.Logger) *Replayer {
	if batchSize < 1 {
		batchSize = 1000
	}
	return &Replayer{stores: stores, batchSize: batchSize, log: log}
}

// datasetState carries the per-dataset replay cursor. The stream is
// ordered by dataset, so one state at a time suffices.
type datasetState struct {
	id         uuid.UUID
	blobIDs    map[string]uuid.UUID // hash -> blob id, dedup within dataset
	prevCompar map[string]any
	first      bool
}

// Run executes the replay. Cancellation loses at most one uncommitted
// batch.
func (r *Replayer) Run(ctx context.Context) (*Stats, error) {
	r.log.Info("replay starting", "batch_size", r.batchSize)

	if err := r.stores.Versions.ClearBlobRefs(ctx); err != nil {
		return nil, fmt.Errorf("clear blob refs: %w", err)
	}
	if err := r.stores.Blobs.DeleteAll(ctx); err != nil {
		return nil, fmt.Errorf("truncate blobs: %w", err)
	}

	stats := &Stats{}
	state := &datasetState{}
	var pendingBlobs []*models.Blob
	var pendingVersions []*models.Version

	flush := func() error {
		if len(pendingVersions) == 0 && len(pendingBlobs) == 0 {
			return nil
		}
		err := r.stores.Tx.WithTx(ctx, func(ctx context.Context) error {
			for _, b := range pendingBlobs {
				if _, err := r.stores.Blobs.Upsert(ctx, b); err != nil {
					return err
				}
			}
			for _, v := range pendingVersions {
				if err := r.stores.Versions.Update(ctx, v); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("commit replay batch: %w", err)
		}
		stats.Blobs += len(pendingBlobs)
		stats.Versions += len(pendingVersions)
		pendingBlobs = pendingBlobs[:0]
		pendingVersions = pendingVersions[:0]
		return nil
	}

	err := r.stores.Versions.StreamRaw(ctx, func(v *models.Version) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if state.id != v.DatasetID {
			state = &datasetState{
				id:      v.DatasetID,
				blobIDs: map[string]uuid.UUID{},
				first:   true,
			}
		}

		if len(v.RawSnapshot) == 0 {
			stats.Skipped++
			return nil
		}
		tree, err := snapshot.Decode(v.RawSnapshot)
		if err != nil {
			r.log.Warn("skipping malformed snapshot", "version_id", v.ID, "error", err)
			stats.Skipped++
			return nil
		}

		stable, volatile := snapshot.Strip(tree)
		hash, err := snapshot.Fingerprint(stable)
		if err != nil {
			return err
		}

		blobID, known := state.blobIDs[hash]
		if !known {
			canonical, err := snapshot.CanonicalJSON(stable)
			if err != nil {
				return err
			}
			blobID = uuid.New()
			state.blobIDs[hash] = blobID
			pendingBlobs = append(pendingBlobs, &models.Blob{
				ID:        blobID,
				DatasetID: v.DatasetID,
				Hash:      hash,
				Data:      canonical,
			})
		}

		metrics := backfillMetrics(v.Metrics, v.RawSnapshot)
		comparable := snapshot.Comparable(stable, metrics)

		var versionDiff any
		if !state.first {
			versionDiff = diff.Diff(state.prevCompar, comparable)
		}
		state.first = false
		state.prevCompar = comparable

		diffJSON, err := diff.Marshal(versionDiff)
		if err != nil {
			return err
		}
		volatileJSON, err := marshalVolatile(volatile)
		if err != nil {
			return err
		}

		v.BlobID = &blobID
		v.Metrics = metrics
		v.Diff = diffJSON
		v.MetadataVolatile = volatileJSON
		if title := snapshotTitle(v.RawSnapshot); title != "" {
			v.Title = title
		}
		pendingVersions = append(pendingVersions, v)

		if len(pendingVersions) >= r.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	if err := flush(); err != nil {
		return stats, err
	}

	r.log.Info("replay finished",
		"versions", stats.Versions, "blobs", stats.Blobs, "skipped", stats.Skipped)
	return stats, nil
}

// backfillMetrics fills zero-valued counters from the raw snapshot's
// metrics object. Counters already persisted on the version win.
func backfillMetrics(existing models.Metrics, raw []byte) models.Metrics {
	fill := func(current int64, path string) int64 {
		if current != 0 {
			return current
		}
		if v := gjson.GetBytes(raw, path); v.Exists() {
			return v.Int()
		}
		return current
	}
	return models.Metrics{
		DownloadsCount:  fill(existing.DownloadsCount, "metrics.downloads"),
		APICallsCount:   fill(existing.APICallsCount, "metrics.api_calls"),
		ViewsCount:      fill(existing.ViewsCount, "metrics.views"),
		ReusesCount:     fill(existing.ReusesCount, "metrics.reuses"),
		FollowersCount:  fill(existing.FollowersCount, "metrics.followers"),
		PopularityScore: fill(existing.PopularityScore, "metrics.popularity_score"),
	}
}

func snapshotTitle(raw []byte) string {
	if t := gjson.GetBytes(raw, "title").String(); t != "" {
		return t
	}
	return gjson.GetBytes(raw, "metas.default.title").String()
}

func marshalVolatile(volatile map[string]any) ([]byte, error) {
	if len(volatile) == 0 {
		return nil, nil
	}
	b, err := snapshot.CanonicalJSON(volatile)
	if err != nil {
		return nil, fmt.Errorf("marshal volatile metadata: %w", err)
	}
	return b, nil
}
