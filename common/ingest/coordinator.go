// Package ingest implements the snapshot ingestion coordinator: normalize,
// strip, fingerprint, dedup, diff, append, all committed in one unit of
// work per snapshot.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/datapulse/catalog/common/diff"
	"github.com/datapulse/catalog/common/logger"
	"github.com/datapulse/catalog/common/models"
	"github.com/datapulse/catalog/common/repository"
	"github.com/datapulse/catalog/common/snapshot"
)

// Outcome classifies what one ingest did. This replaces control flow by
// "has not changed" errors: callers branch on the value.
type Outcome string

const (
	// OutcomeCreated: first version of a new dataset.
	OutcomeCreated Outcome = "created"
	// OutcomeChanged: structural change, new version (cooldown ignored).
	OutcomeChanged Outcome = "changed"
	// OutcomeMetricsOnly: same fingerprint, counters moved, new version.
	OutcomeMetricsOnly Outcome = "metrics_only"
	// OutcomeUnchanged: nothing moved; only sync status updated.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeCooldownSkipped: counters moved but the metric-only cooldown
	// has not expired; no version written.
	OutcomeCooldownSkipped Outcome = "cooldown_skipped"
	// OutcomeFailed: the payload never reached the store; sync status
	// recorded as failed on the existing row, if any.
	OutcomeFailed Outcome = "failed"
)

// Result reports one ingest.
type Result struct {
	Outcome   Outcome
	DatasetID uuid.UUID
	VersionID uuid.UUID
}

// Coordinator drives the ingest pipeline over the store bundle.
type Coordinator struct {
	stores   *repository.Stores
	resolver LinkResolver
	cooldown time.Duration
	log      *logger.Logger
	now      func() time.Time
}

// LinkResolver is invoked after a successful commit to (re-)discover the
// cross-platform external link of the dataset. Kept as an interface to
// break the package cycle with links.
type LinkResolver interface {
	Resolve(ctx context.Context, dataset *models.Dataset, raw json.RawMessage) error
}

// NewCoordinator creates a coordinator. cooldown is the minimum interval
// between metric-only versions; zero disables it. resolver may be nil.
func NewCoordinator(stores *repository.Stores, resolver LinkResolver, cooldown time.Duration, log *logger.Logger) *Coordinator {
	return &Coordinator{
		stores:   stores,
		resolver: resolver,
		cooldown: cooldown,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the coordinator's clock. Tests only.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// Ingest runs the full pipeline for one normalized snapshot and reports
// the outcome. Failures that never reached the store record a failed sync
// on the existing dataset row, best-effort, and return OutcomeFailed
// alongside the error.
func (c *Coordinator) Ingest(ctx context.Context, platform *models.Platform, dto *models.DatasetDTO) (*Result, error) {
	if err := dto.Validate(); err != nil {
		return c.failSync(ctx, platform, dto, err)
	}

	tree, err := snapshot.Decode(dto.Raw)
	if err != nil {
		return c.failSync(ctx, platform, dto, &models.InvalidDomainValueError{Field: "raw_payload", Value: dto.Slug})
	}

	stable, volatile := snapshot.Strip(tree)
	hash, err := snapshot.Fingerprint(stable)
	if err != nil {
		return c.failSync(ctx, platform, dto, err)
	}
	metrics := dto.MetricsTuple()

	dataset, err := c.stores.Datasets.GetBySlug(ctx, platform.ID, dto.Slug)
	switch {
	case errors.Is(err, models.ErrDatasetNotFound):
		return c.ingestNew(ctx, platform, dto, stable, volatile, hash, metrics)
	case err != nil:
		return nil, fmt.Errorf("resolve dataset identity: %w", err)
	}

	return c.ingestExisting(ctx, platform, dataset, dto, stable, volatile, hash, metrics)
}

func (c *Coordinator) ingestNew(ctx context.Context, platform *models.Platform, dto *models.DatasetDTO,
	stable, volatile map[string]any, hash string, metrics models.Metrics) (*Result, error) {

	now := c.now()
	dataset := &models.Dataset{
		ID:             uuid.New(),
		BUID:           dto.BUID,
		Slug:           dto.Slug,
		PlatformID:     platform.ID,
		Page:           dto.Page,
		Publisher:      dto.Publisher,
		Created:        orNow(dto.Created, now),
		Modified:       orNow(dto.Modified, now),
		Published:      dto.Published,
		Restricted:     dto.Restricted,
		LastSyncStatus: models.SyncSuccess,
		LastSync:       &now,
	}

	result := &Result{Outcome: OutcomeCreated, DatasetID: dataset.ID}
	err := c.stores.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := c.stores.Datasets.Create(ctx, dataset); err != nil {
			return err
		}
		versionID, err := c.writeVersion(ctx, dataset, dto, stable, volatile, hash, metrics, nil, now)
		if err != nil {
			return err
		}
		result.VersionID = versionID
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("dataset created",
		"dataset_id", dataset.ID, "slug", dataset.Slug, "hash", hash)

	c.resolveLinks(ctx, dataset, dto.Raw)
	return result, nil
}

func (c *Coordinator) ingestExisting(ctx context.Context, platform *models.Platform, dataset *models.Dataset,
	dto *models.DatasetDTO, stable, volatile map[string]any, hash string, metrics models.Metrics) (*Result, error) {

	prev, err := c.stores.Versions.GetLast(ctx, dataset.ID)
	if errors.Is(err, models.ErrVersionNotFound) {
		// row exists but history is empty; treat as first version
		prev = nil
	} else if err != nil {
		return nil, fmt.Errorf("load previous version: %w", err)
	}

	now := c.now()
	result := &Result{DatasetID: dataset.ID}

	var versionDiff any
	appendVersion := true

	if prev != nil {
		prevComparable, prevHash, err := c.previousComparable(ctx, prev)
		if err != nil {
			return nil, err
		}

		if hash == prevHash {
			// fast path: stable content identical
			prevMetrics := prev.Metrics
			if prevMetrics.Equal(metrics) {
				result.Outcome = OutcomeUnchanged
				appendVersion = false
			} else if !c.cooldownExpired(dataset, now) {
				result.Outcome = OutcomeCooldownSkipped
				appendVersion = false
			} else {
				result.Outcome = OutcomeMetricsOnly
				versionDiff = metricsDiff(prevMetrics, metrics)
			}
		} else {
			// slow path: structural change, cooldown does not apply
			result.Outcome = OutcomeChanged
			comparable := snapshot.Comparable(stable, metrics)
			versionDiff = diff.Diff(prevComparable, comparable)
		}
	} else {
		result.Outcome = OutcomeCreated
	}

	if !appendVersion {
		if dataset.IsDeleted {
			// reappeared with unchanged content; restore without a version
			dataset.IsDeleted = false
			dataset.LastSync = &now
			dataset.LastSyncStatus = models.SyncSuccess
			if err := c.stores.Datasets.Update(ctx, dataset); err != nil {
				return nil, err
			}
			return result, nil
		}
		if err := c.stores.Datasets.UpdateSyncStatus(ctx, dataset.ID, models.SyncSuccess, now); err != nil {
			return nil, err
		}
		return result, nil
	}

	err = c.stores.Tx.WithTx(ctx, func(ctx context.Context) error {
		versionID, err := c.writeVersion(ctx, dataset, dto, stable, volatile, hash, metrics, versionDiff, now)
		if err != nil {
			return err
		}
		result.VersionID = versionID
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("version appended",
		"dataset_id", dataset.ID, "slug", dataset.Slug,
		"outcome", string(result.Outcome), "hash", hash)

	c.resolveLinks(ctx, dataset, dto.Raw)
	return result, nil
}

// writeVersion upserts the blob, appends the version and rewrites the
// dataset row. Runs inside the caller's transaction.
func (c *Coordinator) writeVersion(ctx context.Context, dataset *models.Dataset, dto *models.DatasetDTO,
	stable, volatile map[string]any, hash string, metrics models.Metrics, versionDiff any, now time.Time) (uuid.UUID, error) {

	canonical, err := snapshot.CanonicalJSON(stable)
	if err != nil {
		return uuid.Nil, err
	}

	blobID, err := c.stores.Blobs.Upsert(ctx, &models.Blob{
		DatasetID: dataset.ID,
		Hash:      hash,
		Data:      canonical,
	})
	if err != nil {
		return uuid.Nil, err
	}

	diffJSON, err := diff.Marshal(versionDiff)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal diff: %w", err)
	}

	// same canonical encoding the replayer uses, so a rebuilt version is
	// byte-identical to the live one
	var volatileJSON json.RawMessage
	if len(volatile) > 0 {
		volatileJSON, err = snapshot.CanonicalJSON(volatile)
		if err != nil {
			return uuid.Nil, fmt.Errorf("marshal volatile metadata: %w", err)
		}
	}

	timestamp := c.versionTimestamp(dataset, now)
	version := &models.Version{
		ID:               uuid.New(),
		DatasetID:        dataset.ID,
		Timestamp:        timestamp,
		BlobID:           &blobID,
		Checksum:         dto.Checksum,
		Title:            dto.Title,
		Metrics:          metrics,
		Diff:             diffJSON,
		MetadataVolatile: volatileJSON,
		RawSnapshot:      dto.Raw,
	}
	if err := c.stores.Versions.Append(ctx, version); err != nil {
		return uuid.Nil, err
	}

	dataset.BUID = dto.BUID
	dataset.Page = dto.Page
	dataset.Publisher = dto.Publisher
	dataset.Modified = orNow(dto.Modified, now)
	dataset.Published = dto.Published
	dataset.Restricted = dto.Restricted
	dataset.IsDeleted = false // reappearance restores
	dataset.LastSync = &now
	dataset.LastSyncStatus = models.SyncSuccess
	dataset.LastVersionTimestamp = &timestamp
	if err := c.stores.Datasets.Update(ctx, dataset); err != nil {
		return uuid.Nil, err
	}

	return version.ID, nil
}

// versionTimestamp keeps per-dataset timestamps strictly monotonic even
// when the clock stalls.
func (c *Coordinator) versionTimestamp(dataset *models.Dataset, now time.Time) time.Time {
	if lvt := dataset.LastVersionTimestamp; lvt != nil && !now.After(*lvt) {
		return lvt.Add(time.Microsecond)
	}
	return now
}

func (c *Coordinator) cooldownExpired(dataset *models.Dataset, now time.Time) bool {
	if c.cooldown <= 0 {
		return true
	}
	lvt := dataset.LastVersionTimestamp
	if lvt == nil {
		return true
	}
	return now.Sub(*lvt) >= c.cooldown
}

// previousComparable rebuilds the comparable image of the previous
// version: its stable tree (from the blob, or re-stripped from the legacy
// raw snapshot) plus its stored metric columns.
func (c *Coordinator) previousComparable(ctx context.Context, prev *models.Version) (map[string]any, string, error) {
	var stable map[string]any
	var hash string

	if prev.BlobID != nil {
		blob, err := c.stores.Blobs.GetByID(ctx, *prev.BlobID)
		if err != nil {
			return nil, "", fmt.Errorf("load previous blob: %w", err)
		}
		stable, err = snapshot.Decode(blob.Data)
		if err != nil {
			return nil, "", fmt.Errorf("decode previous blob: %w", err)
		}
		hash = blob.Hash
	} else {
		// legacy row without blob_id
		tree, err := snapshot.Decode(prev.RawSnapshot)
		if err != nil {
			return nil, "", fmt.Errorf("decode legacy snapshot: %w", err)
		}
		stable, _ = snapshot.Strip(tree)
		hash, err = snapshot.Fingerprint(stable)
		if err != nil {
			return nil, "", err
		}
	}

	return snapshot.Comparable(stable, prev.Metrics), hash, nil
}

// failSync short-circuits the pipeline: only the sync status of the
// existing row is touched, in a separate best-effort write. No dataset or
// version is ever created here.
func (c *Coordinator) failSync(ctx context.Context, platform *models.Platform, dto *models.DatasetDTO, cause error) (*Result, error) {
	result := &Result{Outcome: OutcomeFailed}

	if dto != nil && dto.Slug != "" {
		if dataset, err := c.stores.Datasets.GetBySlug(ctx, platform.ID, dto.Slug); err == nil {
			result.DatasetID = dataset.ID
			if err := c.stores.Datasets.UpdateSyncStatus(ctx, dataset.ID, models.SyncFailed, c.now()); err != nil {
				c.log.Warn("failed to record sync failure", "dataset_id", dataset.ID, "error", err)
			}
		}
	}

	c.log.Warn("ingest failed", "platform", platform.Slug, "error", cause)
	return result, cause
}

// RecordUnreachable marks a dataset's sync as failed after an upstream
// fetch error, without a payload.
func (c *Coordinator) RecordUnreachable(ctx context.Context, platformID uuid.UUID, buid string) error {
	dataset, err := c.stores.Datasets.GetByBUID(ctx, platformID, buid)
	if err != nil {
		return err
	}
	return c.stores.Datasets.UpdateSyncStatus(ctx, dataset.ID, models.SyncFailed, c.now())
}

func (c *Coordinator) resolveLinks(ctx context.Context, dataset *models.Dataset, raw json.RawMessage) {
	if c.resolver == nil {
		return
	}
	if err := c.resolver.Resolve(ctx, dataset, raw); err != nil {
		c.log.Warn("link resolution failed", "dataset_id", dataset.ID, "error", err)
	}
}

// metricsDiff builds the metric-only diff: one changed entry per counter
// that moved, keyed by the version column name.
func metricsDiff(old, new models.Metrics) map[string]any {
	oldFields := old.Fields()
	out := map[string]any{}
	for name, newValue := range new.Fields() {
		if oldValue := oldFields[name]; oldValue != newValue {
			out[name] = map[string]any{
				diff.KindKey: diff.KindChanged,
				"old":        json.Number(strconv.FormatInt(oldValue, 10)),
				"new":        json.Number(strconv.FormatInt(newValue, 10)),
			}
		}
	}
	return out
}

func orNow(t time.Time, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}
