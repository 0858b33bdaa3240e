package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Blob is one stored stable snapshot, content-addressed per dataset.
// Maps to: dataset_blobs table, unique (dataset_id, hash)
//
// Rows are immutable once written: upserts on conflict return the existing
// id and never touch data.
type Blob struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DatasetID uuid.UUID `db:"dataset_id" json:"dataset_id"`

	// 64 lowercase hex chars, sha256 over the canonical JSON of data.
	Hash string `db:"hash" json:"hash"`

	Data      json.RawMessage `db:"data" json:"data"`
	SizeBytes int64           `db:"size_bytes" json:"size_bytes"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Version is one append-only history entry of a dataset.
// Maps to: dataset_versions table, index (dataset_id, timestamp)
type Version struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DatasetID uuid.UUID `db:"dataset_id" json:"dataset_id"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`

	// Nil only on legacy rows written before the blob store existed;
	// reads then fall back to RawSnapshot.
	BlobID *uuid.UUID `db:"blob_id" json:"blob_id,omitempty"`

	// Source-level checksum reported by the fetcher, kept for legacy
	// compatibility.
	Checksum string `db:"checksum" json:"checksum,omitempty"`

	// Denormalized from the snapshot for display.
	Title string `db:"title" json:"title"`

	Metrics

	// Structural diff vs the previous version. Nil iff first version.
	Diff json.RawMessage `db:"diff" json:"diff,omitempty"`

	// Stripped volatile subtree, kept for faithful reconstruction.
	MetadataVolatile json.RawMessage `db:"metadata_volatile" json:"metadata_volatile,omitempty"`

	// Full raw snapshot. Populated on every write; the only source of
	// truth for legacy rows and the input stream of the bulk replayer.
	RawSnapshot json.RawMessage `db:"raw_snapshot" json:"-"`
}
