package models

import (
	"time"

	"github.com/google/uuid"
)

// PlatformType identifies the upstream catalog software. The set is closed:
// connectors are selected by a factory keyed on this enum.
type PlatformType string

const (
	PlatformOpendatasoft PlatformType = "opendatasoft"
	PlatformDataGouvFr   PlatformType = "datagouvfr"
	PlatformTest         PlatformType = "test"
)

// ParsePlatformType validates a raw string against the closed platform set.
func ParsePlatformType(s string) (PlatformType, error) {
	switch PlatformType(s) {
	case PlatformOpendatasoft, PlatformDataGouvFr, PlatformTest:
		return PlatformType(s), nil
	default:
		return "", ErrInvalidPlatformType
	}
}

// SyncStatus records the outcome of the most recent sync touching a row.
type SyncStatus string

const (
	SyncSuccess SyncStatus = "success"
	SyncFailed  SyncStatus = "failed"
	SyncUnknown SyncStatus = "unknown"
)

// Platform represents one monitored open-data portal.
// Maps to: platforms table
type Platform struct {
	ID             uuid.UUID    `db:"id" json:"id"`
	Name           string       `db:"name" json:"name"`
	Slug           string       `db:"slug" json:"slug"`
	Type           PlatformType `db:"type" json:"type"`
	URL            string       `db:"url" json:"url"`
	OrganizationID string       `db:"organization_id" json:"organization_id,omitempty"`

	// API key for the upstream portal. Never serialized.
	Key string `db:"key" json:"-"`

	DatasetsCount  int        `db:"datasets_count" json:"datasets_count"`
	LastSync       *time.Time `db:"last_sync" json:"last_sync,omitempty"`
	LastSyncStatus SyncStatus `db:"last_sync_status" json:"last_sync_status"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// PlatformSyncHistory is one platform-level sync outcome.
// Maps to: platform_sync_histories table
type PlatformSyncHistory struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PlatformID      uuid.UUID  `db:"platform_id" json:"platform_id"`
	StartedAt       time.Time  `db:"started_at" json:"started_at"`
	FinishedAt      *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	Status          SyncStatus `db:"status" json:"status"`
	DatasetsSynced  int        `db:"datasets_synced" json:"datasets_synced"`
	DatasetsFailed  int        `db:"datasets_failed" json:"datasets_failed"`
	DatasetsDeleted int        `db:"datasets_deleted" json:"datasets_deleted"`
	Error           string     `db:"error" json:"error,omitempty"`
}
