package models

import (
	"time"

	"github.com/google/uuid"
)

// Dataset is the engine's view of one catalogued dataset.
// Maps to: datasets table
//
// (platform_id, buid) and (platform_id, slug) are unique. linked_dataset_id
// is a weak back-reference to the same dataset published on another
// platform; it never implies ownership.
type Dataset struct {
	ID         uuid.UUID `db:"id" json:"id"`
	BUID       string    `db:"buid" json:"buid"`
	Slug       string    `db:"slug" json:"slug"`
	PlatformID uuid.UUID `db:"platform_id" json:"platform_id"`

	// Canonical public URL of the dataset page.
	Page      string `db:"page" json:"page"`
	Publisher string `db:"publisher" json:"publisher,omitempty"`

	Created    time.Time  `db:"created" json:"created"`
	Modified   time.Time  `db:"modified" json:"modified"`
	Published  *time.Time `db:"published" json:"published,omitempty"`
	Restricted bool       `db:"restricted" json:"restricted"`
	IsDeleted  bool       `db:"is_deleted" json:"is_deleted"`

	LastSync             *time.Time `db:"last_sync" json:"last_sync,omitempty"`
	LastSyncStatus       SyncStatus `db:"last_sync_status" json:"last_sync_status"`
	LastVersionTimestamp *time.Time `db:"last_version_timestamp" json:"last_version_timestamp,omitempty"`

	LinkedDatasetID *uuid.UUID `db:"linked_dataset_id" json:"linked_dataset_id,omitempty"`
}

// Metrics is the six-field volatile counter tuple detached from snapshots
// and persisted as first-class version columns.
type Metrics struct {
	DownloadsCount  int64 `db:"downloads_count" json:"downloads_count"`
	APICallsCount   int64 `db:"api_calls_count" json:"api_calls_count"`
	ViewsCount      int64 `db:"views_count" json:"views_count"`
	ReusesCount     int64 `db:"reuses_count" json:"reuses_count"`
	FollowersCount  int64 `db:"followers_count" json:"followers_count"`
	PopularityScore int64 `db:"popularity_score" json:"popularity_score"`
}

// Validate rejects negative counters.
func (m Metrics) Validate() error {
	for _, f := range []struct {
		name  string
		value int64
	}{
		{"downloads_count", m.DownloadsCount},
		{"api_calls_count", m.APICallsCount},
		{"views_count", m.ViewsCount},
		{"reuses_count", m.ReusesCount},
		{"followers_count", m.FollowersCount},
		{"popularity_score", m.PopularityScore},
	} {
		if f.value < 0 {
			return &InvalidMetricValueError{Name: f.name, Value: f.value}
		}
	}
	return nil
}

// Equal reports exact equality of all six counters.
func (m Metrics) Equal(o Metrics) bool {
	return m == o
}

// Fields returns the counters keyed by their column names, in no particular
// order. Used to build comparable images and metric-only diffs.
func (m Metrics) Fields() map[string]int64 {
	return map[string]int64{
		"downloads_count":  m.DownloadsCount,
		"api_calls_count":  m.APICallsCount,
		"views_count":      m.ViewsCount,
		"reuses_count":     m.ReusesCount,
		"followers_count":  m.FollowersCount,
		"popularity_score": m.PopularityScore,
	}
}
