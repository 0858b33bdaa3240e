package models

import (
	"encoding/json"
	"time"
)

// DatasetDTO is the platform-agnostic output of a connector's Map. Metric
// fields are pointers: nil means the platform did not report the counter.
type DatasetDTO struct {
	BUID      string `json:"buid"`
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Page      string `json:"page"`
	Publisher string `json:"publisher,omitempty"`

	Created    time.Time  `json:"created"`
	Modified   time.Time  `json:"modified"`
	Published  *time.Time `json:"published,omitempty"`
	Restricted bool       `json:"restricted"`

	// Source-level checksum when the platform exposes one.
	Checksum string `json:"checksum,omitempty"`

	DownloadsCount  *int64 `json:"downloads_count,omitempty"`
	APICallsCount   *int64 `json:"api_calls_count,omitempty"`
	ViewsCount      *int64 `json:"views_count,omitempty"`
	ReusesCount     *int64 `json:"reuses_count,omitempty"`
	FollowersCount  *int64 `json:"followers_count,omitempty"`
	PopularityScore *int64 `json:"popularity_score,omitempty"`

	Quality *float64 `json:"quality,omitempty"`

	// Untouched platform payload, carried through for persistence,
	// stripping and link discovery.
	Raw json.RawMessage `json:"-"`
}

// MetricsTuple collapses the optional counters into the six-field tuple,
// treating missing counters as zero.
func (d *DatasetDTO) MetricsTuple() Metrics {
	deref := func(p *int64) int64 {
		if p == nil {
			return 0
		}
		return *p
	}
	return Metrics{
		DownloadsCount:  deref(d.DownloadsCount),
		APICallsCount:   deref(d.APICallsCount),
		ViewsCount:      deref(d.ViewsCount),
		ReusesCount:     deref(d.ReusesCount),
		FollowersCount:  deref(d.FollowersCount),
		PopularityScore: deref(d.PopularityScore),
	}
}

// Validate checks the DTO against the domain invariants before it enters
// the ingest pipeline.
func (d *DatasetDTO) Validate() error {
	if d.BUID == "" {
		return &InvalidDomainValueError{Field: "buid", Value: d.BUID}
	}
	if d.Slug == "" {
		return &InvalidDomainValueError{Field: "slug", Value: d.Slug}
	}
	if len(d.Raw) == 0 || !json.Valid(d.Raw) {
		return &InvalidDomainValueError{Field: "raw_payload", Value: d.Slug}
	}
	return d.MetricsTuple().Validate()
}
