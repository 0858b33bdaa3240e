// Package platforms holds the per-platform connectors: fetching raw
// payloads from the upstream portal, recovering canonical dataset ids from
// catalog URLs, and normalizing payloads into the platform-agnostic DTO.
package platforms

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/datapulse/catalog/common/logger"
	"github.com/datapulse/catalog/common/models"
)

// Connector is implemented once per platform type. The set is closed;
// New is the only way to obtain one.
type Connector interface {
	// Fetch retrieves the raw payload of a single dataset. Transport
	// failures and non-2xx statuses surface as ErrDatasetUnreachable so
	// the coordinator can record a failed sync and move on.
	Fetch(ctx context.Context, url, key, datasetID string) (json.RawMessage, error)

	// List retrieves the complete catalog listing of a platform. Used by
	// platform-level syncs, whose visible-buid set feeds MarkAbsent.
	List(ctx context.Context, url, key string) ([]json.RawMessage, error)

	// FindDatasetID recovers the canonical dataset identifier from a
	// catalog URL.
	FindDatasetID(url string) (string, error)

	// Map normalizes a raw payload into the platform-agnostic DTO. The
	// untouched payload is carried in DTO.Raw.
	Map(raw json.RawMessage) (*models.DatasetDTO, error)
}

// New returns the connector for a platform type.
func New(t models.PlatformType, client *http.Client, log *logger.Logger) (Connector, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	switch t {
	case models.PlatformOpendatasoft:
		return &opendatasoftConnector{client: client, log: log}, nil
	case models.PlatformDataGouvFr:
		return &datagouvfrConnector{client: client, log: log}, nil
	case models.PlatformTest:
		return NewTestConnector(), nil
	default:
		return nil, models.ErrInvalidPlatformType
	}
}

// parseTime tries the timestamp layouts the two portals emit.
func parseTime(s string) time.Time {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000000",
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func int64Ptr(v int64) *int64 { return &v }
