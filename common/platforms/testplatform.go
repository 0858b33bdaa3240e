package platforms

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/datapulse/catalog/common/models"
)

// TestConnector serves fixture payloads from memory. It backs RUN_MODE=TEST
// and the engine's unit tests; no network I/O happens.
type TestConnector struct {
	mu       sync.Mutex
	payloads map[string]json.RawMessage
}

// NewTestConnector creates an empty fixture connector.
func NewTestConnector() *TestConnector {
	return &TestConnector{payloads: map[string]json.RawMessage{}}
}

// Seed registers (or replaces) the payload served for a dataset id.
func (c *TestConnector) Seed(datasetID string, payload json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads[datasetID] = payload
}

// Remove drops a fixture, simulating a dataset vanishing upstream.
func (c *TestConnector) Remove(datasetID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.payloads, datasetID)
}

func (c *TestConnector) Fetch(ctx context.Context, url, key, datasetID string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.payloads[datasetID]
	if !ok {
		return nil, models.ErrDatasetUnreachable
	}
	return payload, nil
}

func (c *TestConnector) List(ctx context.Context, url, key string) ([]json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.payloads))
	for id := range c.payloads {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.payloads[id])
	}
	return out, nil
}

func (c *TestConnector) FindDatasetID(url string) (string, error) {
	if m := datagouvDatasetPath.FindStringSubmatch(url); m != nil {
		return m[1], nil
	}
	return "", &models.InvalidDomainValueError{Field: "dataset_url", Value: url}
}

// Map reads the generic fixture shape: top-level id, slug, title, page,
// publisher, created, modified and an optional metrics object.
func (c *TestConnector) Map(raw json.RawMessage) (*models.DatasetDTO, error) {
	id := gjson.GetBytes(raw, "id").String()
	if id == "" {
		return nil, &models.InvalidDomainValueError{Field: "id", Value: string(raw)}
	}

	slug := gjson.GetBytes(raw, "slug").String()
	if slug == "" {
		slug = id
	}

	dto := &models.DatasetDTO{
		BUID:      id,
		Slug:      slug,
		Title:     gjson.GetBytes(raw, "title").String(),
		Page:      gjson.GetBytes(raw, "page").String(),
		Publisher: gjson.GetBytes(raw, "publisher").String(),
		Created:   parseTime(gjson.GetBytes(raw, "created").String()),
		Modified:  parseTime(gjson.GetBytes(raw, "modified").String()),
		Checksum:  gjson.GetBytes(raw, "checksum").String(),
		Raw:       raw,
	}

	for path, target := range map[string]**int64{
		"metrics.downloads":        &dto.DownloadsCount,
		"metrics.api_calls":        &dto.APICallsCount,
		"metrics.views":            &dto.ViewsCount,
		"metrics.reuses":           &dto.ReusesCount,
		"metrics.followers":        &dto.FollowersCount,
		"metrics.popularity_score": &dto.PopularityScore,
	} {
		if v := gjson.GetBytes(raw, path); v.Exists() {
			*target = int64Ptr(v.Int())
		}
	}

	return dto, nil
}
