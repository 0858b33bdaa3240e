package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/tidwall/gjson"

	"github.com/datapulse/catalog/common/logger"
	"github.com/datapulse/catalog/common/models"
)

var odsExplorePath = regexp.MustCompile(`/explore/dataset/([^/?#]+)`)

// opendatasoftConnector talks to the Opendatasoft Explore API v2.
type opendatasoftConnector struct {
	client *http.Client
	log    *logger.Logger
}

func (c *opendatasoftConnector) Fetch(ctx context.Context, url, key, datasetID string) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/api/explore/v2.1/catalog/datasets/%s", url, datasetID)
	return fetchJSON(ctx, c.client, endpoint, map[string]string{"Authorization": "Apikey " + key})
}

func (c *opendatasoftConnector) List(ctx context.Context, url, key string) ([]json.RawMessage, error) {
	headers := map[string]string{"Authorization": "Apikey " + key}

	var out []json.RawMessage
	offset := 0
	const pageSize = 100
	for {
		endpoint := fmt.Sprintf("%s/api/explore/v2.1/catalog/datasets?limit=%d&offset=%d", url, pageSize, offset)
		body, err := fetchJSON(ctx, c.client, endpoint, headers)
		if err != nil {
			return nil, err
		}

		results := gjson.GetBytes(body, "results")
		if !results.IsArray() {
			return nil, &models.InvalidDomainValueError{Field: "listing", Value: endpoint}
		}
		count := 0
		results.ForEach(func(_, item gjson.Result) bool {
			out = append(out, json.RawMessage(item.Raw))
			count++
			return true
		})
		if count < pageSize {
			return out, nil
		}
		offset += pageSize
	}
}

func (c *opendatasoftConnector) FindDatasetID(url string) (string, error) {
	if m := odsExplorePath.FindStringSubmatch(url); m != nil {
		return m[1], nil
	}
	return "", &models.InvalidDomainValueError{Field: "dataset_url", Value: url}
}

func (c *opendatasoftConnector) Map(raw json.RawMessage) (*models.DatasetDTO, error) {
	datasetID := gjson.GetBytes(raw, "dataset_id").String()
	if datasetID == "" {
		return nil, &models.InvalidDomainValueError{Field: "dataset_id", Value: string(raw)}
	}

	metas := gjson.GetBytes(raw, "metas.default")

	dto := &models.DatasetDTO{
		BUID:       datasetID,
		Slug:       datasetID,
		Title:      metas.Get("title").String(),
		Page:       metas.Get("references").String(),
		Publisher:  metas.Get("publisher").String(),
		Created:    parseTime(metas.Get("metadata_processed").String()),
		Modified:   parseTime(metas.Get("modified").String()),
		Restricted: gjson.GetBytes(raw, "visibility").String() == "restricted",
		Checksum:   gjson.GetBytes(raw, "data_processed").String(),
		Raw:        raw,
	}

	if published := metas.Get("data_processed"); published.Exists() {
		if t := parseTime(published.String()); !t.IsZero() {
			dto.Published = &t
		}
	}

	if v := gjson.GetBytes(raw, "metrics.download_count"); v.Exists() {
		dto.DownloadsCount = int64Ptr(v.Int())
	}
	if v := gjson.GetBytes(raw, "metrics.api_call_count"); v.Exists() {
		dto.APICallsCount = int64Ptr(v.Int())
	}
	if v := gjson.GetBytes(raw, "metrics.popularity_score"); v.Exists() {
		dto.PopularityScore = int64Ptr(v.Int())
	}

	return dto, nil
}

// fetchJSON performs a GET and returns the body, mapping transport errors
// and non-2xx statuses to ErrDatasetUnreachable.
func fetchJSON(ctx context.Context, client *http.Client, url string, headers map[string]string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDatasetUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", models.ErrDatasetUnreachable, url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDatasetUnreachable, err)
	}
	if !json.Valid(body) {
		return nil, &models.InvalidDomainValueError{Field: "payload", Value: url}
	}
	return body, nil
}
