package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/tidwall/gjson"

	"github.com/datapulse/catalog/common/logger"
	"github.com/datapulse/catalog/common/models"
)

var datagouvDatasetPath = regexp.MustCompile(`/datasets/([^/?#]+)`)

// datagouvfrConnector talks to the data.gouv.fr API v1.
type datagouvfrConnector struct {
	client *http.Client
	log    *logger.Logger
}

func (c *datagouvfrConnector) Fetch(ctx context.Context, url, key, datasetID string) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/api/1/datasets/%s/", url, datasetID)
	return fetchJSON(ctx, c.client, endpoint, map[string]string{"X-API-KEY": key})
}

func (c *datagouvfrConnector) List(ctx context.Context, url, key string) ([]json.RawMessage, error) {
	headers := map[string]string{"X-API-KEY": key}

	var out []json.RawMessage
	endpoint := fmt.Sprintf("%s/api/1/datasets/?page_size=100", url)
	for endpoint != "" {
		body, err := fetchJSON(ctx, c.client, endpoint, headers)
		if err != nil {
			return nil, err
		}

		data := gjson.GetBytes(body, "data")
		if !data.IsArray() {
			return nil, &models.InvalidDomainValueError{Field: "listing", Value: endpoint}
		}
		data.ForEach(func(_, item gjson.Result) bool {
			out = append(out, json.RawMessage(item.Raw))
			return true
		})

		endpoint = gjson.GetBytes(body, "next_page").String()
	}
	return out, nil
}

func (c *datagouvfrConnector) FindDatasetID(url string) (string, error) {
	if m := datagouvDatasetPath.FindStringSubmatch(url); m != nil {
		return m[1], nil
	}
	return "", &models.InvalidDomainValueError{Field: "dataset_url", Value: url}
}

func (c *datagouvfrConnector) Map(raw json.RawMessage) (*models.DatasetDTO, error) {
	id := gjson.GetBytes(raw, "id").String()
	slug := gjson.GetBytes(raw, "slug").String()
	if id == "" || slug == "" {
		return nil, &models.InvalidDomainValueError{Field: "dataset", Value: string(raw)}
	}

	dto := &models.DatasetDTO{
		BUID:       id,
		Slug:       slug,
		Title:      gjson.GetBytes(raw, "title").String(),
		Page:       gjson.GetBytes(raw, "page").String(),
		Publisher:  gjson.GetBytes(raw, "organization.name").String(),
		Created:    parseTime(gjson.GetBytes(raw, "created_at").String()),
		Modified:   parseTime(gjson.GetBytes(raw, "last_modified").String()),
		Restricted: gjson.GetBytes(raw, "private").Bool(),
		Checksum:   gjson.GetBytes(raw, "harvest.remote_id").String(),
		Raw:        raw,
	}

	if v := gjson.GetBytes(raw, "internal.created_at_internal"); v.Exists() {
		if t := parseTime(v.String()); !t.IsZero() {
			dto.Published = &t
		}
	}

	if v := gjson.GetBytes(raw, "metrics.views"); v.Exists() {
		dto.ViewsCount = int64Ptr(v.Int())
	}
	if v := gjson.GetBytes(raw, "metrics.reuses"); v.Exists() {
		dto.ReusesCount = int64Ptr(v.Int())
	}
	if v := gjson.GetBytes(raw, "metrics.followers"); v.Exists() {
		dto.FollowersCount = int64Ptr(v.Int())
	}
	if v := gjson.GetBytes(raw, "metrics.downloads"); v.Exists() {
		dto.DownloadsCount = int64Ptr(v.Int())
	}
	if v := gjson.GetBytes(raw, "metrics.popularity_score"); v.Exists() {
		dto.PopularityScore = int64Ptr(v.Int())
	}
	if v := gjson.GetBytes(raw, "quality.score"); v.Exists() {
		q := v.Float()
		dto.Quality = &q
	}

	return dto, nil
}
