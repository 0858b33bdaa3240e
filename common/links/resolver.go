// Package links discovers the cross-platform external link of a dataset
// from its raw payload and maintains the symmetric back-references.
package links

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/datapulse/catalog/common/logger"
	"github.com/datapulse/catalog/common/models"
	"github.com/datapulse/catalog/common/repository"
)

var (
	explorePathRe  = regexp.MustCompile(`/explore/dataset/([^/?#\s]+)`)
	datasetsPathRe = regexp.MustCompile(`/datasets/([^/?#\s]+)`)
	descURLRe      = regexp.MustCompile(`https?://[^\s"')]+`)
)

// Resolver maintains the bidirectional external-link graph.
type Resolver struct {
	stores *repository.Stores
	log    *logger.Logger
}

// NewResolver creates a resolver over the store bundle.
func NewResolver(stores *repository.Stores, log *logger.Logger) *Resolver {
	return &Resolver{stores: stores, log: log}
}

// Resolve extracts an external link slug from the raw payload and, when a
// candidate dataset exists on another platform, links both sides. The link
// is always symmetric, never a self-link, and re-runs reach a fixpoint: an
// intact symmetric pairing is kept, a candidate symmetrically paired with a
// third dataset is never stolen, and repointing a side first clears its
// previous partner's back-reference.
func (r *Resolver) Resolve(ctx context.Context, dataset *models.Dataset, raw json.RawMessage) error {
	slug := extractLinkSlug(raw)
	if slug == "" {
		// loose fallback: identical slug on another platform
		slug = dataset.Slug
	}

	if dataset.LinkedDatasetID != nil {
		cur, err := r.stores.Datasets.GetByID(ctx, *dataset.LinkedDatasetID)
		if err != nil && !errors.Is(err, models.ErrDatasetNotFound) {
			return err
		}
		if err == nil && !cur.IsDeleted &&
			cur.LinkedDatasetID != nil && *cur.LinkedDatasetID == dataset.ID {
			return nil
		}
	}

	candidates, err := r.stores.Datasets.FindBySlugExcludingPlatform(ctx, slug, dataset.PlatformID)
	if err != nil {
		return err
	}

	// ordered by created ascending; earliest free candidate wins
	var target *models.Dataset
	for _, c := range candidates {
		if c.ID == dataset.ID {
			continue
		}
		taken, err := r.pairedElsewhere(ctx, c, dataset.ID)
		if err != nil {
			return err
		}
		if taken {
			continue
		}
		target = c
		break
	}
	if target == nil {
		return nil
	}

	if err := r.unlinkStalePartner(ctx, dataset, target.ID); err != nil {
		return err
	}
	if err := r.unlinkStalePartner(ctx, target, dataset.ID); err != nil {
		return err
	}

	if err := r.stores.Datasets.SetLink(ctx, dataset.ID, &target.ID); err != nil {
		return err
	}
	if err := r.stores.Datasets.SetLink(ctx, target.ID, &dataset.ID); err != nil {
		return err
	}

	r.log.Info("datasets linked",
		"dataset_id", dataset.ID, "linked_dataset_id", target.ID, "slug", slug)
	return nil
}

// pairedElsewhere reports whether c sits in an intact symmetric pairing
// with a dataset other than self.
func (r *Resolver) pairedElsewhere(ctx context.Context, c *models.Dataset, self uuid.UUID) (bool, error) {
	if c.LinkedDatasetID == nil || *c.LinkedDatasetID == self {
		return false, nil
	}
	partner, err := r.stores.Datasets.GetByID(ctx, *c.LinkedDatasetID)
	if errors.Is(err, models.ErrDatasetNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !partner.IsDeleted &&
		partner.LinkedDatasetID != nil && *partner.LinkedDatasetID == c.ID, nil
}

// unlinkStalePartner clears the back-reference of d's previous partner
// when d is being repointed at next, so no dangling one-way link survives.
func (r *Resolver) unlinkStalePartner(ctx context.Context, d *models.Dataset, next uuid.UUID) error {
	if d.LinkedDatasetID == nil || *d.LinkedDatasetID == next {
		return nil
	}
	prev, err := r.stores.Datasets.GetByID(ctx, *d.LinkedDatasetID)
	if errors.Is(err, models.ErrDatasetNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if prev.LinkedDatasetID != nil && *prev.LinkedDatasetID == d.ID {
		if err := r.stores.Datasets.SetLink(ctx, prev.ID, nil); err != nil {
			return err
		}
	}
	return nil
}

// extractLinkSlug probes the payload paths in priority order. Empty string
// means no explicit link was found.
func extractLinkSlug(raw json.RawMessage) string {
	// 1. harvest source pointing at a data.gouv.fr-style catalog
	for _, path := range []string{"metadata.default.source", "metas.default.source"} {
		if src := gjson.GetBytes(raw, path).String(); src != "" {
			if slug := datagouvSlugFromURL(src); slug != "" {
				return slug
			}
		}
	}

	// 2. harvest uri carrying an opendatasoft explore path
	for _, path := range []string{"harvest.uri", "harvest.remote_url"} {
		if uri := gjson.GetBytes(raw, path).String(); uri != "" {
			if m := explorePathRe.FindStringSubmatch(uri); m != nil {
				return m[1]
			}
		}
	}

	// 3. first catalog URL mentioned in the description
	if desc := gjson.GetBytes(raw, "description").String(); desc != "" {
		for _, u := range descURLRe.FindAllString(desc, -1) {
			if m := explorePathRe.FindStringSubmatch(u); m != nil {
				return m[1]
			}
			if m := datasetsPathRe.FindStringSubmatch(u); m != nil {
				return m[1]
			}
		}
	}

	return ""
}

// datagouvSlugFromURL returns the last non-empty path segment when the
// URL's host is data.gouv.fr or one of its subdomains.
func datagouvSlugFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host != "data.gouv.fr" && !strings.HasSuffix(host, ".data.gouv.fr") {
		return ""
	}
	segments := strings.Split(u.Path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}
