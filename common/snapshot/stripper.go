package snapshot

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/datapulse/catalog/common/models"
)

// Metric count keys stripped from the metrics subtree. These survive as
// first-class version columns and are re-injected on reconstruction.
var metricCountKeys = map[string]string{
	"downloads":        "downloads_count",
	"api_calls":        "api_calls_count",
	"views":            "views_count",
	"reuses":           "reuses_count",
	"followers":        "followers_count",
	"popularity_score": "popularity_score",
}

// Strip splits a snapshot into its stable and volatile subtrees. The union
// of both sides reproduces the input at the leaf level; the stable side
// contains no volatile keys. Strip is pure and idempotent.
func Strip(tree map[string]any) (stable, volatile map[string]any) {
	stable = DeepCopy(tree)
	volatile = map[string]any{}

	takeKey(stable, volatile, "last_modified")

	if inner, ok := stable["internal"].(map[string]any); ok {
		vol := map[string]any{}
		takeKey(inner, vol, "last_modified_internal")
		if len(vol) > 0 {
			volatile["internal"] = vol
		}
	}

	if metrics, ok := stable["metrics"].(map[string]any); ok {
		vol := map[string]any{}
		for k := range metrics {
			if volatileMetricKey(k) {
				takeKey(metrics, vol, k)
			}
		}
		if len(vol) > 0 {
			volatile["metrics"] = vol
		}
	}

	if harvest, ok := stable["harvest"].(map[string]any); ok {
		vol := stripHarvest(harvest)
		if len(vol) > 0 {
			volatile["harvest"] = vol
		}
	}

	if resources, ok := stable["resources"].([]any); ok {
		vols := make([]any, len(resources))
		dirty := false
		for i, r := range resources {
			res, ok := r.(map[string]any)
			if !ok {
				vols[i] = map[string]any{}
				continue
			}
			vol := stripResource(res)
			vols[i] = vol
			if len(vol) > 0 {
				dirty = true
			}
		}
		if dirty {
			volatile["resources"] = vols
		}
	}

	return stable, volatile
}

func stripResource(res map[string]any) map[string]any {
	vol := map[string]any{}
	takeKey(res, vol, "last_modified")

	if harvest, ok := res["harvest"].(map[string]any); ok {
		hv := stripHarvest(harvest)
		if len(hv) > 0 {
			vol["harvest"] = hv
		}
	}

	if extras, ok := res["extras"].(map[string]any); ok {
		ev := map[string]any{}
		for k := range extras {
			if strings.HasPrefix(k, "analysis:") || strings.HasPrefix(k, "check:") {
				takeKey(extras, ev, k)
			}
		}
		if len(ev) > 0 {
			vol["extras"] = ev
		}
	}
	return vol
}

// stripHarvest removes the harvest timestamps in place and returns them.
// uri, remote_id and status stay on the stable side.
func stripHarvest(harvest map[string]any) map[string]any {
	vol := map[string]any{}
	takeKey(harvest, vol, "last_update")
	takeKey(harvest, vol, "modified_at")
	return vol
}

func volatileMetricKey(k string) bool {
	if _, ok := metricCountKeys[k]; ok {
		return true
	}
	switch k {
	case "reuses_by_months", "downloads_by_months":
		return true
	}
	return strings.HasSuffix(k, "_by_months")
}

func takeKey(src, dst map[string]any, key string) {
	if v, ok := src[key]; ok {
		dst[key] = v
		delete(src, key)
	}
}

// Merge overlays a volatile subtree back onto a stable snapshot, returning
// a fresh tree. Merge(Strip(x)) reproduces x.
func Merge(stable, volatile map[string]any) map[string]any {
	out := DeepCopy(stable)
	mergeInto(out, volatile)
	return out
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		switch sv := v.(type) {
		case map[string]any:
			if dm, ok := dst[k].(map[string]any); ok {
				mergeInto(dm, sv)
				continue
			}
			dst[k] = deepCopyValue(sv)
		case []any:
			if da, ok := dst[k].([]any); ok && len(da) == len(sv) {
				for i, e := range sv {
					if em, ok := e.(map[string]any); ok {
						if dm, ok := da[i].(map[string]any); ok {
							mergeInto(dm, em)
							continue
						}
						if len(em) == 0 {
							continue
						}
					}
					if e != nil {
						da[i] = deepCopyValue(e)
					}
				}
				continue
			}
			dst[k] = deepCopyValue(sv)
		default:
			dst[k] = v
		}
	}
}

// SynthesizeMetrics reinjects the version's counters into the conventional
// metrics locations expected by downstream consumers.
func SynthesizeMetrics(m models.Metrics) map[string]any {
	fields := m.Fields()
	out := make(map[string]any, len(metricCountKeys))
	for snapKey, column := range metricCountKeys {
		out[snapKey] = json.Number(strconv.FormatInt(fields[column], 10))
	}
	return out
}

// Reconstruct rebuilds the original raw snapshot from a blob's stable tree,
// the version's volatile remainder and its metric columns. The result equals
// the ingested payload up to key ordering.
func Reconstruct(stable, volatile map[string]any, m models.Metrics) map[string]any {
	out := Merge(stable, volatile)

	metrics, ok := out["metrics"].(map[string]any)
	if !ok {
		return out
	}
	// volatile values win; synthesized counters only fill the gaps
	for k, v := range SynthesizeMetrics(m) {
		if _, present := metrics[k]; !present {
			metrics[k] = v
		}
	}
	return out
}

// Comparable builds the comparable image of a snapshot: the stable tree
// with the six metric columns injected at the top level. This is the input
// handed to the diff engine.
func Comparable(stable map[string]any, m models.Metrics) map[string]any {
	out := DeepCopy(stable)
	for column, v := range m.Fields() {
		out[column] = json.Number(strconv.FormatInt(v, 10))
	}
	return out
}
