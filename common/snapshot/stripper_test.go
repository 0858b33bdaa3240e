package snapshot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapulse/catalog/common/models"
)

const samplePayload = `{
	"id": "ds-1",
	"title": "Air quality",
	"last_modified": "2026-05-01T10:00:00Z",
	"internal": {
		"schema": "v2",
		"last_modified_internal": "2026-05-01T10:00:01Z"
	},
	"metrics": {
		"downloads": 120,
		"views": 3400,
		"reuses_by_months": {"2026-04": 2},
		"quality_score": 0.8
	},
	"harvest": {
		"uri": "https://remote.example/ds-1",
		"last_update": "2026-05-01T09:00:00Z"
	},
	"resources": [
		{
			"id": "r1",
			"url": "https://files.example/r1.csv",
			"last_modified": "2026-05-01T08:00:00Z",
			"harvest": {"remote_id": "x", "modified_at": "2026-05-01T07:00:00Z"},
			"extras": {"analysis:checksum": "abc", "check:status": 200, "license": "lov2"}
		},
		{"id": "r2", "url": "https://files.example/r2.csv"}
	]
}`

func decodeSample(t *testing.T) map[string]any {
	t.Helper()
	tree, err := Decode([]byte(samplePayload))
	require.NoError(t, err)
	return tree
}

func TestStrip_RemovesVolatileKeys(t *testing.T) {
	stable, volatile := Strip(decodeSample(t))

	assert.NotContains(t, stable, "last_modified")
	assert.NotContains(t, stable["internal"].(map[string]any), "last_modified_internal")

	metrics := stable["metrics"].(map[string]any)
	assert.NotContains(t, metrics, "downloads")
	assert.NotContains(t, metrics, "views")
	assert.NotContains(t, metrics, "reuses_by_months")
	// non-volatile metric keys stay
	assert.Contains(t, metrics, "quality_score")

	harvest := stable["harvest"].(map[string]any)
	assert.NotContains(t, harvest, "last_update")
	assert.Contains(t, harvest, "uri")

	r1 := stable["resources"].([]any)[0].(map[string]any)
	assert.NotContains(t, r1, "last_modified")
	assert.NotContains(t, r1["harvest"].(map[string]any), "modified_at")
	extras := r1["extras"].(map[string]any)
	assert.NotContains(t, extras, "analysis:checksum")
	assert.NotContains(t, extras, "check:status")
	assert.Contains(t, extras, "license")

	// volatile carries everything that was taken
	assert.Contains(t, volatile, "last_modified")
	assert.Contains(t, volatile["metrics"].(map[string]any), "downloads")
	vols := volatile["resources"].([]any)
	require.Len(t, vols, 2)
	assert.Contains(t, vols[0].(map[string]any), "last_modified")
	assert.Empty(t, vols[1].(map[string]any))
}

func TestStrip_Idempotent(t *testing.T) {
	stable, _ := Strip(decodeSample(t))
	again, volatile := Strip(stable)

	assert.Empty(t, volatile)

	h1, err := Fingerprint(stable)
	require.NoError(t, err)
	h2, err := Fingerprint(again)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestStrip_PureInput(t *testing.T) {
	tree := decodeSample(t)
	before, err := CanonicalJSON(tree)
	require.NoError(t, err)

	Strip(tree)

	after, err := CanonicalJSON(tree)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestMerge_RestoresOriginal(t *testing.T) {
	tree := decodeSample(t)
	original, err := CanonicalJSON(tree)
	require.NoError(t, err)

	stable, volatile := Strip(tree)
	merged := Merge(stable, volatile)

	restored, err := CanonicalJSON(merged)
	require.NoError(t, err)
	assert.Equal(t, string(original), string(restored))
}

func TestStrip_FingerprintStableUnderVolatileChurn(t *testing.T) {
	a := decodeSample(t)
	b := decodeSample(t)
	b["last_modified"] = "2026-06-30T23:59:59Z"
	b["metrics"].(map[string]any)["downloads"] = json.Number("99999")

	sa, _ := Strip(a)
	sb, _ := Strip(b)

	ha, err := Fingerprint(sa)
	require.NoError(t, err)
	hb, err := Fingerprint(sb)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestReconstruct_FillsMissingCounters(t *testing.T) {
	stable, volatile := Strip(decodeSample(t))
	// drop the stored volatile counters to simulate a metric-only version
	delete(volatile["metrics"].(map[string]any), "views")

	m := models.Metrics{DownloadsCount: 120, ViewsCount: 3400}
	out := Reconstruct(stable, volatile, m)

	metrics := out["metrics"].(map[string]any)
	// volatile value wins where present, synthesized where missing
	assert.Equal(t, json.Number("120"), metrics["downloads"])
	assert.Equal(t, json.Number("3400"), metrics["views"])
	assert.Contains(t, metrics, "quality_score")
}

func TestComparable_InjectsMetricColumns(t *testing.T) {
	stable, _ := Strip(decodeSample(t))
	m := models.Metrics{DownloadsCount: 7, PopularityScore: 3}

	img := Comparable(stable, m)

	assert.Equal(t, json.Number("7"), img["downloads_count"])
	assert.Equal(t, json.Number("3"), img["popularity_score"])
	assert.Equal(t, json.Number("0"), img["views_count"])
	// the stable tree itself is untouched
	assert.NotContains(t, stable, "downloads_count")
}
