package snapshot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalJSON_SortsKeys(t *testing.T) {
	tree, err := Decode([]byte(`{"b":2,"a":1,"c":{"z":true,"y":"s"}}`))
	require.NoError(t, err)

	out, err := CanonicalJSON(tree)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":{"y":"s","z":true}}`, string(out))
}

func TestCanonicalJSON_PreservesNumberText(t *testing.T) {
	// 1.50 and 1e2 must survive re-encoding verbatim, not as float64
	tree, err := Decode([]byte(`{"x":1.50,"y":1e2,"z":9007199254740993}`))
	require.NoError(t, err)

	out, err := CanonicalJSON(tree)
	require.NoError(t, err)
	assert.Equal(t, `{"x":1.50,"y":1e2,"z":9007199254740993}`, string(out))
}

func TestFingerprint_IndependentOfKeyOrder(t *testing.T) {
	a, err := Decode([]byte(`{"title":"t","resources":[{"id":"r1","size":10}]}`))
	require.NoError(t, err)
	b, err := Decode([]byte(`{"resources":[{"size":10,"id":"r1"}],"title":"t"}`))
	require.NoError(t, err)

	ha, err := Fingerprint(a)
	require.NoError(t, err)
	hb, err := Fingerprint(b)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)
}

func TestFingerprint_SensitiveToValues(t *testing.T) {
	a, err := Decode([]byte(`{"title":"t"}`))
	require.NoError(t, err)
	b, err := Decode([]byte(`{"title":"u"}`))
	require.NoError(t, err)

	ha, _ := Fingerprint(a)
	hb, _ := Fingerprint(b)
	assert.NotEqual(t, ha, hb)
}

func TestDeepCopy_Independent(t *testing.T) {
	tree, err := Decode([]byte(`{"a":{"b":[1,2]}}`))
	require.NoError(t, err)

	cp := DeepCopy(tree)
	cp["a"].(map[string]any)["b"].([]any)[0] = "mutated"

	assert.Equal(t, json.Number("1"), tree["a"].(map[string]any)["b"].([]any)[0])
}
