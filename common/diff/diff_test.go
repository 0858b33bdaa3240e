package diff

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return v
}

func TestDiff_EqualTreesAreNil(t *testing.T) {
	a := decode(t, `{"title":"t","resources":[{"id":"r1"}]}`)
	b := decode(t, `{"resources":[{"id":"r1"}],"title":"t"}`)
	assert.Nil(t, Diff(a, b))
}

func TestDiff_ScalarChange(t *testing.T) {
	d := Diff(decode(t, `{"title":"old"}`), decode(t, `{"title":"new"}`))
	dm := d.(map[string]any)
	leaf := dm["title"].(map[string]any)
	assert.Equal(t, KindChanged, leaf[KindKey])
	assert.Equal(t, "old", leaf["old"])
	assert.Equal(t, "new", leaf["new"])
}

func TestDiff_AddedAndRemovedKeys(t *testing.T) {
	d := Diff(decode(t, `{"a":1,"b":2}`), decode(t, `{"a":1,"c":3}`)).(map[string]any)

	assert.NotContains(t, d, "a")
	assert.Equal(t, KindRemoved, d["b"].(map[string]any)[KindKey])
	assert.Equal(t, KindAdded, d["c"].(map[string]any)[KindKey])
}

func TestDiff_NullAndMissingAreDistinct(t *testing.T) {
	d := Diff(decode(t, `{"a":null}`), decode(t, `{}`)).(map[string]any)
	assert.Equal(t, KindRemoved, d["a"].(map[string]any)[KindKey])

	d2 := Diff(decode(t, `{}`), decode(t, `{"a":null}`)).(map[string]any)
	assert.Equal(t, KindAdded, d2["a"].(map[string]any)[KindKey])
}

func TestDiff_Arrays(t *testing.T) {
	d := Diff(decode(t, `[1,2,3]`), decode(t, `[1,9,3,4]`)).([]any)
	require.Len(t, d, 4)
	assert.Nil(t, d[0])
	assert.Equal(t, KindChanged, d[1].(map[string]any)[KindKey])
	assert.Nil(t, d[2])
	assert.Equal(t, KindAdded, d[3].(map[string]any)[KindKey])
}

func TestDiff_TypeFlipIsLeafChange(t *testing.T) {
	d := Diff(decode(t, `{"v":[1,2]}`), decode(t, `{"v":{"a":1}}`)).(map[string]any)
	leaf := d["v"].(map[string]any)
	assert.Equal(t, KindChanged, leaf[KindKey])
}

func TestApply_RoundTrip(t *testing.T) {
	cases := []struct{ old, new string }{
		{`{"a":1}`, `{"a":2}`},
		{`{"a":1,"b":{"c":[1,2,3]}}`, `{"a":1,"b":{"c":[1,5]},"d":true}`},
		{`{"resources":[{"id":"r1","size":10}]}`, `{"resources":[{"id":"r1","size":12},{"id":"r2"}]}`},
		{`{"x":null}`, `{}`},
		{`{"deep":{"nest":{"v":"a"}}}`, `{"deep":{"nest":{"v":"b","w":1}}}`},
	}
	for _, tc := range cases {
		old := decode(t, tc.old)
		new := decode(t, tc.new)
		got := Apply(Diff(old, new), old)
		assert.True(t, Equal(got, new), "Apply(Diff) mismatch for %s -> %s", tc.old, tc.new)
	}
}

func TestMarshal_NilStaysNil(t *testing.T) {
	out, err := Marshal(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestMarshal_EncodesTree(t *testing.T) {
	d := Diff(decode(t, `{"a":1}`), decode(t, `{"a":2}`))
	out, err := Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":{"_t":"changed","old":1,"new":2}}`, string(out))
}
