// Package diff implements the recursive structural diff between two
// comparable snapshot images. The output is itself a JSON tree; change
// kinds are tagged with the reserved discriminator key "_t".
package diff

import (
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Discriminator key and change kinds.
const (
	KindKey = "_t"

	KindChanged = "changed"
	KindAdded   = "added"
	KindRemoved = "removed"
)

// Diff computes the structural diff between old and new. It returns nil
// when the trees are structurally equal. Nested objects diff recursively
// (per-key, no discriminator); arrays are compared element-wise by index
// with the longer side's extra elements reported as added or removed.
func Diff(old, new any) any {
	if Equal(old, new) {
		return nil
	}

	oldMap, oldIsMap := old.(map[string]any)
	newMap, newIsMap := new.(map[string]any)
	if oldIsMap && newIsMap {
		return diffObjects(oldMap, newMap)
	}

	oldArr, oldIsArr := old.([]any)
	newArr, newIsArr := new.([]any)
	if oldIsArr && newIsArr {
		return diffArrays(oldArr, newArr)
	}

	return map[string]any{KindKey: KindChanged, "old": old, "new": new}
}

func diffObjects(old, new map[string]any) map[string]any {
	out := map[string]any{}
	for k, ov := range old {
		nv, present := new[k]
		if !present {
			out[k] = map[string]any{KindKey: KindRemoved, "old": ov}
			continue
		}
		if d := Diff(ov, nv); d != nil {
			out[k] = d
		}
	}
	for k, nv := range new {
		if _, present := old[k]; !present {
			out[k] = map[string]any{KindKey: KindAdded, "new": nv}
		}
	}
	return out
}

// diffArrays returns a slice of per-index diffs, nil at unchanged
// positions. Length is max(len(old), len(new)).
func diffArrays(old, new []any) []any {
	n := len(old)
	if len(new) > n {
		n = len(new)
	}
	out := make([]any, n)
	for i := 0; i < n; i++ {
		switch {
		case i >= len(old):
			out[i] = map[string]any{KindKey: KindAdded, "new": new[i]}
		case i >= len(new):
			out[i] = map[string]any{KindKey: KindRemoved, "old": old[i]}
		default:
			out[i] = Diff(old[i], new[i])
		}
	}
	return out
}

// Equal reports structural equality: same key sets and pairwise-equal
// values for objects, same length and pairwise-equal elements for arrays,
// exact comparison for scalars. null and missing are distinct.
func Equal(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return jsonpatch.Equal(ab, bb)
}

// Apply replays a diff onto old and returns the resulting tree. It is the
// inverse of Diff: Apply(Diff(a, b), a) equals b.
func Apply(d, old any) any {
	if d == nil {
		return old
	}

	if dm, ok := d.(map[string]any); ok {
		if kind, tagged := dm[KindKey].(string); tagged {
			switch kind {
			case KindChanged, KindAdded:
				return dm["new"]
			case KindRemoved:
				return removed{}
			}
		}
		out := map[string]any{}
		if om, ok := old.(map[string]any); ok {
			for k, v := range om {
				out[k] = v
			}
		}
		for k, sub := range dm {
			res := Apply(sub, out[k])
			if _, gone := res.(removed); gone {
				delete(out, k)
				continue
			}
			out[k] = res
		}
		return out
	}

	if da, ok := d.([]any); ok {
		oa, _ := old.([]any)
		out := make([]any, 0, len(da))
		for i, sub := range da {
			var base any
			if i < len(oa) {
				base = oa[i]
			}
			if sub == nil {
				out = append(out, base)
				continue
			}
			res := Apply(sub, base)
			if _, gone := res.(removed); gone {
				continue
			}
			out = append(out, res)
		}
		return out
	}

	return old
}

// removed marks a key deleted during Apply. Never escapes the package.
type removed struct{}

// Marshal encodes a diff tree for storage. Nil diffs stay nil so the
// version column can be SQL NULL.
func Marshal(d any) (json.RawMessage, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}
