package formdata

import (
	"encoding/json"
	"reflect"
	"sort"
	"strconv"
)

// Change is one changed path: the value on each side of the comparison. A
// nil side means the path was absent in that snapshot.
type Change struct {
	Old *Value
	New *Value
}

// MarshalJSON encodes the change as a two-element [old, new] array.
func (c Change) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]*Value{c.Old, c.New})
}

// UnmarshalJSON decodes the [old, new] array form produced by MarshalJSON.
func (c *Change) UnmarshalJSON(data []byte) error {
	var pair [2]*Value
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	c.Old, c.New = pair[0], pair[1]
	return nil
}

// DiffResult is the outcome of a structural comparison: every changed path
// mapped to its old/new pair. Emitted paths follow the scope path grammar,
// so each one can be fed back to Resolve: "key" for a changed field,
// "key2[0]" for a changed sequence element, "key3/sub2" for a change inside
// a nested mapping, "items[1]/qty" for a change inside a mapping element.
type DiffResult struct {
	HasDiff bool              `json:"hasDiff"`
	Diffs   map[string]Change `json:"diffs"`
}

func newDiffResult() *DiffResult {
	return &DiffResult{Diffs: map[string]Change{}}
}

// add records one changed path.
func (r *DiffResult) add(path string, old, new *Value) {
	r.Diffs[path] = Change{Old: old, New: new}
	r.HasDiff = true
}

// Paths returns the changed paths in sorted order.
func (r *DiffResult) Paths() []string {
	paths := make([]string, 0, len(r.Diffs))
	for p := range r.Diffs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Diff computes the set of paths whose values differ between two snapshots.
// Neither input is mutated. Keys from both sides are covered, so additions,
// removals, and type changes all surface; a removed key records a change
// with a nil new side, an added key a nil old side.
func Diff(old, new FormData) *DiffResult {
	out := newDiffResult()
	diffMappings(old, new, "", out)
	return out
}

// diffMappings walks the union of keys from both sides and records changes
// under prefix.
func diffMappings(old, new FormData, prefix string, out *DiffResult) {
	for k, ov := range old {
		diffEntry(prefix, k, ov, new[k], out)
	}
	for k, nv := range new {
		if _, seen := old[k]; seen {
			continue
		}
		diffEntry(prefix, k, nil, nv, out)
	}
}

// diffEntry compares one key's value across both sides. Structural recursion
// happens only when both sides hold the same container kind; any other
// combination degrades to a leaf comparison and records the pair whole.
func diffEntry(prefix, k string, ov, nv *Value, out *DiffResult) {
	switch {
	case ov != nil && nv != nil && ov.Kind == KindSequence && nv.Kind == KindSequence:
		sub := diffSequences(ov.Seq, nv.Seq)
		for sp, ch := range sub.Diffs {
			out.add(prefix+k+sp, ch.Old, ch.New)
		}
	case ov != nil && nv != nil && ov.Kind == KindMapping && nv.Kind == KindMapping:
		diffMappings(ov.Map, nv.Map, prefix+k+"/", out)
	default:
		if !valuesEqual(ov, nv) {
			out.add(prefix+k, ov, nv)
		}
	}
}

// diffSequences compares two sequences slot by slot up to the longer length;
// a slot past the end of the shorter side reads as absent. Mapping elements
// on both sides get a full structural sub-diff recorded under "[i]/..."; any
// other pairing is compared as a value and recorded under "[i]".
func diffSequences(old, new []*Value) *DiffResult {
	out := newDiffResult()
	n := len(old)
	if len(new) > n {
		n = len(new)
	}
	for i := 0; i < n; i++ {
		var ov, nv *Value
		if i < len(old) {
			ov = old[i]
		}
		if i < len(new) {
			nv = new[i]
		}
		slot := "[" + strconv.Itoa(i) + "]"
		if ov != nil && nv != nil && ov.Kind == KindMapping && nv.Kind == KindMapping {
			sub := newDiffResult()
			diffMappings(ov.Map, nv.Map, "", sub)
			for sp, ch := range sub.Diffs {
				out.add(slot+"/"+sp, ch.Old, ch.New)
			}
			continue
		}
		if !valuesEqual(ov, nv) {
			out.add(slot, ov, nv)
		}
	}
	return out
}

// valuesEqual is the equality test the diff walk bottoms out on: strict
// value equality for scalars, length plus pairwise element identity for two
// sequences (no recursion into nested containers at this level), and an
// empty structural diff for two mappings. Mixed kinds are never equal, and
// an absent node equals only another absent node.
func valuesEqual(old, new *Value) bool {
	if old == new {
		return true
	}
	if old == nil || new == nil {
		return false
	}
	if old.Kind != new.Kind {
		return false
	}
	switch old.Kind {
	case KindScalar:
		return scalarsEqual(old.Scalar, new.Scalar)
	case KindSequence:
		if len(old.Seq) != len(new.Seq) {
			return false
		}
		for i := range old.Seq {
			if !strictEqual(old.Seq[i], new.Seq[i]) {
				return false
			}
		}
		return true
	default:
		sub := newDiffResult()
		diffMappings(old.Map, new.Map, "", sub)
		return !sub.HasDiff
	}
}

// strictEqual is element-level identity: scalars compare by type and value,
// containers only by being the same node.
func strictEqual(a, b *Value) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Kind == KindScalar && b.Kind == KindScalar {
		return scalarsEqual(a.Scalar, b.Scalar)
	}
	return false
}

// scalarsEqual compares scalar payloads with type-sensitive equality: the
// string "3" and the number 3 are different values.
func scalarsEqual(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	}
	return reflect.DeepEqual(a, b)
}
