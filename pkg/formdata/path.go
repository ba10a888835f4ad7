package formdata

import (
	"strconv"
	"strings"
)

// component is the parsed meaning of one '/'-separated path segment.
type component struct {
	name    string // Text before the bracket group; may be empty
	isArray bool   // Segment carries array semantics ("name[...]")
	index   int    // Explicit array slot, or -1
	key     string // Map key named by non-integer bracket content, or ""
}

// parseComponent splits a path segment into its structural meaning:
//
//	"name"     plain field
//	"name[]"   array under name, append a new element
//	"name[3]"  array under name, slot 3
//	"name[k]"  key "k" under name
//	"[k]"      key "k" under the current node
//
// Bracket content that parses as a non-negative integer is always an array
// slot, never a map key, so a mapping genuinely keyed by "0" cannot be
// addressed with bracket notation. Anything else inside brackets is a key;
// malformed content is never an error. Only the first bracket group is
// meaningful; the grammar admits one per segment.
func parseComponent(segment string) component {
	c := component{index: -1}
	open := strings.IndexByte(segment, '[')
	if open < 0 {
		c.name = segment
		return c
	}
	c.name = segment[:open]
	content := segment[open+1:]
	if end := strings.IndexByte(content, ']'); end >= 0 {
		content = content[:end]
	}
	if content == "" {
		c.isArray = true
		return c
	}
	if idx, err := strconv.Atoi(content); err == nil && idx >= 0 {
		c.isArray = true
		c.index = idx
		return c
	}
	c.key = content
	return c
}

// Resolve walks root along a '/'-separated path, creating missing
// intermediate containers, and returns the node the final segment names.
// The result is a live reference into root: mutations through it are seen by
// every holder of the graph. When onResolved is non-nil it is invoked with
// the final node before Resolve returns, which is the usual way callers
// write leaf values:
//
//	Resolve(root, "items[0]", func(n *Value) { n.Set("qty", Scalar(2)) })
//
// An empty segment (empty path, or a path ending in '/') stops the walk at
// the node resolved so far, so Resolve(root, "", nil) yields a mapping view
// of root itself. Segments are resolved left to right, which lets deeply
// nested graphs be built out of order from a flat stream of (path, value)
// pairs with no pre-declared schema.
//
// The only failure is a segment with array semantics and no name, such as
// "[]" or "[0]". Every other path resolves: missing containers are created
// on the way down, and a pre-existing node whose kind does not match the
// segment is re-kinded in place (see slot and field). root must be non-nil.
func Resolve(root FormData, path string, onResolved func(*Value)) (*Value, error) {
	ptr := &Value{Kind: KindMapping, Map: root}
	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			break
		}
		c := parseComponent(segment)

		var target *Value
		switch {
		case c.name != "":
			ptr.toMapping()
			target = ptr.Map[c.name]
			if target == nil {
				if c.isArray {
					target = &Value{Kind: KindSequence}
				} else {
					target = &Value{Kind: KindMapping, Map: FormData{}}
				}
				ptr.Map[c.name] = target
			}
		case c.isArray:
			return nil, &InvalidPathError{Segment: segment, Path: path}
		default:
			// Bare "[key]" dereferences against the current node.
			target = ptr
		}

		switch {
		case c.isArray && c.index >= 0:
			ptr = target.slot(c.index)
		case c.isArray:
			elem := &Value{Kind: KindMapping, Map: FormData{}}
			target.toSequence()
			target.Seq = append(target.Seq, elem)
			ptr = elem
		case c.key != "":
			ptr = target.field(c.key)
		default:
			ptr = target
		}
	}
	if onResolved != nil {
		onResolved(ptr)
	}
	return ptr, nil
}

// Put writes v into root at a '/'-separated path, creating missing
// containers the way Resolve does. A plain final segment names the leaf key
// the value is stored under; a final segment carrying a bracket group makes
// v the content of the resolved node itself. In that node position a mapping
// value merges key-wise into a mapping node, which is how a write at ""
// seeds the root, and any other pairing replaces the node's content.
// v must be non-nil.
func Put(root FormData, path string, v *Value) error {
	dir, leaf := splitLeaf(path)
	if leaf != "" {
		_, err := Resolve(root, dir, func(node *Value) {
			node.Set(leaf, v)
		})
		return err
	}
	_, err := Resolve(root, path, func(node *Value) {
		if node.Kind == KindMapping && v.Kind == KindMapping {
			node.toMapping()
			for k, e := range v.Map {
				node.Map[k] = e
			}
			return
		}
		*node = *v
	})
	return err
}

// splitLeaf separates the parent path from a plain final segment. A final
// segment carrying a bracket group is not a plain leaf; the caller resolves
// the whole path instead.
func splitLeaf(path string) (dir, leaf string) {
	last := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		dir, last = path[:i], path[i+1:]
	}
	if last == "" || strings.IndexByte(last, '[') >= 0 {
		return path, ""
	}
	return dir, last
}

// slot returns the sequence element at index i, growing the sequence with
// nil holes and filling an absent slot with an empty mapping. A mapping
// target keeps its entries: the index addresses the decimal string key
// instead. A scalar target is re-kinded to a sequence.
func (v *Value) slot(i int) *Value {
	if v.Kind == KindMapping {
		return v.field(strconv.Itoa(i))
	}
	v.toSequence()
	for len(v.Seq) <= i {
		v.Seq = append(v.Seq, nil)
	}
	if v.Seq[i] == nil {
		v.Seq[i] = &Value{Kind: KindMapping, Map: FormData{}}
	}
	return v.Seq[i]
}

// field returns the mapping entry for key, creating an empty mapping when
// the entry is absent. Non-mapping targets are re-kinded in place first.
func (v *Value) field(key string) *Value {
	v.toMapping()
	child := v.Map[key]
	if child == nil {
		child = &Value{Kind: KindMapping, Map: FormData{}}
		v.Map[key] = child
	}
	return child
}
