package formdata

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Kind is the value type discriminator.
type Kind uint8

const (
	KindScalar   Kind = iota // string, float64, bool, or nil
	KindSequence             // Ordered list of values
	KindMapping              // String-keyed collection of values
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "Scalar"
	case KindSequence:
		return "Sequence"
	case KindMapping:
		return "Mapping"
	default:
		return "Unknown"
	}
}

// Value is one node of a form data graph.
//
// Only the field matching Kind is meaningful. Nodes are shared by pointer:
// resolving a path returns the node stored in the graph, not a copy, so
// mutations through a resolved node are visible to every holder of the root.
// A nil *Value means the position is absent, which is distinct from a
// KindScalar node holding nil (an explicit null).
type Value struct {
	Kind   Kind     // Value type
	Scalar any      // For KindScalar
	Seq    []*Value // For KindSequence
	Map    FormData // For KindMapping
}

// FormData is a string-keyed mapping of values: the root shape of every
// snapshot. Structure is driven entirely by the paths used to populate it;
// no schema is enforced.
type FormData map[string]*Value

// Scalar returns a leaf node. Numeric input of any Go type is normalized to
// float64 so snapshots produced by different sources (JSON, YAML,
// url-encoded bodies, in-process getters) share one numeric model.
func Scalar(v any) *Value {
	return &Value{Kind: KindScalar, Scalar: normalizeScalar(v)}
}

// Seq returns a sequence node holding the given elements.
func Seq(items ...*Value) *Value {
	return &Value{Kind: KindSequence, Seq: items}
}

// Map returns a mapping node holding the given fields. A nil argument yields
// an empty, writable mapping.
func Map(fields FormData) *Value {
	if fields == nil {
		fields = FormData{}
	}
	return &Value{Kind: KindMapping, Map: fields}
}

// normalizeScalar collapses Go's numeric types onto float64.
func normalizeScalar(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	default:
		return v
	}
}

// FromAny converts a decoded any-tree (the shape encoding/json and YAML
// decoders produce) into a value graph. Maps become mappings, slices become
// sequences, everything else becomes a normalized scalar.
func FromAny(v any) *Value {
	switch t := v.(type) {
	case nil:
		return &Value{Kind: KindScalar}
	case map[string]any:
		fields := make(FormData, len(t))
		for k, e := range t {
			fields[k] = FromAny(e)
		}
		return &Value{Kind: KindMapping, Map: fields}
	case []any:
		items := make([]*Value, len(t))
		for i, e := range t {
			items[i] = FromAny(e)
		}
		return &Value{Kind: KindSequence, Seq: items}
	default:
		return Scalar(t)
	}
}

// Set writes a child under key, re-kinding the receiver to a mapping if it
// is not one already. This is the usual leaf write inside a Resolve callback.
func (v *Value) Set(key string, val *Value) {
	v.toMapping()
	v.Map[key] = val
}

// Get returns the child under key, or nil when the receiver is not a mapping
// or has no such key.
func (v *Value) Get(key string) *Value {
	if v == nil || v.Kind != KindMapping {
		return nil
	}
	return v.Map[key]
}

// Append adds an element, re-kinding the receiver to a sequence if it is not
// one already.
func (v *Value) Append(item *Value) {
	v.toSequence()
	v.Seq = append(v.Seq, item)
}

// Len returns the number of children: sequence length, mapping size, or 0
// for scalars and nil.
func (v *Value) Len() int {
	if v == nil {
		return 0
	}
	switch v.Kind {
	case KindSequence:
		return len(v.Seq)
	case KindMapping:
		return len(v.Map)
	default:
		return 0
	}
}

// toMapping re-kinds v to a mapping in place, preserving the node pointer so
// previously resolved references stay valid. Sequence elements are kept
// under their decimal index keys; a scalar is dropped.
func (v *Value) toMapping() {
	switch v.Kind {
	case KindMapping:
		if v.Map == nil {
			v.Map = FormData{}
		}
	case KindSequence:
		fields := make(FormData, len(v.Seq))
		for i, item := range v.Seq {
			if item != nil {
				fields[strconv.Itoa(i)] = item
			}
		}
		*v = Value{Kind: KindMapping, Map: fields}
	default:
		*v = Value{Kind: KindMapping, Map: FormData{}}
	}
}

// toSequence re-kinds v to a sequence in place. Non-sequence contents are
// dropped; there is no meaningful ordering to carry over.
func (v *Value) toSequence() {
	if v.Kind != KindSequence {
		*v = Value{Kind: KindSequence}
	}
}

// Clone returns a deep copy sharing no nodes with v.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case KindSequence:
		items := make([]*Value, len(v.Seq))
		for i, item := range v.Seq {
			items[i] = item.Clone()
		}
		return &Value{Kind: KindSequence, Seq: items}
	case KindMapping:
		return &Value{Kind: KindMapping, Map: v.Map.Clone()}
	default:
		return &Value{Kind: KindScalar, Scalar: v.Scalar}
	}
}

// Clone returns a deep copy sharing no nodes with d.
func (d FormData) Clone() FormData {
	if d == nil {
		return nil
	}
	out := make(FormData, len(d))
	for k, v := range d {
		out[k] = v.Clone()
	}
	return out
}

// MarshalJSON encodes the node by kind: scalars as JSON scalars, sequences
// as arrays (absent elements as null), mappings as objects.
func (v *Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindSequence:
		if v.Seq == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Seq)
	case KindMapping:
		if v.Map == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.Map)
	default:
		return json.Marshal(v.Scalar)
	}
}

// UnmarshalJSON decodes objects to mappings, arrays to sequences, and
// everything else to scalars. Numbers decode as float64. An explicit JSON
// null decodes to a null scalar, not an absent node, so snapshots survive a
// marshal/unmarshal round trip unchanged.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		*v = Value{}
		return nil
	}
	switch trimmed[0] {
	case '{':
		var fields FormData
		if err := json.Unmarshal(data, &fields); err != nil {
			return err
		}
		*v = Value{Kind: KindMapping, Map: fields}
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		items := make([]*Value, len(raw))
		for i, r := range raw {
			item := &Value{}
			if err := item.UnmarshalJSON(r); err != nil {
				return err
			}
			items[i] = item
		}
		*v = Value{Kind: KindSequence, Seq: items}
	default:
		var s any
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value{Kind: KindScalar, Scalar: s}
	}
	return nil
}

// UnmarshalJSON decodes a JSON object into the mapping, routing each entry
// through Value.UnmarshalJSON so explicit nulls stay null scalars.
func (d *FormData) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(FormData, len(raw))
	for k, r := range raw {
		v := &Value{}
		if err := v.UnmarshalJSON(r); err != nil {
			return err
		}
		out[k] = v
	}
	*d = out
	return nil
}
