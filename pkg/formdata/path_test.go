package formdata

import (
	"errors"
	"testing"
)

func TestParseComponent(t *testing.T) {
	tests := []struct {
		segment string
		want    component
	}{
		{"name", component{name: "name", index: -1}},
		{"", component{index: -1}},
		{"name[]", component{name: "name", isArray: true, index: -1}},
		{"name[0]", component{name: "name", isArray: true, index: 0}},
		{"name[12]", component{name: "name", isArray: true, index: 12}},
		{"name[alpha]", component{name: "name", index: -1, key: "alpha"}},
		{"[alpha]", component{index: -1, key: "alpha"}},
		{"[]", component{isArray: true, index: -1}},
		{"[3]", component{isArray: true, index: 3}},
		// A negative number is not a slot; it falls back to key semantics.
		{"name[-1]", component{name: "name", index: -1, key: "-1"}},
		// Non-integer content is a key even when it starts with digits.
		{"name[1a]", component{name: "name", index: -1, key: "1a"}},
		{"name[ 1]", component{name: "name", index: -1, key: " 1"}},
		// Only the first bracket group is meaningful.
		{"name[0][1]", component{name: "name", isArray: true, index: 0}},
		// An unclosed group still yields its content.
		{"name[7", component{name: "name", isArray: true, index: 7}},
	}

	for _, tt := range tests {
		t.Run(tt.segment, func(t *testing.T) {
			got := parseComponent(tt.segment)
			if got != tt.want {
				t.Errorf("parseComponent(%q) = %+v, want %+v", tt.segment, got, tt.want)
			}
		})
	}
}

func TestResolveWritesLeaf(t *testing.T) {
	data := FormData{}

	node, err := Resolve(data, "name", func(n *Value) {
		n.Set("key", Scalar(1))
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	got := data["name"]
	if got == nil || got.Kind != KindMapping {
		t.Fatalf("data[\"name\"] = %+v, want mapping", got)
	}
	if got != node {
		t.Errorf("returned node is not the stored node")
	}
	if v := got.Get("key"); v == nil || v.Scalar != float64(1) {
		t.Errorf("name.key = %+v, want scalar 1", v)
	}
}

func TestResolveUnnamedArray(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"[]", "formdata: unnamed array not allowed. failed parsing '[]' in '[]'"},
		{"[0]", "formdata: unnamed array not allowed. failed parsing '[0]' in '[0]'"},
		{"a/[]/b", "formdata: unnamed array not allowed. failed parsing '[]' in 'a/[]/b'"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			data := FormData{}
			_, err := Resolve(data, tt.path, nil)
			if err == nil {
				t.Fatalf("Resolve(%q) returned nil error", tt.path)
			}
			var pathErr *InvalidPathError
			if !errors.As(err, &pathErr) {
				t.Fatalf("error type = %T, want *InvalidPathError", err)
			}
			if err.Error() != tt.want {
				t.Errorf("error = %q, want %q", err.Error(), tt.want)
			}
		})
	}
}

func TestResolveKeyDereference(t *testing.T) {
	data := FormData{}

	if _, err := Resolve(data, "name[k]/subkey", nil); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	name := data["name"]
	if name == nil || name.Kind != KindMapping {
		t.Fatalf("data[\"name\"] = %+v, want mapping", name)
	}
	k := name.Get("k")
	if k == nil || k.Kind != KindMapping {
		t.Fatalf("name.k = %+v, want mapping", k)
	}
	sub := k.Get("subkey")
	if sub == nil || sub.Kind != KindMapping || len(sub.Map) != 0 {
		t.Errorf("name.k.subkey = %+v, want empty mapping", sub)
	}
}

func TestResolveExistingArraySlot(t *testing.T) {
	data := FormData{
		"existing": Map(FormData{"arr": Seq()}),
	}

	_, err := Resolve(data, "existing/arr[0]", func(n *Value) {
		n.Set("key", Scalar(2))
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	arr := data["existing"].Get("arr")
	if arr.Kind != KindSequence || len(arr.Seq) != 1 {
		t.Fatalf("arr = %+v, want sequence of 1", arr)
	}
	if v := arr.Seq[0].Get("key"); v == nil || v.Scalar != float64(2) {
		t.Errorf("arr[0].key = %+v, want scalar 2", v)
	}
}

func TestResolveAppend(t *testing.T) {
	data := FormData{}

	first, err := Resolve(data, "items[]", nil)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	second, err := Resolve(data, "items[]", nil)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	items := data["items"]
	if items.Kind != KindSequence || len(items.Seq) != 2 {
		t.Fatalf("items = %+v, want sequence of 2", items)
	}
	if items.Seq[0] != first || items.Seq[1] != second {
		t.Errorf("appended elements are not the returned nodes")
	}
	if first == second {
		t.Errorf("append resolved the same node twice")
	}
}

func TestResolveIndexGrowsSequence(t *testing.T) {
	data := FormData{}

	if _, err := Resolve(data, "arr[2]", nil); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	arr := data["arr"]
	if arr.Kind != KindSequence || len(arr.Seq) != 3 {
		t.Fatalf("arr = %+v, want sequence of 3", arr)
	}
	if arr.Seq[0] != nil || arr.Seq[1] != nil {
		t.Errorf("holes should stay absent, got %+v and %+v", arr.Seq[0], arr.Seq[1])
	}
	if arr.Seq[2] == nil || arr.Seq[2].Kind != KindMapping {
		t.Errorf("arr[2] = %+v, want mapping", arr.Seq[2])
	}
}

func TestResolveIdempotent(t *testing.T) {
	data := FormData{}

	first, err := Resolve(data, "a/b[0]/c", nil)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	second, err := Resolve(data, "a/b[0]/c", nil)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if first != second {
		t.Errorf("resolving the same path twice returned different nodes")
	}
}

func TestResolveEmptyPathYieldsRoot(t *testing.T) {
	data := FormData{}

	node, err := Resolve(data, "", func(n *Value) {
		n.Set("x", Scalar("y"))
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if node.Kind != KindMapping {
		t.Fatalf("node kind = %v, want Mapping", node.Kind)
	}
	if v := data["x"]; v == nil || v.Scalar != "y" {
		t.Errorf("write through the root view was not visible, data = %+v", data)
	}
}

func TestResolveEmptySegmentStopsWalk(t *testing.T) {
	data := FormData{}

	node, err := Resolve(data, "a/", nil)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if node != data["a"] {
		t.Errorf("trailing slash should stop at 'a'")
	}

	node, err = Resolve(data, "a//b", nil)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if node != data["a"] {
		t.Errorf("empty segment should stop the walk at 'a'")
	}
	if data["a"].Get("b") != nil {
		t.Errorf("segments after an empty segment must not resolve")
	}
}

func TestResolveBareKeyAgainstRoot(t *testing.T) {
	data := FormData{}

	if _, err := Resolve(data, "[cfg]/host", nil); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	cfg := data["cfg"]
	if cfg == nil || cfg.Kind != KindMapping {
		t.Fatalf("data[\"cfg\"] = %+v, want mapping", cfg)
	}
	if host := cfg.Get("host"); host == nil || host.Kind != KindMapping {
		t.Errorf("cfg.host = %+v, want mapping", host)
	}
}

func TestResolveOutOfOrderConstruction(t *testing.T) {
	data := FormData{}
	writes := []struct {
		path  string
		key   string
		value any
	}{
		{"order/items[1]", "qty", 2},
		{"order/items[0]", "qty", 1},
		{"order", "id", "A-7"},
		{"order/items[0]", "sku", "chair"},
	}

	for _, w := range writes {
		key, value := w.key, w.value
		if _, err := Resolve(data, w.path, func(n *Value) {
			n.Set(key, Scalar(value))
		}); err != nil {
			t.Fatalf("Resolve(%q) returned error: %v", w.path, err)
		}
	}

	order := data["order"]
	if v := order.Get("id"); v == nil || v.Scalar != "A-7" {
		t.Errorf("order.id = %+v, want A-7", v)
	}
	items := order.Get("items")
	if items.Kind != KindSequence || len(items.Seq) != 2 {
		t.Fatalf("order.items = %+v, want sequence of 2", items)
	}
	if v := items.Seq[0].Get("sku"); v == nil || v.Scalar != "chair" {
		t.Errorf("items[0].sku = %+v, want chair", v)
	}
	if v := items.Seq[1].Get("qty"); v == nil || v.Scalar != float64(2) {
		t.Errorf("items[1].qty = %+v, want 2", v)
	}
}

func TestResolveRekindsScalarInPlace(t *testing.T) {
	data := FormData{"a": Scalar("leaf")}
	before := data["a"]

	if _, err := Resolve(data, "a/b", nil); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if data["a"] != before {
		t.Fatalf("re-kinding must keep the node pointer")
	}
	if before.Kind != KindMapping {
		t.Fatalf("a.Kind = %v, want Mapping", before.Kind)
	}
	if b := before.Get("b"); b == nil || b.Kind != KindMapping {
		t.Errorf("a.b = %+v, want mapping", b)
	}
}

func TestResolveIndexIntoMappingUsesStringKey(t *testing.T) {
	data := FormData{"a": Map(FormData{"x": Scalar(1)})}

	if _, err := Resolve(data, "a[0]", nil); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	a := data["a"]
	if a.Kind != KindMapping {
		t.Fatalf("a.Kind = %v, want Mapping", a.Kind)
	}
	if v := a.Get("x"); v == nil || v.Scalar != float64(1) {
		t.Errorf("existing entry x was lost, a = %+v", a)
	}
	if v := a.Get("0"); v == nil || v.Kind != KindMapping {
		t.Errorf("a[\"0\"] = %+v, want mapping", v)
	}
}

func TestResolveAppendOntoMappingRekinds(t *testing.T) {
	data := FormData{"a": Map(FormData{"x": Scalar(1)})}
	before := data["a"]

	if _, err := Resolve(data, "a[]", nil); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if data["a"] != before {
		t.Fatalf("re-kinding must keep the node pointer")
	}
	if before.Kind != KindSequence || len(before.Seq) != 1 {
		t.Errorf("a = %+v, want sequence of 1", before)
	}
}

func TestResolveKeyIntoSequenceKeepsElements(t *testing.T) {
	data := FormData{"a": Seq(Scalar("first"), Scalar("second"))}

	if _, err := Resolve(data, "a[label]", nil); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	a := data["a"]
	if a.Kind != KindMapping {
		t.Fatalf("a.Kind = %v, want Mapping", a.Kind)
	}
	if v := a.Get("0"); v == nil || v.Scalar != "first" {
		t.Errorf("a[\"0\"] = %+v, want first", v)
	}
	if v := a.Get("label"); v == nil || v.Kind != KindMapping {
		t.Errorf("a.label = %+v, want mapping", v)
	}
}

func TestResolveNegativeIndexIsKey(t *testing.T) {
	data := FormData{}

	if _, err := Resolve(data, "a[-1]", nil); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if v := data["a"].Get("-1"); v == nil || v.Kind != KindMapping {
		t.Errorf("a[\"-1\"] = %+v, want mapping", v)
	}
}

func TestResolveMutationVisibleThroughRoot(t *testing.T) {
	data := FormData{}

	node, err := Resolve(data, "deep/nest[0]", nil)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	node.Set("flag", Scalar(true))

	got := data["deep"].Get("nest").Seq[0].Get("flag")
	if got == nil || got.Scalar != true {
		t.Errorf("mutation through resolved node not visible, got %+v", got)
	}
}

func TestPutLeaf(t *testing.T) {
	data := FormData{}

	if err := Put(data, "user/name", Scalar("ada")); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	got := data["user"].Get("name")
	if got == nil || got.Scalar != "ada" {
		t.Errorf("user/name = %+v, want scalar \"ada\"", got)
	}
}

func TestPutNodeReplacesContent(t *testing.T) {
	data := FormData{}
	if err := Put(data, "tags[0]", Scalar("go")); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if err := Put(data, "tags[0]", Scalar("web")); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	seq := data["tags"].Seq
	if len(seq) != 1 || seq[0].Scalar != "web" {
		t.Errorf("tags = %+v, want single scalar \"web\"", seq)
	}
}

func TestPutRootMerge(t *testing.T) {
	data := FormData{"kept": Scalar(1)}

	err := Put(data, "", Map(FormData{"added": Scalar(2)}))
	if err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	if v := data["kept"]; v == nil || v.Scalar != float64(1) {
		t.Errorf("kept = %+v, want scalar 1", v)
	}
	if v := data["added"]; v == nil || v.Scalar != float64(2) {
		t.Errorf("added = %+v, want scalar 2", v)
	}
}

func TestPutOverwritesLeaf(t *testing.T) {
	data := FormData{}

	if err := Put(data, "a/b", Scalar(1)); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if err := Put(data, "a/b", Seq(Scalar("x"), Scalar("y"))); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	got := data["a"].Get("b")
	if got == nil || got.Kind != KindSequence || got.Len() != 2 {
		t.Errorf("a/b = %+v, want 2-element sequence", got)
	}
}

func TestPutInvalidPath(t *testing.T) {
	data := FormData{}

	err := Put(data, "[]/x", Scalar(1))
	var perr *InvalidPathError
	if !errors.As(err, &perr) {
		t.Fatalf("Put error = %v, want *InvalidPathError", err)
	}
}

func TestSplitLeaf(t *testing.T) {
	tests := []struct {
		path string
		dir  string
		leaf string
	}{
		{"name", "", "name"},
		{"user/name", "user", "name"},
		{"rows[]/qty", "rows[]", "qty"},
		{"tags[]", "tags[]", ""},
		{"rows[2]", "rows[2]", ""},
		{"", "", ""},
		{"a/", "a/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			dir, leaf := splitLeaf(tt.path)
			if dir != tt.dir || leaf != tt.leaf {
				t.Errorf("splitLeaf(%q) = (%q, %q), want (%q, %q)", tt.path, dir, leaf, tt.dir, tt.leaf)
			}
		})
	}
}
