package formsync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/formsync-dev/formsync/pkg/collect"
	"github.com/formsync-dev/formsync/pkg/submit"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEngineSyncProducesDiff(t *testing.T) {
	eng := New(WithName("signup"), WithLogger(discardLogger()))
	eng.RegisterValue("user/name", "Ada")
	eng.RegisterValue("user/email", "ada@example.com")
	eng.RegisterValue("tags[]", "beta")

	diff, err := eng.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !diff.HasDiff {
		t.Fatal("first Sync() should report changes")
	}

	paths := diff.Paths()
	want := []string{"tags[0]", "user/email", "user/name"}
	if len(paths) != len(want) {
		t.Fatalf("Paths() = %v, want %v", paths, want)
	}
	for i, p := range want {
		if paths[i] != p {
			t.Errorf("Paths()[%d] = %q, want %q", i, paths[i], p)
		}
	}

	data := eng.Data()
	if got := data["user"].Get("name").Scalar; got != "Ada" {
		t.Errorf("user/name = %v, want Ada", got)
	}
	if got := data["tags"].Len(); got != 1 {
		t.Errorf("tags length = %d, want 1", got)
	}
}

func TestEngineSyncUnchanged(t *testing.T) {
	eng := New(WithLogger(discardLogger()))
	eng.RegisterValue("color", "green")

	if _, err := eng.Sync(context.Background()); err != nil {
		t.Fatalf("first Sync() error = %v", err)
	}
	diff, err := eng.Sync(context.Background())
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if diff.HasDiff {
		t.Errorf("second Sync() reported changes: %v", diff.Paths())
	}
}

func TestEngineDynamicSource(t *testing.T) {
	var clicks atomic.Int64
	eng := New(WithLogger(discardLogger()))
	eng.Register("clicks", collect.SourceFunc(func(context.Context) (any, error) {
		return clicks.Load(), nil
	}))

	if _, err := eng.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	clicks.Store(3)
	diff, err := eng.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !diff.HasDiff {
		t.Fatal("changed source should produce a diff")
	}
	change, ok := diff.Diffs["clicks"]
	if !ok {
		t.Fatalf("diff paths = %v, want clicks", diff.Paths())
	}
	if change.New.Scalar != float64(3) {
		t.Errorf("clicks new value = %v, want 3", change.New.Scalar)
	}
}

func TestEngineSubmitsOnChange(t *testing.T) {
	var posts atomic.Int64
	var lastBody atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		lastBody.Store(body)
		posts.Add(1)
	}))
	defer ts.Close()

	eng := New(
		WithLogger(discardLogger()),
		WithSubmitter(submit.New(ts.URL, submit.WithLogger(discardLogger()))),
	)
	eng.RegisterValue("name", "Ada")

	if _, err := eng.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if got := posts.Load(); got != 1 {
		t.Fatalf("posts after changed sync = %d, want 1", got)
	}

	got := FormData{}
	if err := json.Unmarshal(lastBody.Load().([]byte), &got); err != nil {
		t.Fatalf("unmarshal submitted body: %v", err)
	}
	if got["name"].Scalar != "Ada" {
		t.Errorf("submitted name = %v, want Ada", got["name"].Scalar)
	}

	// An unchanged pass must not submit again.
	if _, err := eng.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if got := posts.Load(); got != 1 {
		t.Errorf("posts after unchanged sync = %d, want 1", got)
	}
}

func TestEngineSubmitFailureKeepsState(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	eng := New(
		WithLogger(discardLogger()),
		WithSubmitter(submit.New(ts.URL, submit.WithLogger(discardLogger()))),
	)
	eng.RegisterValue("name", "Ada")

	diff, err := eng.Sync(context.Background())
	if err == nil {
		t.Fatal("Sync() should surface the failed submission")
	}
	if diff == nil || !diff.HasDiff {
		t.Fatal("failed submission should still return the applied diff")
	}
	if got := eng.Data()["name"].Scalar; got != "Ada" {
		t.Errorf("canonical snapshot = %v, want Ada despite submit failure", got)
	}
}

func TestEngineStrictMode(t *testing.T) {
	broken := collect.SourceFunc(func(context.Context) (any, error) {
		return nil, errors.New("sensor offline")
	})

	t.Run("strict aborts", func(t *testing.T) {
		eng := New(WithStrict(true), WithLogger(discardLogger()))
		eng.Register("sensor", broken)
		eng.RegisterValue("name", "Ada")

		if _, err := eng.Sync(context.Background()); err == nil {
			t.Fatal("strict Sync() should fail on a broken control")
		}
		if len(eng.Data()) != 0 {
			t.Errorf("strict failure should leave canonical snapshot empty, got %v", eng.Data())
		}
	})

	t.Run("lenient skips", func(t *testing.T) {
		eng := New(WithLogger(discardLogger()))
		eng.Register("sensor", broken)
		eng.RegisterValue("name", "Ada")

		diff, err := eng.Sync(context.Background())
		if err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
		if _, ok := diff.Diffs["name"]; !ok {
			t.Errorf("diff paths = %v, want name", diff.Paths())
		}
		if _, ok := diff.Diffs["sensor"]; ok {
			t.Error("broken control should be skipped, not diffed")
		}
	})
}

func TestEngineOnChange(t *testing.T) {
	var fromOption, fromMethod atomic.Int64
	eng := New(
		WithLogger(discardLogger()),
		WithOnChange(func(d *DiffResult) {
			fromOption.Add(int64(len(d.Diffs)))
		}),
	)
	eng.OnChange(func(d *DiffResult) {
		fromMethod.Add(int64(len(d.Diffs)))
	})
	eng.RegisterValue("a", 1)
	eng.RegisterValue("b", 2)

	if _, err := eng.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if fromOption.Load() != 2 {
		t.Errorf("option listener saw %d paths, want 2", fromOption.Load())
	}
	if fromMethod.Load() != 2 {
		t.Errorf("method listener saw %d paths, want 2", fromMethod.Load())
	}

	// Unchanged syncs stay silent.
	if _, err := eng.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if fromOption.Load() != 2 {
		t.Errorf("listener ran on an unchanged sync")
	}
}

func TestEngineDefaults(t *testing.T) {
	eng := New()
	if eng.Name() != "default" {
		t.Errorf("Name() = %q, want default", eng.Name())
	}
	if eng.Controls() != 0 {
		t.Errorf("Controls() = %d, want 0", eng.Controls())
	}
	eng.RegisterValue("x", 1)
	if eng.Controls() != 1 {
		t.Errorf("Controls() = %d, want 1", eng.Controls())
	}
}

func TestFacadeReExports(t *testing.T) {
	root := FormData{}
	if err := Put(root, "user/name", Scalar("Ada")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	v, err := Resolve(root, "user/name", nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if v.Scalar != "Ada" {
		t.Errorf("resolved value = %v, want Ada", v.Scalar)
	}

	diff := Diff(FormData{}, root)
	if !diff.HasDiff {
		t.Error("Diff() should report the added path")
	}

	seq := Seq(Scalar(1), Scalar(2))
	if seq.Kind != KindSequence || seq.Len() != 2 {
		t.Errorf("Seq() kind = %v len = %d", seq.Kind, seq.Len())
	}
	m := Map(nil)
	if m.Kind != KindMapping {
		t.Errorf("Map(nil) kind = %v, want KindMapping", m.Kind)
	}
	if FromAny([]any{"a"}).Kind != KindSequence {
		t.Error("FromAny([]any) should produce a sequence")
	}
}
