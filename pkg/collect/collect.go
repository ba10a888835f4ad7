// Package collect gathers control values into form data snapshots.
//
// A Source is a synthetic control: any value-producing unit registered under
// a scope path. A Collector walks its registered controls in registration
// order and places each value into a fresh snapshot through the path
// resolver, so independently registered controls can build one deeply nested
// graph without a declared schema.
package collect

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/formsync-dev/formsync/pkg/formdata"
)

// Source supplies one control's current value. Implementations should return
// plain data: scalars, []any, or map[string]any.
type Source interface {
	Value(ctx context.Context) (any, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (any, error)

// Value calls f.
func (f SourceFunc) Value(ctx context.Context) (any, error) {
	return f(ctx)
}

// Static returns a Source that always yields v.
func Static(v any) Source {
	return SourceFunc(func(context.Context) (any, error) {
		return v, nil
	})
}

// control is one registered (path, source) pair.
type control struct {
	path string
	src  Source
}

// CollectorConfig configures a Collector.
type CollectorConfig struct {
	// Strict aborts a collection pass on the first control error instead
	// of skipping the control. Default: false.
	Strict bool

	// Logger is the structured logger. Default: slog.Default() with a
	// component attribute.
	Logger *slog.Logger
}

// CollectorOption configures a Collector.
type CollectorOption func(*CollectorConfig)

// WithStrict makes collection abort on the first failing control.
func WithStrict(strict bool) CollectorOption {
	return func(c *CollectorConfig) {
		c.Strict = strict
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) CollectorOption {
	return func(c *CollectorConfig) {
		c.Logger = logger
	}
}

// Collector holds an ordered registry of controls and produces snapshots on
// demand. Registration is not safe for concurrent use with Snapshot; callers
// that collect from multiple goroutines wrap the Collector in a reconciler
// or their own lock.
type Collector struct {
	controls []control
	config   CollectorConfig
}

// New creates a Collector.
func New(opts ...CollectorOption) *Collector {
	config := CollectorConfig{}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Logger == nil {
		config.Logger = slog.Default().With("component", "collect")
	}
	return &Collector{config: config}
}

// Register adds a control under a scope path. The path's final segment
// usually names the leaf key the value is written to; a path ending in a
// bracket group ("tags[]", "rows[2]") makes the value the resolved element
// itself.
func (c *Collector) Register(path string, src Source) {
	c.controls = append(c.controls, control{path: path, src: src})
}

// RegisterValue registers a fixed value under a scope path.
func (c *Collector) RegisterValue(path string, v any) {
	c.Register(path, Static(v))
}

// Len returns the number of registered controls.
func (c *Collector) Len() int {
	return len(c.controls)
}

// Snapshot runs one collection pass and returns a fresh snapshot. Controls
// are visited in registration order. A failing control is logged and
// skipped, or aborts the pass in strict mode; an invalid scope path counts
// as a control failure.
func (c *Collector) Snapshot(ctx context.Context) (formdata.FormData, error) {
	root := formdata.FormData{}
	for _, ctrl := range c.controls {
		value, err := ctrl.src.Value(ctx)
		if err == nil {
			err = place(root, ctrl.path, value)
		}
		if err != nil {
			if c.config.Strict {
				return nil, fmt.Errorf("collect: control %q: %w", ctrl.path, err)
			}
			c.config.Logger.Warn("skipping control", "path", ctrl.path, "error", err)
		}
	}
	return root, nil
}

// place writes one control value into root at path. Placement semantics,
// including the mapping merge that lets a control registered at "" seed the
// root, live in formdata.Put.
func place(root formdata.FormData, path string, value any) error {
	return formdata.Put(root, path, formdata.FromAny(value))
}
