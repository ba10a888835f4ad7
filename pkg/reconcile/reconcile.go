package reconcile

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/formsync-dev/formsync/pkg/formdata"
	"github.com/formsync-dev/formsync/pkg/middleware"
)

// Config configures a Reconciler.
type Config struct {
	// Name labels the form in logs, metrics, and spans. Default: "default".
	Name string

	// Logger is the structured logger. Default: slog.Default() with a
	// component attribute.
	Logger *slog.Logger

	// TracerName is the OpenTelemetry tracer name. Default: "formsync".
	TracerName string
}

// Option configures a Reconciler.
type Option func(*Config)

// WithName sets the form name used in logs, metrics, and spans.
func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithTracerName sets the OpenTelemetry tracer name.
func WithTracerName(name string) Option {
	return func(c *Config) {
		c.TracerName = name
	}
}

// Reconciler holds the canonical snapshot of one form and reconciles
// incoming snapshots against it. All methods are safe for concurrent use.
type Reconciler struct {
	name   string
	logger *slog.Logger
	tracer trace.Tracer

	mu        sync.RWMutex
	current   formdata.FormData
	listeners []func(*formdata.DiffResult)
}

// New creates a Reconciler with an empty canonical snapshot.
func New(opts ...Option) *Reconciler {
	config := Config{}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Name == "" {
		config.Name = "default"
	}
	if config.Logger == nil {
		config.Logger = slog.Default().With("component", "reconcile")
	}
	if config.TracerName == "" {
		config.TracerName = "formsync"
	}

	return &Reconciler{
		name:    config.Name,
		logger:  config.Logger,
		tracer:  otel.Tracer(config.TracerName),
		current: formdata.FormData{},
	}
}

// Name returns the form name.
func (r *Reconciler) Name() string {
	return r.name
}

// Apply diffs next against the canonical snapshot. When the snapshots
// differ, next becomes canonical and every change listener runs with the
// diff; the Reconciler takes ownership of next, so callers must not mutate
// it afterwards. Listeners run outside the lock, on the calling goroutine.
// The returned diff is never nil.
func (r *Reconciler) Apply(ctx context.Context, next formdata.FormData) (*formdata.DiffResult, error) {
	_, span := r.tracer.Start(ctx, "reconcile.Apply",
		trace.WithAttributes(attribute.String("formsync.form", r.name)),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	r.mu.Lock()
	diff := formdata.Diff(r.current, next)
	var listeners []func(*formdata.DiffResult)
	if diff.HasDiff {
		r.current = next
		listeners = append(listeners, r.listeners...)
	}
	r.mu.Unlock()

	span.SetAttributes(attribute.Int("formsync.changed_paths", len(diff.Diffs)))
	middleware.RecordSync(r.name, diff.HasDiff, len(diff.Diffs))

	if diff.HasDiff {
		r.logger.Debug("snapshot changed", "form", r.name, "paths", len(diff.Diffs))
		for _, fn := range listeners {
			fn(diff)
		}
	}

	return diff, nil
}

// Current returns a deep copy of the canonical snapshot. The copy shares no
// nodes with the reconciler's state, so callers may mutate it freely.
func (r *Reconciler) Current() formdata.FormData {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.Clone()
}

// Reset replaces the canonical snapshot without diffing or notifying. It is
// how persisted state is seeded into a fresh Reconciler. A nil snapshot
// resets to empty.
func (r *Reconciler) Reset(snap formdata.FormData) {
	if snap == nil {
		snap = formdata.FormData{}
	}
	r.mu.Lock()
	r.current = snap
	r.mu.Unlock()
}

// OnChange registers a listener invoked with the diff of every Apply that
// changed the canonical snapshot. Listeners must not call back into the
// Reconciler's Apply.
func (r *Reconciler) OnChange(fn func(*formdata.DiffResult)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}
