package formsync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/formsync-dev/formsync/pkg/collect"
	"github.com/formsync-dev/formsync/pkg/reconcile"
	"github.com/formsync-dev/formsync/pkg/submit"
)

// =============================================================================
// Engine Type
// =============================================================================

// Engine is the embedding entry point. It wires a collector, a reconciler,
// and an optional submitter into a single sync loop:
//
//	eng := formsync.New(
//	    formsync.WithName("checkout"),
//	    formsync.WithSubmitter(submit.New("https://api.example.com/orders")),
//	)
//	eng.RegisterValue("items[]/sku", "A-100")
//	diff, err := eng.Sync(ctx)
//
// Each Sync collects a fresh snapshot from the registered controls,
// reconciles it against the canonical snapshot, and, when something changed
// and a submitter is configured, posts the new canonical snapshot.
//
// Sync, Data, and OnChange are safe for concurrent use. Register and
// RegisterValue are not safe for concurrent use with Sync; register all
// controls before the first sync, or serialize registration yourself.
type Engine struct {
	collector  *collect.Collector
	reconciler *reconcile.Reconciler
	submitter  *submit.Submitter
	logger     *slog.Logger
}

// engineConfig collects option state before construction.
type engineConfig struct {
	name      string
	logger    *slog.Logger
	submitter *submit.Submitter
	strict    bool
	onChange  []func(*DiffResult)
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithName sets the form name used in logs, metrics, and spans.
// Default: "default".
func WithName(name string) Option {
	return func(c *engineConfig) {
		c.name = name
	}
}

// WithLogger sets the structured logger shared by the engine's components.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// WithSubmitter sets the submitter that receives the canonical snapshot
// after every sync that changed it. Without one, Sync only reconciles.
func WithSubmitter(s *submit.Submitter) Option {
	return func(c *engineConfig) {
		c.submitter = s
	}
}

// WithStrict makes a sync abort on the first failing control instead of
// logging and skipping it.
func WithStrict(strict bool) Option {
	return func(c *engineConfig) {
		c.strict = strict
	}
}

// WithOnChange registers a change listener at construction time. Equivalent
// to calling OnChange on the built engine.
func WithOnChange(fn func(*DiffResult)) Option {
	return func(c *engineConfig) {
		c.onChange = append(c.onChange, fn)
	}
}

// New creates an Engine with an empty canonical snapshot.
func New(opts ...Option) *Engine {
	cfg := engineConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.name == "" {
		cfg.name = "default"
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default().With("component", "engine")
	}

	e := &Engine{
		collector: collect.New(
			collect.WithStrict(cfg.strict),
			collect.WithLogger(cfg.logger),
		),
		reconciler: reconcile.New(
			reconcile.WithName(cfg.name),
			reconcile.WithLogger(cfg.logger),
		),
		submitter: cfg.submitter,
		logger:    cfg.logger,
	}
	for _, fn := range cfg.onChange {
		e.reconciler.OnChange(fn)
	}
	return e
}

// =============================================================================
// Registration
// =============================================================================

// Register adds a control under a scope path. The source is re-read on
// every Sync.
func (e *Engine) Register(path string, src collect.Source) {
	e.collector.Register(path, src)
}

// RegisterValue registers a fixed value under a scope path.
func (e *Engine) RegisterValue(path string, v any) {
	e.collector.RegisterValue(path, v)
}

// OnChange registers a listener invoked with the diff of every sync that
// changed the canonical snapshot.
func (e *Engine) OnChange(fn func(*DiffResult)) {
	e.reconciler.OnChange(fn)
}

// =============================================================================
// Sync Loop
// =============================================================================

// Sync runs one pass: collect a snapshot, reconcile it, and submit the
// canonical snapshot if it changed and a submitter is configured.
//
// When submission fails, the returned diff is still non-nil: the canonical
// snapshot has already advanced, and only the delivery failed. Callers that
// need delivery guarantees should check both return values.
func (e *Engine) Sync(ctx context.Context) (*DiffResult, error) {
	snap, err := e.collector.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	diff, err := e.reconciler.Apply(ctx, snap)
	if err != nil {
		return nil, err
	}

	if diff.HasDiff && e.submitter != nil {
		if _, err := e.submitter.Submit(ctx, e.reconciler.Current()); err != nil {
			return diff, fmt.Errorf("formsync: sync %q: %w", e.reconciler.Name(), err)
		}
	}
	return diff, nil
}

// =============================================================================
// State Access
// =============================================================================

// Data returns a deep copy of the canonical snapshot.
func (e *Engine) Data() FormData {
	return e.reconciler.Current()
}

// Name returns the form name.
func (e *Engine) Name() string {
	return e.reconciler.Name()
}

// Controls returns the number of registered controls.
func (e *Engine) Controls() int {
	return e.collector.Len()
}
