// Package reconcile maintains the canonical snapshot of a form and computes
// what changed when a new snapshot arrives.
//
// A Reconciler is the stateful middle of the sync loop: collectors or HTTP
// handlers produce snapshots, Apply diffs each one against the canonical
// state, and change listeners fan the diff out to watchers or submitters.
//
//	rec := reconcile.New(reconcile.WithName("checkout"))
//	rec.OnChange(func(d *formdata.DiffResult) {
//	    log.Printf("%d paths changed", len(d.Diffs))
//	})
//
//	diff, err := rec.Apply(ctx, snapshot)
//
// Unchanged snapshots are cheap: no state is replaced and no listener runs.
package reconcile
