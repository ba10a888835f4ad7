// Package formsync provides the public API for the formsync engine.
//
// This is the recommended import for embedding:
//
//	import "github.com/formsync-dev/formsync"
//
// Usage:
//
//	eng := formsync.New(formsync.WithName("signup"))
//	eng.RegisterValue("user/email", "ada@example.com")
//	eng.Register("tags[]", collect.Static("beta"))
//	diff, err := eng.Sync(ctx)
//
// The subpackages remain importable on their own: pkg/formdata for the
// value graph and diffing, pkg/collect for snapshot assembly, pkg/reconcile
// for canonical state, pkg/submit for HTTP delivery, pkg/store for
// persistence, and pkg/server for the sync server.
package formsync

import (
	"github.com/formsync-dev/formsync/pkg/formdata"
)

// Version is the formsync release version.
const Version = "0.1.0"

// =============================================================================
// Value graph (re-export from pkg/formdata)
// =============================================================================

// FormData is a string-keyed mapping of values: the root shape of every
// snapshot.
type FormData = formdata.FormData

// Value is one node of a form data graph.
type Value = formdata.Value

// Kind is the node type discriminator.
type Kind = formdata.Kind

// Kind constants
const (
	KindScalar   = formdata.KindScalar
	KindSequence = formdata.KindSequence
	KindMapping  = formdata.KindMapping
)

// Scalar returns a leaf node. Numeric input is normalized to float64.
var Scalar = formdata.Scalar

// Seq returns a sequence node holding the given elements.
var Seq = formdata.Seq

// Map returns a mapping node holding the given fields.
var Map = formdata.Map

// FromAny converts plain Go data (scalars, []any, map[string]any) into a
// value node.
var FromAny = formdata.FromAny

// Resolve walks a scope path from root, materializing missing containers.
var Resolve = formdata.Resolve

// Put writes a value at a scope path, creating intermediate containers.
var Put = formdata.Put

// InvalidPathError reports a scope path the resolver cannot address.
type InvalidPathError = formdata.InvalidPathError

// =============================================================================
// Diffing (re-export from pkg/formdata)
// =============================================================================

// Diff compares two snapshots structurally.
var Diff = formdata.Diff

// DiffResult is the outcome of comparing two snapshots.
type DiffResult = formdata.DiffResult

// Change is one changed path: the old value and the new.
type Change = formdata.Change
