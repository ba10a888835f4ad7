// Package formdata implements the path-addressed data model shared by every
// formsync component: nested form state built from scope paths, and the
// structural diff between two snapshots of that state.
//
// # Core Types
//
// Value is one node of a snapshot graph and is always one of three kinds:
// scalar, sequence, or mapping. FormData is the string-keyed mapping at the
// root of every snapshot. DiffResult maps changed paths to their old/new
// value pairs.
//
// # Scope Paths
//
// A scope path is a '/'-delimited string locating a position in a graph.
// Each segment optionally carries one bracket group:
//
//	path            = segment *("/" segment)
//	segment         = name ["[" bracket-content "]"]
//	bracket-content = "" | integer | key-string
//
// "customer/addresses[0]/city" names the city field of the first address.
// Empty brackets append a new element; non-integer bracket content is a map
// key lookup.
//
// # Resolving
//
// Resolve walks a root along a path, creating missing containers as it
// descends, and returns a live reference to the terminal node. Collection
// passes use it to place control values at arbitrary depth without a
// declared schema.
//
// # Diffing
//
// Diff compares two snapshots and returns the exact set of changed paths,
// descending into nested mappings and comparing sequences element-wise.
// Inputs are never mutated.
//
// # Concurrency
//
// The package does no locking and holds no state of its own. Callers that
// share a root across goroutines serialize access themselves; the reconcile
// package provides that layer.
package formdata
