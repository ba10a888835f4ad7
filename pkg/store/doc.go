// Package store provides snapshot persistence for formsync servers.
//
// This package implements pluggable storage backends behind the
// SnapshotStore interface, plus the versioned JSON envelope snapshots are
// persisted in.
//
// # Snapshot Storage
//
// The SnapshotStore interface defines the contract for persistence:
//
//	st := store.NewMemoryStore() // default, single server
//	// or
//	st := store.NewRedisStore(redisClient)
//	// or
//	st := store.NewS3Store(s3Client, "my-bucket")
//
// Load reports a missing form with *SnapshotNotFoundError, which callers
// test with store.IsNotFound; backend failures are returned as-is.
//
// # Serialization
//
// Snapshots persist inside a small JSON envelope carrying the form ID, save
// time, and a format version, so objects read straight from the backend are
// self-describing:
//
//	{"form_id":"checkout","saved_at":"...","data":{...},"version":1}
//
// Deserialize rejects envelopes written by a newer format version.
package store
