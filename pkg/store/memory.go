package store

import (
	"context"
	"sort"
	"sync"

	"github.com/formsync-dev/formsync/pkg/formdata"
)

// MemoryStore is an in-memory snapshot store implementation.
// It's the default store and suitable for single-server deployments.
// For multi-server deployments, use RedisStore or S3Store.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]formdata.FormData
	closed    bool
}

// NewMemoryStore creates a new in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]formdata.FormData),
	}
}

// Save stores a deep copy of the snapshot, so later mutations of snap by the
// caller do not leak into the store.
func (m *MemoryStore) Save(ctx context.Context, formID string, snap formdata.FormData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}

	m.snapshots[formID] = snap.Clone()
	return nil
}

// Load retrieves a deep copy of a form's snapshot.
func (m *MemoryStore) Load(ctx context.Context, formID string) (formdata.FormData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed{}
	}

	snap, ok := m.snapshots[formID]
	if !ok {
		return nil, &SnapshotNotFoundError{FormID: formID}
	}
	return snap.Clone(), nil
}

// Delete removes a form's snapshot from the store.
func (m *MemoryStore) Delete(ctx context.Context, formID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}

	delete(m.snapshots, formID)
	return nil
}

// List returns the stored form IDs in sorted order.
func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed{}
	}

	ids := make([]string, 0, len(m.snapshots))
	for id := range m.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close shuts down the store and releases its snapshots.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	m.snapshots = nil
	return nil
}

// Count returns the number of stored snapshots.
// This is for monitoring/testing purposes.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshots)
}
