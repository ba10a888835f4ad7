package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/formsync-dev/formsync/pkg/formdata"
)

// SnapshotStore defines the interface for snapshot persistence backends.
// Implementations must be safe for concurrent use.
type SnapshotStore interface {
	// Save persists a form's snapshot. An existing snapshot under the same
	// form ID is overwritten.
	Save(ctx context.Context, formID string, snap formdata.FormData) error

	// Load retrieves a form's snapshot.
	// Returns *SnapshotNotFoundError if the form has no stored snapshot.
	// Returns (nil, err) on backend errors.
	Load(ctx context.Context, formID string) (formdata.FormData, error)

	// Delete removes a form's snapshot. Deleting a form that was never
	// stored is not an error.
	Delete(ctx context.Context, formID string) error

	// List returns the IDs of all stored forms in sorted order.
	List(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	// Called when the server shuts down.
	Close() error
}

// SnapshotNotFoundError is returned by Load when a form has no stored
// snapshot.
type SnapshotNotFoundError struct {
	FormID string
}

func (e *SnapshotNotFoundError) Error() string {
	return "store: snapshot not found: " + e.FormID
}

// IsNotFound reports whether err means a missing snapshot.
func IsNotFound(err error) bool {
	var nf *SnapshotNotFoundError
	return errors.As(err, &nf)
}

// ErrStoreClosed is returned when operations are attempted on a closed store.
type ErrStoreClosed struct{}

func (ErrStoreClosed) Error() string {
	return "store: snapshot store is closed"
}

// CurrentSerializationVersion is the version of the persisted snapshot
// format. Increment when making breaking changes to the format.
const CurrentSerializationVersion = 1

// envelope is the persisted representation of a snapshot. The form ID and
// save time are carried so raw stored objects stay self-describing.
type envelope struct {
	// FormID is the owning form.
	FormID string `json:"form_id"`

	// SavedAt is when the snapshot was persisted.
	SavedAt time.Time `json:"saved_at"`

	// Data is the snapshot itself.
	Data formdata.FormData `json:"data"`

	// Version is the serialization format version.
	Version int `json:"version"`
}

// Serialize converts a snapshot to its persisted byte form.
func Serialize(formID string, snap formdata.FormData) ([]byte, error) {
	return json.Marshal(envelope{
		FormID:  formID,
		SavedAt: time.Now().UTC(),
		Data:    snap,
		Version: CurrentSerializationVersion,
	})
}

// Deserialize converts persisted bytes back to a snapshot. Bytes written by
// a newer format version are rejected rather than misread.
func Deserialize(data []byte) (formdata.FormData, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("store: decode snapshot: %w", err)
	}
	if env.Version > CurrentSerializationVersion {
		return nil, fmt.Errorf("store: snapshot version %d not supported (max %d)", env.Version, CurrentSerializationVersion)
	}
	if env.Data == nil {
		env.Data = formdata.FormData{}
	}
	return env.Data, nil
}
