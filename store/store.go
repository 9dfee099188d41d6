// Package store provides durable, keyed persistence for workflow snapshots.
//
// Implementations share compare-and-swap semantics: Load returns the store
// revision it observed on the snapshot, and Save rejects the write with
// ErrConflict if the stored revision has moved since. Saving a snapshot
// whose content is identical to the stored one is a no-op.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/planweave/planweave/workflow"
)

// Store defines the interface for persistent workflow snapshot storage.
type Store interface {
	// Load retrieves a workflow snapshot by id.
	Load(ctx context.Context, id string) (*workflow.Workflow, error)

	// Save persists a workflow snapshot, bumping its store revision.
	// Returns ErrConflict if the stored revision no longer matches the
	// revision the snapshot was loaded at.
	Save(ctx context.Context, w *workflow.Workflow) error

	// List returns all workflow ids currently present, sorted.
	List(ctx context.Context) ([]string, error)
}

// ErrNotFound is returned when a workflow doesn't exist in the store.
var ErrNotFound = errors.New("workflow not found")

// ErrInvalidID is returned when an invalid workflow id is provided.
var ErrInvalidID = errors.New("invalid workflow id")

// ErrConflict is returned when a save races a concurrent update of the
// same workflow.
var ErrConflict = errors.New("workflow was modified concurrently")

// encode serializes a snapshot at the given store revision.
func encode(w *workflow.Workflow, revision int64) ([]byte, error) {
	c := w.Clone()
	c.StoreRevision = revision
	return json.Marshal(c)
}

// sameContent reports whether the candidate snapshot is byte-identical to
// the stored one once revisions are aligned. Used to make Save idempotent.
func sameContent(stored []byte, w *workflow.Workflow, storedRevision int64) bool {
	candidate, err := encode(w, storedRevision)
	if err != nil {
		return false
	}
	return bytes.Equal(stored, candidate)
}

// decode deserializes a snapshot, rejecting unknown fields.
func decode(data []byte) (*workflow.Workflow, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var w workflow.Workflow
	if err := dec.Decode(&w); err != nil {
		return nil, err
	}
	return &w, nil
}
