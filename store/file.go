package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/planweave/planweave/workflow"
)

const snapshotExt = ".json"

// FileStore persists one JSON snapshot file per workflow id under a root
// directory. Writes are atomic (write-temp-then-rename) so an interrupted
// save never leaves a half-written snapshot behind.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed workflow store rooted at dir,
// creating the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// path returns the snapshot file path for a workflow id.
func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+snapshotExt)
}

// validID rejects ids that could escape the state directory.
func validID(id string) bool {
	return id != "" && id == filepath.Base(id) && !strings.ContainsAny(id, "/\\") && id != "." && id != ".."
}

// Load retrieves a workflow snapshot by id.
func (s *FileStore) Load(ctx context.Context, id string) (*workflow.Workflow, error) {
	if !validID(id) {
		return nil, ErrInvalidID
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	w, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", id, err)
	}
	return w, nil
}

// Save persists a workflow snapshot with compare-and-swap semantics.
func (s *FileStore) Save(ctx context.Context, w *workflow.Workflow) error {
	if w == nil || !validID(w.ID) {
		return ErrInvalidID
	}

	var stored int64
	current, err := os.ReadFile(s.path(w.ID))
	switch {
	case err == nil:
		existing, derr := decode(current)
		if derr != nil {
			return fmt.Errorf("parse stored snapshot %s: %w", w.ID, derr)
		}
		stored = existing.StoreRevision
		if sameContent(current, w, stored) {
			w.StoreRevision = stored
			return nil
		}
	case os.IsNotExist(err):
		stored = 0
	default:
		return fmt.Errorf("read snapshot: %w", err)
	}

	if w.StoreRevision != stored {
		return fmt.Errorf("%w: %s (loaded revision %d, stored %d)",
			ErrConflict, w.ID, w.StoreRevision, stored)
	}

	next := stored + 1
	data, err := encode(w, next)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := writeFileAtomic(s.path(w.ID), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	w.StoreRevision = next
	return nil
}

// List returns all workflow ids currently on disk, sorted.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), snapshotExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), snapshotExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)
