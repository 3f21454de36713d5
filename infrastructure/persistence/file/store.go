package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	pkgerrors "gentree/pkg/errors"
)

// Store keeps one JSON file per key inside a directory. Writes go to a
// temporary file that is renamed into place, so a crash never leaves a
// half-written document behind.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates the directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, pkgerrors.NewValidationError("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, pkgerrors.NewDatabaseError("create data directory", err)
	}
	return &Store{dir: dir}, nil
}

// Get reads the file for key
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, pkgerrors.NewNotFoundError("key " + key)
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("read "+key, err)
	}
	return data, nil
}

// Set atomically replaces the file for key
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return pkgerrors.NewDatabaseError("write "+key, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return pkgerrors.NewDatabaseError("write "+key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return pkgerrors.NewDatabaseError("sync "+key, err)
	}
	if err := tmp.Close(); err != nil {
		return pkgerrors.NewDatabaseError("close "+key, err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		return pkgerrors.NewDatabaseError("rename "+key, err)
	}
	return nil
}

// Dir returns the data directory
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, FileName(key))
}

// FileName maps a key to a safe file name: "gentree:tree" becomes
// "gentree_tree.json".
func FileName(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := strings.TrimLeft(b.String(), ".")
	if name == "" {
		name = "_"
	}
	return fmt.Sprintf("%s.json", name)
}
