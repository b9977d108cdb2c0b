// Package scratch gives each conversion batch its own temporary directory.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const prefix = "notesynth-"

// Dir is a batch-scoped directory. Close removes it and everything in it.
type Dir struct {
	id   string
	path string
}

// New creates <root>/notesynth-<uuid>. An empty root uses os.TempDir.
func New(root string) (*Dir, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("scratch: create root %s: %w", root, err)
	}
	id := uuid.NewString()
	path := filepath.Join(root, prefix+id)
	if err := os.Mkdir(path, 0o700); err != nil {
		return nil, fmt.Errorf("scratch: create %s: %w", path, err)
	}
	return &Dir{id: id, path: path}, nil
}

// ID is the batch identifier embedded in the directory name.
func (d *Dir) ID() string { return d.id }

// Path is the absolute directory path.
func (d *Dir) Path() string { return d.path }

// Create opens a new uniquely named file in the directory.
func (d *Dir) Create(pattern string) (*os.File, error) {
	f, err := os.CreateTemp(d.path, pattern)
	if err != nil {
		return nil, fmt.Errorf("scratch: create %s: %w", pattern, err)
	}
	return f, nil
}

// Close removes the directory tree. It is safe to call more than once.
func (d *Dir) Close() error {
	if err := os.RemoveAll(d.path); err != nil {
		return fmt.Errorf("scratch: remove %s: %w", d.path, err)
	}
	return nil
}
