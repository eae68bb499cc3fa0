// Package archive stores downloaded build logs under one directory per
// project: <root>/<project>/<date> <status>.
package archive

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Store is the per-project content store.
type Store struct {
	fs   afero.Fs
	root string
}

// New creates a Store rooted at root on fs.
func New(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, root: root}
}

// Path returns where a file for project would be written.
func (s *Store) Path(project, name string) string {
	return filepath.Join(s.root, sanitize(project), sanitize(name))
}

// Write stores data for project under name, replacing any earlier file with
// the same name. The write goes through a temp file and a rename.
func (s *Store) Write(project, name string, data []byte) (string, error) {
	path := s.Path(project, name)
	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(s.fs, dir, ".harvest-tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = s.fs.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := s.fs.Rename(tmpPath, path); err != nil {
		cleanup()
		return "", fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return path, nil
}

// sanitize keeps a path element from escaping its parent directory.
func sanitize(elem string) string {
	elem = strings.TrimSpace(elem)
	elem = strings.NewReplacer("/", "_", "\\", "_").Replace(elem)
	if elem == "" || elem == "." || elem == ".." {
		return "unknown_project"
	}
	return elem
}
