package frontier

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// FileStore persists each set as a plain-text file with one URL per line.
// Lists are append-only on disk; duplicates are collapsed when read.
type FileStore struct {
	fs          afero.Fs
	targetPath  string
	wrongPath   string
	catalogPath string
}

// FilePaths names the three list files, relative to a directory.
type FilePaths struct {
	Dir     string
	Target  string
	Wrong   string
	Catalog string
}

// NewFileStore creates a FileStore on fs. The directory is created if needed.
func NewFileStore(fs afero.Fs, p FilePaths) (*FileStore, error) {
	if err := fs.MkdirAll(p.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", p.Dir, err)
	}
	return &FileStore{
		fs:          fs,
		targetPath:  filepath.Join(p.Dir, p.Target),
		wrongPath:   filepath.Join(p.Dir, p.Wrong),
		catalogPath: filepath.Join(p.Dir, p.Catalog),
	}, nil
}

func (s *FileStore) AddTarget(url string) error { return s.appendLine(s.targetPath, url) }

func (s *FileStore) AddWrong(url string) error { return s.appendLine(s.wrongPath, url) }

func (s *FileStore) Wrong() ([]string, error) { return s.readLines(s.wrongPath) }

// Targets returns the Target set, deduplicated.
func (s *FileStore) Targets() ([]string, error) { return s.readLines(s.targetPath) }

// Catalog returns the catalog persisted by the last DedupAgainstCatalog.
func (s *FileStore) Catalog() ([]string, error) { return s.readLines(s.catalogPath) }

func (s *FileStore) DrainWrong(replay func(url string)) error {
	urls, err := s.readLines(s.wrongPath)
	if err != nil {
		return err
	}
	for _, u := range urls {
		replay(u)
	}
	return s.writeLines(s.wrongPath, nil)
}

func (s *FileStore) DedupAgainstCatalog(discovered []string) ([]string, int, error) {
	targets, err := s.readLines(s.targetPath)
	if err != nil {
		return nil, 0, err
	}
	catalog, merged := mergeCatalog(discovered, targets)
	if err := s.writeLines(s.catalogPath, catalog); err != nil {
		return nil, 0, err
	}
	if err := s.writeLines(s.targetPath, nil); err != nil {
		return nil, 0, err
	}
	return catalog, merged, nil
}

func (s *FileStore) appendLine(path, line string) error {
	f, err := s.fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.WriteString(strings.TrimSpace(line) + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("append to %s: %w", path, err)
	}
	return f.Close()
}

func (s *FileStore) readLines(path string) ([]string, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return dedup(lines), nil
}

func (s *FileStore) writeLines(path string, lines []string) error {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	if err := afero.WriteFile(s.fs, path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
