package harvest

import (
	"log/slog"
	"strings"

	"github.com/spf13/afero"
)

// Digester renders HTML as Markdown.
type Digester interface {
	Digest(html string) (string, error)
}

// Snapshotter keeps a copy of the rendered index page next to the frontier
// files: the raw HTML and, when a Digester is set, a Markdown digest with a
// ".md" extension.
type Snapshotter struct {
	fs       afero.Fs
	path     string
	digester Digester
}

// NewSnapshotter builds a Snapshotter writing to path on fs.
func NewSnapshotter(fs afero.Fs, path string, d Digester) *Snapshotter {
	return &Snapshotter{fs: fs, path: path, digester: d}
}

// Save overwrites the snapshot. A digest failure is logged and leaves the
// HTML snapshot in place.
func (s *Snapshotter) Save(html string) error {
	if err := afero.WriteFile(s.fs, s.path, []byte(html), 0o644); err != nil {
		return err
	}
	if s.digester == nil {
		return nil
	}
	md, err := s.digester.Digest(html)
	if err != nil {
		slog.Warn("index digest failed", "error", err)
		return nil
	}
	return afero.WriteFile(s.fs, digestPath(s.path), []byte(md), 0o644)
}

func digestPath(p string) string {
	if i := strings.LastIndex(p, "."); i > strings.LastIndex(p, "/") {
		p = p[:i]
	}
	return p + ".md"
}
