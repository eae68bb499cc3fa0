package frontier

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(afero.NewMemMapFs(), FilePaths{
		Dir: "state", Target: "target.txt", Wrong: "wrong.txt", Catalog: "catalog.txt",
	})
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return map[string]Store{"file": fs, "memory": NewMemoryStore()}
}

func TestDedupAgainstCatalog_MergesPreviousTargets(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_ = s.AddTarget("u#b")
			_ = s.AddTarget("u#c")
			_ = s.AddTarget("u#c")

			catalog, merged, err := s.DedupAgainstCatalog([]string{"u#a", "u#b", "u#a"})
			if err != nil {
				t.Fatalf("DedupAgainstCatalog: %v", err)
			}
			if diff := cmp.Diff([]string{"u#a", "u#b", "u#c"}, catalog); diff != "" {
				t.Errorf("catalog mismatch (-want +got):\n%s", diff)
			}
			if merged != 1 {
				t.Errorf("merged = %d, want 1", merged)
			}

			// Target is cleared: the next pass sees only its own discoveries.
			catalog, merged, _ = s.DedupAgainstCatalog([]string{"u#x"})
			if diff := cmp.Diff([]string{"u#x"}, catalog); diff != "" || merged != 0 {
				t.Errorf("second pass catalog = %v merged=%d", catalog, merged)
			}
		})
	}
}

func TestDrainWrong_ReplaysSnapshotThenClears(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_ = s.AddWrong("u#a")
			_ = s.AddWrong("u#b")
			_ = s.AddWrong("u#a")

			var replayed []string
			err := s.DrainWrong(func(url string) {
				replayed = append(replayed, url)
				// A replay that fails again re-enqueues.
				_ = s.AddWrong(url)
			})
			if err != nil {
				t.Fatalf("DrainWrong: %v", err)
			}
			if diff := cmp.Diff([]string{"u#a", "u#b"}, replayed); diff != "" {
				t.Errorf("replayed mismatch (-want +got):\n%s", diff)
			}
			wrong, _ := s.Wrong()
			if len(wrong) != 0 {
				t.Errorf("Wrong() after drain = %v, want empty", wrong)
			}
		})
	}
}

func TestFileStore_PlainTextFormat(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := NewFileStore(fs, FilePaths{Dir: "state", Target: "t.txt", Wrong: "w.txt", Catalog: "c.txt"})
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	_ = s.AddWrong("https://x/index.html#a")
	_ = s.AddWrong("https://x/index.html#a")

	raw, err := afero.ReadFile(fs, filepath.Join("state", "w.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "https://x/index.html#a\nhttps://x/index.html#a\n"
	if string(raw) != want {
		t.Errorf("file content = %q, want %q", raw, want)
	}
	wrong, _ := s.Wrong()
	if diff := cmp.Diff([]string{"https://x/index.html#a"}, wrong); diff != "" {
		t.Errorf("Wrong() mismatch (-want +got):\n%s", diff)
	}
}

func TestFileStore_ToleratesBlankLinesAndMissingFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, filepath.Join("state", "t.txt"), []byte("\n  u#a  \n\nu#b\n"), 0o644)
	s, err := NewFileStore(fs, FilePaths{Dir: "state", Target: "t.txt", Wrong: "w.txt", Catalog: "c.txt"})
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	wrong, err := s.Wrong()
	if err != nil || len(wrong) != 0 {
		t.Errorf("Wrong() on missing file = %v, %v", wrong, err)
	}
	targets, _ := s.Targets()
	if diff := cmp.Diff([]string{"u#a", "u#b"}, targets); diff != "" {
		t.Errorf("Targets() mismatch (-want +got):\n%s", diff)
	}
	if _, _, err := s.DedupAgainstCatalog(nil); err != nil {
		t.Fatalf("DedupAgainstCatalog: %v", err)
	}
	catalog, _ := s.Catalog()
	if diff := cmp.Diff([]string{"u#a", "u#b"}, catalog); diff != "" {
		t.Errorf("Catalog() mismatch (-want +got):\n%s", diff)
	}
}
