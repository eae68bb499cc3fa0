package harvest

import (
	"context"
	"testing"

	"github.com/use-agent/buildharvest/models"
)

func TestDownloader(t *testing.T) {
	art := models.Artifact{URL: logURL, DateStamp: "2025_7_3", StatusLabel: "error"}
	tests := []struct {
		name      string
		fails     int
		wantOK    bool
		wantCalls int
	}{
		{"first attempt", 0, true, 1},
		{"third attempt", 2, true, 3},
		{"exhausted", 3, false, 3},
		{"never retries past limit", 10, false, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{fails: tt.fails}
			a := &fakeArchive{}
			d := NewDownloader(f, a, testOptions())

			ok := d.Download(context.Background(), "zip-rs", art)
			if ok != tt.wantOK {
				t.Errorf("Download() = %v, want %v", ok, tt.wantOK)
			}
			if f.calls != tt.wantCalls {
				t.Errorf("fetch calls = %d, want %d", f.calls, tt.wantCalls)
			}
			_, saved := a.files["zip-rs/2025_7_3 error"]
			if saved != tt.wantOK {
				t.Errorf("file saved = %v, want %v", saved, tt.wantOK)
			}
			if f.headers["User-Agent"] != "harvest-test" {
				t.Errorf("User-Agent = %q", f.headers["User-Agent"])
			}
		})
	}
}
