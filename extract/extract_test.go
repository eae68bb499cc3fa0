package extract

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/use-agent/buildharvest/timeline"
)

const indexHTML = `<html><head><title>Build status</title></head><body>
<build-status><div class="__shadow_contents">
  <div class="project"><iron-icon icon="icons:error"></iron-icon><dom-if></dom-if>
      zip-rs
  </div>
  <div class="project"><iron-icon icon="icons:done"></iron-icon> healthy-lib </div>
  <div class="project"><iron-icon icon="icons:error"></iron-icon> libpng </div>
  <div class="project"><iron-icon icon="icons:error"></iron-icon> zip-rs </div>
</div></build-status>
</body></html>`

const projectHTML = `<html><body><build-status><div class="__shadow_contents">
<paper-button class="green">Last successful build 2025/6/30 23:59:59</paper-button>
<div class="buildHistory">
  <paper-button><iron-icon icon="icons:error"></iron-icon> 2025/7/3 10:00:00</paper-button>
  <paper-button><iron-icon icon="icons:error"></iron-icon> 2025/7/2 9:00:00</paper-button>
  <paper-button><iron-icon icon="icons:done"></iron-icon> 2025/7/1 8:00:00</paper-button>
  <paper-button><iron-icon icon="icons:help"></iron-icon> pending</paper-button>
</div>
<div class="buildHistory"><paper-button>duplicate copy</paper-button></div>
</div></build-status></body></html>`

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	x, err := New("https://logs.example.test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return x
}

func TestProjectNames(t *testing.T) {
	names, err := newExtractor(t).ProjectNames(indexHTML)
	if err != nil {
		t.Fatalf("ProjectNames: %v", err)
	}
	if diff := cmp.Diff([]string{"zip-rs", "libpng"}, names); diff != "" {
		t.Errorf("ProjectNames mismatch (-want +got):\n%s", diff)
	}
}

func TestHistoryControls(t *testing.T) {
	controls, green, err := newExtractor(t).HistoryControls(projectHTML)
	if err != nil {
		t.Fatalf("HistoryControls: %v", err)
	}
	if len(controls) != 4 {
		t.Fatalf("len(controls) = %d, want 4", len(controls))
	}
	if green == nil {
		t.Fatal("green control not found")
	}

	tl := timeline.Build(controls, green)
	var got []string
	for _, e := range tl.Entries {
		got = append(got, e.Position.String()+" "+e.Timestamp+" "+e.Status.String())
	}
	want := []string{
		"GREEN 2025/6/30 23:59:59 success",
		"0 2025/7/3 10:00:00 failure",
		"1 2025/7/2 9:00:00 failure",
		"2 2025/7/1 8:00:00 success",
		"3 unknown_time unknown",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("timeline mismatch (-want +got):\n%s", diff)
	}
}

func TestHistoryControls_NoHistory(t *testing.T) {
	controls, green, err := newExtractor(t).HistoryControls(`<html><body><p>nothing</p></body></html>`)
	if err != nil {
		t.Fatalf("HistoryControls: %v", err)
	}
	if len(controls) != 0 || green != nil {
		t.Errorf("expected no controls, got %d controls, green=%v", len(controls), green)
	}
}

func TestLogLink(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		want   string
		wantOK bool
	}{
		{
			"first matching link",
			`<a href="/index.html">home</a><a href="/log-abc.txt">log</a><a href="/log-def.txt">log2</a>`,
			"https://logs.example.test/log-abc.txt", true,
		},
		{"wrong suffix", `<a href="/log-abc.html">x</a>`, "", false},
		{"absolute links ignored", `<a href="https://other.test/log-abc.txt">x</a>`, "", false},
		{"no links", `<p>loading</p>`, "", false},
	}
	x := newExtractor(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := x.LogLink(tt.html)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("LogLink() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestDigest(t *testing.T) {
	md, err := NewDigester("https://logs.example.test").Digest(indexHTML)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if !strings.HasPrefix(md, "# Build status\n") {
		t.Errorf("digest missing title heading: %q", md)
	}
	if !strings.Contains(md, "libpng") {
		t.Errorf("digest missing project text: %q", md)
	}
}
