package harvest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/use-agent/buildharvest/models"
	"github.com/use-agent/buildharvest/timeline"
)

const (
	indexURL = "https://dash.example/index.html"
	logURL   = "https://dash.example/log-abc.txt"
)

var (
	transientErr = models.NewHarvestError(models.ErrCodeTransientRender, "click timed out", context.DeadlineExceeded)
	permanentErr = models.NewHarvestError(models.ErrCodePermanentRender, "control missing", nil)
)

// fakeDashboard plays the browser. Pages are keyed by URL; the HTML of a
// page is "page:<url>" with "|disclosed" appended after a successful click.
type fakeDashboard struct {
	navErr       map[string]error
	discloseErrs []error // consumed one per Disclose call
	noLink       bool

	opened    int
	closed    int
	disclosed []timeline.Position
}

func (d *fakeDashboard) Open(context.Context) (Session, error) {
	d.opened++
	return &fakeSession{d: d}, nil
}

type fakeSession struct {
	d         *fakeDashboard
	url       string
	disclosed bool
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.url = url
	return s.d.navErr[url]
}

func (s *fakeSession) AwaitSelector(context.Context, string, time.Duration) error { return nil }
func (s *fakeSession) Flatten(context.Context) error { return nil }
func (s *fakeSession) FlattenWithin(context.Context, time.Duration) {}

func (s *fakeSession) Disclose(_ context.Context, pos timeline.Position) error {
	if len(s.d.discloseErrs) > 0 {
		err := s.d.discloseErrs[0]
		s.d.discloseErrs = s.d.discloseErrs[1:]
		if err != nil {
			return err
		}
	}
	s.d.disclosed = append(s.d.disclosed, pos)
	s.disclosed = true
	return nil
}

func (s *fakeSession) HTML(context.Context) (string, error) {
	html := "page:" + s.url
	if s.disclosed && !s.d.noLink {
		html += "|disclosed"
	}
	return html, nil
}

func (s *fakeSession) Close() error {
	s.d.closed++
	return nil
}

// fakeExtractor reads the fake pages.
type fakeExtractor struct {
	names   []string
	history map[string][]timeline.Control // by project URL
	green   map[string]*timeline.Control
}

func (x *fakeExtractor) ProjectNames(html string) ([]string, error) {
	if html != "page:"+indexURL {
		return nil, errors.New("not the index")
	}
	return x.names, nil
}

func (x *fakeExtractor) HistoryControls(html string) ([]timeline.Control, *timeline.Control, error) {
	url := strings.TrimPrefix(html, "page:")
	return x.history[url], x.green[url], nil
}

func (x *fakeExtractor) LogLink(html string) (string, bool) {
	if strings.HasSuffix(html, "|disclosed") {
		return logURL, true
	}
	return "", false
}

type fakeFetcher struct {
	fails   int // leading calls that fail
	calls   int
	headers map[string]string
}

func (f *fakeFetcher) Get(_ context.Context, _ string, headers map[string]string, _ time.Duration) ([]byte, error) {
	f.calls++
	f.headers = headers
	if f.calls <= f.fails {
		return nil, models.NewHarvestError(models.ErrCodeFetch, "status 503", nil)
	}
	return []byte("log body"), nil
}

type fakeArchive struct {
	files map[string][]byte
}

func (a *fakeArchive) Write(project, name string, data []byte) (string, error) {
	if a.files == nil {
		a.files = map[string][]byte{}
	}
	key := project + "/" + name
	a.files[key] = data
	return key, nil
}

// recordSleeps returns a Sleeper that records non-zero sleeps instead of
// sleeping.
func recordSleeps(into *[]time.Duration) Sleeper {
	return func(_ context.Context, d time.Duration) {
		if d > 0 {
			*into = append(*into, d)
		}
	}
}

func testOptions() Options {
	return Options{
		IndexURL:         indexURL,
		RootSelector:     "build-status",
		MaxRetries:       2,
		BackoffBase:      time.Second,
		DownloadAttempts: 3,
		UserAgent:        "harvest-test",
	}
}

func control(label, icon string) timeline.Control {
	return timeline.Control{Label: label, Markup: `<paper-button><iron-icon icon="icons:` + icon + `"></iron-icon></paper-button>`}
}
