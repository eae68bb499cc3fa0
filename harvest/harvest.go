// Package harvest drives the dashboard to disclose build logs for the
// builds that mark a status change, and archives the logs.
//
// Everything runs sequentially on the calling goroutine: one browser
// session at a time, opened and closed around each render or action.
package harvest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/buildharvest/config"
	"github.com/use-agent/buildharvest/timeline"
)

// Session is a rendered browser page. Close must be safe to call twice.
type Session interface {
	Navigate(ctx context.Context, url string) error
	AwaitSelector(ctx context.Context, selector string, timeout time.Duration) error
	Flatten(ctx context.Context) error
	FlattenWithin(ctx context.Context, budget time.Duration)
	Disclose(ctx context.Context, pos timeline.Position) error
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Launcher opens fresh sessions.
type Launcher interface {
	Open(ctx context.Context) (Session, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context) (Session, error)

func (f LauncherFunc) Open(ctx context.Context) (Session, error) { return f(ctx) }

// Extractor reads dashboard HTML.
type Extractor interface {
	ProjectNames(html string) ([]string, error)
	HistoryControls(html string) ([]timeline.Control, *timeline.Control, error)
	LogLink(html string) (string, bool)
}

// Fetcher downloads an artifact.
type Fetcher interface {
	Get(ctx context.Context, url string, headers map[string]string, timeout time.Duration) ([]byte, error)
}

// Archive stores downloaded logs per project.
type Archive interface {
	Write(project, name string, data []byte) (string, error)
}

// Sleeper blocks for d. The default sleeps on a timer and returns early if
// ctx is done.
type Sleeper func(ctx context.Context, d time.Duration)

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Options are the knobs of the pipeline, taken from config.
type Options struct {
	IndexURL     string
	RootSelector string

	ReadyTimeout time.Duration
	SettleDelay  time.Duration
	ExpandBudget time.Duration

	MaxRetries  int
	BackoffBase time.Duration

	DownloadAttempts int
	DownloadTimeout  time.Duration
	UserAgent        string
}

// OptionsFromConfig collects Options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		IndexURL:         cfg.Dashboard.IndexURL,
		RootSelector:     cfg.Dashboard.RootSelector,
		ReadyTimeout:     cfg.Render.ReadyTimeout,
		SettleDelay:      cfg.Render.SettleDelay,
		ExpandBudget:     cfg.Render.ExpandBudget,
		MaxRetries:       cfg.Action.MaxRetries,
		BackoffBase:      cfg.Action.BackoffBase,
		DownloadAttempts: cfg.Download.MaxAttempts,
		DownloadTimeout:  cfg.Download.Timeout,
		UserAgent:        cfg.Browser.UserAgent,
	}
}

// ProjectURL returns the dashboard URL of project name.
func (o Options) ProjectURL(name string) string {
	base, _, _ := strings.Cut(o.IndexURL, "#")
	return base + "#" + name
}

// ProjectName returns the fragment of a project URL.
func ProjectName(url string) string {
	if _, frag, ok := strings.Cut(url, "#"); ok && frag != "" {
		return frag
	}
	return "unknown_project"
}

// withSession opens a session, runs fn, and always closes the session.
func withSession(ctx context.Context, l Launcher, fn func(Session) error) error {
	s, err := l.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			slog.Debug("browser close failed", "error", cerr)
		}
		slog.Debug("browser closed")
	}()
	return fn(s)
}

// openDashboard navigates to url, waits for the root control, lets the
// asynchronous content settle and flattens the shadow roots.
func openDashboard(ctx context.Context, s Session, url string, opts Options, sleeper Sleeper) error {
	if err := s.Navigate(ctx, url); err != nil {
		return err
	}
	slog.Debug("navigated", "url", url)
	if err := s.AwaitSelector(ctx, opts.RootSelector, opts.ReadyTimeout); err != nil {
		return err
	}
	sleeper(ctx, opts.SettleDelay)
	return s.Flatten(ctx)
}
