package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/use-agent/buildharvest/changepoint"
	"github.com/use-agent/buildharvest/frontier"
	"github.com/use-agent/buildharvest/models"
	"github.com/use-agent/buildharvest/timeline"
)

// Harvester runs whole passes: discover projects, select change points,
// disclose and download their logs, then replay what failed.
type Harvester struct {
	launcher   Launcher
	extractor  Extractor
	store      frontier.Store
	executor   *Executor
	downloader *Downloader
	snapshot   *Snapshotter
	opts       Options
	sleep      Sleeper

	failed []models.Failure
}

// Deps are the collaborators of a Harvester. Snapshot and Sleep are optional.
type Deps struct {
	Launcher  Launcher
	Extractor Extractor
	Fetcher   Fetcher
	Archive   Archive
	Store     frontier.Store
	Snapshot  *Snapshotter
	Sleep     Sleeper
}

// New wires a Harvester.
func New(d Deps, opts Options) *Harvester {
	h := &Harvester{
		launcher:  d.Launcher,
		extractor: d.Extractor,
		store:     d.Store,
		snapshot:  d.Snapshot,
		opts:      opts,
		sleep:     d.Sleep,
	}
	if h.sleep == nil {
		h.sleep = sleep
	}
	h.executor = NewExecutor(d.Launcher, d.Extractor, opts, h.sleep, h.markWrong)
	h.downloader = NewDownloader(d.Fetcher, d.Archive, opts)
	return h
}

// RunPass executes one pass. The Wrong set is empty when RunPass returns,
// whatever happened. The returned error is non-nil only when the index
// could not be discovered or the frontier store failed; project-level
// failures are recorded in the report.
func (h *Harvester) RunPass(ctx context.Context, runID string) (*models.PassReport, error) {
	h.failed = nil
	report := &models.PassReport{RunID: runID, StartedAt: time.Now().Unix()}

	discovered, discErr := h.Discover(ctx)
	if discErr != nil {
		slog.Error("project discovery failed", "error", discErr)
	}
	report.Discovered = len(discovered)

	catalog, merged, err := h.store.DedupAgainstCatalog(discovered)
	if err != nil {
		return report, fmt.Errorf("catalog: %w", err)
	}
	report.Catalog = len(catalog)
	slog.Info("catalog built",
		"discovered", len(discovered),
		"carried_over", merged,
		"catalog", len(catalog),
	)

	for _, url := range catalog {
		if res := h.project(ctx, url); res != nil {
			report.Results = append(report.Results, *res)
		}
	}

	wrong, err := h.store.Wrong()
	if err != nil {
		return report, fmt.Errorf("read wrong set: %w", err)
	}
	slog.Info("replaying failed projects", "count", len(wrong))
	report.Retried = len(wrong)
	drainErr := h.store.DrainWrong(func(url string) {
		if res := h.project(ctx, url); res != nil {
			report.Results = append(report.Results, *res)
		}
	})

	report.Failed = h.failed
	report.FinishedAt = time.Now().Unix()
	if drainErr != nil {
		return report, fmt.Errorf("drain wrong set: %w", drainErr)
	}
	return report, discErr
}

// Discover renders the index page and returns the project URLs of every
// project currently shown as failing.
func (h *Harvester) Discover(ctx context.Context) ([]string, error) {
	var names []string
	err := withSession(ctx, h.launcher, func(s Session) error {
		if err := openDashboard(ctx, s, h.opts.IndexURL, h.opts, h.sleep); err != nil {
			return err
		}
		html, err := s.HTML(ctx)
		if err != nil {
			return err
		}
		if h.snapshot != nil {
			if err := h.snapshot.Save(html); err != nil {
				slog.Warn("index snapshot not saved", "error", err)
			}
		}
		names, err = h.extractor.ProjectNames(html)
		return err
	})
	if err != nil {
		return nil, wrapDiscovery("index", err)
	}

	urls := make([]string, 0, len(names))
	for _, n := range names {
		urls = append(urls, h.opts.ProjectURL(n))
	}
	slog.Info("projects discovered", "count", len(urls))
	return urls, nil
}

// BuildTimeline renders a project page and reads its build history.
func (h *Harvester) BuildTimeline(ctx context.Context, projectURL string) (*timeline.Timeline, error) {
	var tl *timeline.Timeline
	err := withSession(ctx, h.launcher, func(s Session) error {
		if err := openDashboard(ctx, s, projectURL, h.opts, h.sleep); err != nil {
			return err
		}
		html, err := s.HTML(ctx)
		if err != nil {
			return err
		}
		controls, green, err := h.extractor.HistoryControls(html)
		if err != nil {
			return err
		}
		tl = timeline.Build(controls, green)
		return nil
	})
	if err != nil {
		return nil, wrapDiscovery(ProjectName(projectURL), err)
	}
	return tl, nil
}

// project runs one project through the pipeline. A failure is recorded in
// Wrong and nil is returned; the pass continues.
func (h *Harvester) project(ctx context.Context, url string) *models.ProjectResult {
	name := ProjectName(url)
	slog.Info("processing project", "project", name)

	tl, err := h.BuildTimeline(ctx, url)
	if err != nil {
		slog.Warn("project skipped", "project", name, "code", models.CodeOf(err), "error", err)
		h.markWrong(url, err)
		return nil
	}

	success, failure, unknown := tl.Counts()
	lastGood := "none"
	if tl.HasGreen() {
		lastGood = tl.Entries[0].Timestamp
	}
	slog.Info("build history read",
		"project", name,
		"entries", tl.Len(),
		"success", success,
		"failure", failure,
		"unknown", unknown,
		"last_good", lastGood,
	)

	mask := changepoint.Compute(tl)
	res := &models.ProjectResult{
		Project:      name,
		URL:          url,
		TotalEntries: tl.Len(),
		Selected:     mask.Count(),
	}
	slog.Info("change points selected", "project", name, "total_entries", res.TotalEntries, "selected", res.Selected)
	if res.Selected == 0 {
		return res
	}

	if err := h.store.AddTarget(url); err != nil {
		slog.Error("target not recorded", "project", name, "error", err)
	}
	artifacts := h.executor.Run(ctx, url, mask.Selected(tl))
	res.Fetched = len(artifacts)
	for _, a := range artifacts {
		if h.downloader.Download(ctx, name, a) {
			res.Downloaded++
		}
	}
	return res
}

func (h *Harvester) markWrong(url string, err error) {
	seen := slices.ContainsFunc(h.failed, func(f models.Failure) bool { return f.URL == url })
	if !seen {
		h.failed = append(h.failed, models.Failure{URL: url, Error: models.DetailOf(err)})
	}
	if err := h.store.AddWrong(url); err != nil {
		slog.Error("wrong set not updated", "url", url, "error", err)
	}
}

func wrapDiscovery(what string, err error) error {
	var he *models.HarvestError
	if errors.As(err, &he) && he.Code == models.ErrCodeDiscovery {
		return err
	}
	return models.NewHarvestError(models.ErrCodeDiscovery, "discovery failed for "+what, err)
}
