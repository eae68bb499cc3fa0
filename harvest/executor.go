package harvest

import (
	"context"
	"log/slog"

	"github.com/use-agent/buildharvest/models"
	"github.com/use-agent/buildharvest/timeline"
)

// Executor discloses the log link of each selected build entry. Every
// entry gets its own session; a session is never reused across entries.
type Executor struct {
	launcher  Launcher
	extractor Extractor
	opts      Options
	sleep     Sleeper

	// onAbandon is called with the project URL when an entry is given up on.
	onAbandon func(url string, err error)
}

// NewExecutor builds an Executor. onAbandon may be nil.
func NewExecutor(l Launcher, ex Extractor, opts Options, sleeper Sleeper, onAbandon func(string, error)) *Executor {
	if sleeper == nil {
		sleeper = sleep
	}
	if onAbandon == nil {
		onAbandon = func(string, error) {}
	}
	return &Executor{launcher: l, extractor: ex, opts: opts, sleep: sleeper, onAbandon: onAbandon}
}

// Run acts on every entry and returns the artifacts that were disclosed.
// Entries that fail are reported through onAbandon and skipped.
func (e *Executor) Run(ctx context.Context, projectURL string, entries []timeline.BuildEntry) []models.Artifact {
	var artifacts []models.Artifact
	for _, entry := range entries {
		a, err := e.Act(ctx, projectURL, entry)
		if err != nil {
			slog.Warn("entry abandoned",
				"project", ProjectName(projectURL),
				"entry", entry.Position.String(),
				"code", models.CodeOf(err),
				"error", err,
			)
			e.onAbandon(projectURL, err)
			continue
		}
		artifacts = append(artifacts, a)
	}
	return artifacts
}

// Act runs the full disclosure for one entry in a fresh session:
// render, disclose (retrying transient failures), then read the link.
func (e *Executor) Act(ctx context.Context, projectURL string, entry timeline.BuildEntry) (models.Artifact, error) {
	var art models.Artifact
	err := withSession(ctx, e.launcher, func(s Session) error {
		if err := openDashboard(ctx, s, projectURL, e.opts, e.sleep); err != nil {
			return err
		}
		if err := e.disclose(ctx, s, entry.Position); err != nil {
			return err
		}

		s.FlattenWithin(ctx, e.opts.ExpandBudget)
		html, err := s.HTML(ctx)
		if err != nil {
			return err
		}
		link, ok := e.extractor.LogLink(html)
		if !ok {
			return models.NewHarvestError(models.ErrCodeExtractionMiss,
				"no log link after disclosing "+entry.Position.String(), nil)
		}
		art = models.Artifact{
			URL:         link,
			DateStamp:   entry.DateStamp(),
			StatusLabel: entry.Status.Label(),
		}
		slog.Info("log link disclosed",
			"project", ProjectName(projectURL),
			"entry", entry.Position.String(),
			"url", link,
		)
		return nil
	})
	return art, err
}

// disclose clicks the control, retrying up to MaxRetries times with
// exponential backoff. Only transient failures are retried.
func (e *Executor) disclose(ctx context.Context, s Session, pos timeline.Position) error {
	for attempt := 0; ; attempt++ {
		err := s.Disclose(ctx, pos)
		if err == nil {
			return nil
		}
		if !models.IsTransient(err) || attempt >= e.opts.MaxRetries {
			return err
		}
		delay := e.opts.BackoffBase << (attempt + 1)
		slog.Info("retrying disclosure",
			"entry", pos.String(),
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		e.sleep(ctx, delay)
	}
}
