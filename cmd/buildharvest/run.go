package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/use-agent/buildharvest/archive"
	"github.com/use-agent/buildharvest/config"
	"github.com/use-agent/buildharvest/extract"
	"github.com/use-agent/buildharvest/fetcher"
	"github.com/use-agent/buildharvest/frontier"
	"github.com/use-agent/buildharvest/harvest"
	"github.com/use-agent/buildharvest/models"
	"github.com/use-agent/buildharvest/scraper"
	"github.com/use-agent/buildharvest/webhook"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs a single pass and exits.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(cmd.Context(), loadConfig())
	},
}

// runPass executes one full pass with its own log file.
func runPass(ctx context.Context, cfg *config.Config) error {
	started := time.Now()
	runID := uuid.NewString()
	restore, err := startPassLogging(cfg.Log, runID, started)
	if err != nil {
		return err
	}
	defer restore()

	slog.Info("buildharvest pass starting",
		"index", cfg.Dashboard.IndexURL,
		"store", cfg.Store.Dir,
		"headless", cfg.Browser.Headless,
	)

	h, err := newHarvester(cfg)
	if err != nil {
		slog.Error("failed to initialise harvester", "error", err)
		return err
	}

	report, err := h.RunPass(ctx, runID)
	slog.Info("buildharvest pass finished",
		"duration", time.Since(started).Round(time.Second),
		"catalog", report.Catalog,
		"projects", len(report.Results),
		"failed", len(report.Failed),
	)

	if cfg.Webhook.URL != "" {
		webhook.Notify(ctx, cfg.Webhook.URL, cfg.Webhook.Secret, webhook.PassCompleted(report))
	}
	if err != nil {
		slog.Error("pass failed", "code", models.CodeOf(err), "error", err)
		return fmt.Errorf("pass %s: %w", runID, err)
	}
	return nil
}

// startPassLogging points the default logger at a fresh per-pass log file,
// tagged with runID. restore closes the file and reinstates the logger that
// was the default before the call.
func startPassLogging(cfg config.LogConfig, runID string, now time.Time) (restore func(), err error) {
	prev := slog.Default()
	closer, err := initLogger(cfg, now)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.Default().With("run_id", runID))
	return func() {
		slog.SetDefault(prev)
		if err := closer.Close(); err != nil {
			slog.Warn("log file not closed cleanly", "error", err)
		}
	}, nil
}

func newHarvester(cfg *config.Config) (*harvest.Harvester, error) {
	fs := afero.NewOsFs()

	store, err := frontier.NewFileStore(fs, frontier.FilePaths{
		Dir:     cfg.Store.Dir,
		Target:  cfg.Store.TargetFile,
		Wrong:   cfg.Store.WrongFile,
		Catalog: cfg.Store.CatalogFile,
	})
	if err != nil {
		return nil, err
	}

	ex, err := extract.New(cfg.Dashboard.ArtifactBase)
	if err != nil {
		return nil, err
	}

	sc := scraper.NewScraper(cfg.Browser, cfg.Render)
	// harvest never imports scraper; the closure adapts the concrete session.
	launch := harvest.LauncherFunc(func(ctx context.Context) (harvest.Session, error) {
		s, err := sc.Open(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	})

	return harvest.New(harvest.Deps{
		Launcher:  launch,
		Extractor: ex,
		Fetcher:   fetcher.New(),
		Archive:   archive.New(fs, filepath.Join(cfg.Store.Dir, cfg.Store.ArchiveDir)),
		Store:     store,
		Snapshot: harvest.NewSnapshotter(fs,
			filepath.Join(cfg.Store.Dir, cfg.Store.Snapshot),
			extract.NewDigester(cfg.Dashboard.ArtifactBase)),
	}, harvest.OptionsFromConfig(cfg)), nil
}
