package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Runs a pass at each configured time of day until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := loadConfig()

		var c *cron.Cron
		c, err := newScheduler(cfg.Schedule.Times, func() {
			// A failed pass is already logged; the schedule keeps going.
			if err := runPass(ctx, loadConfig()); err != nil {
				slog.Error("scheduled pass failed", "error", err)
			}
			slog.Info("next pass scheduled", "at", nextRun(c, time.Now()).Format(time.DateTime))
		})
		if err != nil {
			return err
		}
		c.Start()
		slog.Info("scheduler started",
			"times", cfg.Schedule.Times,
			"next", nextRun(c, time.Now()).Format(time.DateTime),
		)

		<-ctx.Done()
		// Stop waits for a pass that is already running.
		<-c.Stop().Done()
		slog.Info("scheduler stopped")
		return nil
	},
}

// newScheduler registers job once per "HH:MM" time of day in the local
// zone. A firing that arrives while a pass is still running is skipped, so
// passes never overlap.
func newScheduler(times []string, job func()) (*cron.Cron, error) {
	specs, err := cronSpecs(times)
	if err != nil {
		return nil, err
	}
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(time.Local),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	for _, spec := range specs {
		if _, err := c.AddFunc(spec, job); err != nil {
			return nil, fmt.Errorf("schedule: add %q: %w", spec, err)
		}
	}
	return c, nil
}

// cronSpecs turns "HH:MM" times into daily five-field cron specs.
func cronSpecs(times []string) ([]string, error) {
	if len(times) == 0 {
		return nil, fmt.Errorf("schedule: no times configured")
	}
	specs := make([]string, 0, len(times))
	for _, s := range times {
		t, err := time.Parse("15:04", s)
		if err != nil {
			return nil, fmt.Errorf("schedule: bad time %q: %w", s, err)
		}
		specs = append(specs, fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()))
	}
	return specs, nil
}

// nextRun returns the earliest firing of any entry after now.
func nextRun(c *cron.Cron, now time.Time) time.Time {
	var next time.Time
	for _, e := range c.Entries() {
		if t := e.Schedule.Next(now); next.IsZero() || t.Before(next) {
			next = t
		}
	}
	return next
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
