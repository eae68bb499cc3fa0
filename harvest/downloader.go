package harvest

import (
	"context"
	"log/slog"

	"github.com/use-agent/buildharvest/models"
)

// Downloader fetches disclosed logs into the archive. Failures are logged
// and never escalated.
type Downloader struct {
	fetcher  Fetcher
	archive  Archive
	attempts int
	opts     Options
}

// NewDownloader builds a Downloader that makes at most opts.DownloadAttempts
// attempts per artifact.
func NewDownloader(f Fetcher, a Archive, opts Options) *Downloader {
	attempts := opts.DownloadAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Downloader{fetcher: f, archive: a, attempts: attempts, opts: opts}
}

// Download saves the artifact under the project's archive directory and
// reports whether it succeeded. Attempts are immediate, with no backoff.
func (d *Downloader) Download(ctx context.Context, project string, a models.Artifact) bool {
	headers := map[string]string{}
	if d.opts.UserAgent != "" {
		headers["User-Agent"] = d.opts.UserAgent
	}

	var lastErr error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		data, err := d.fetcher.Get(ctx, a.URL, headers, d.opts.DownloadTimeout)
		if err == nil {
			path, werr := d.archive.Write(project, a.FileName(), data)
			if werr == nil {
				slog.Info("log archived", "project", project, "path", path, "bytes", len(data))
				return true
			}
			err = werr
		}
		lastErr = err
		slog.Warn("log download failed",
			"project", project,
			"url", a.URL,
			"attempt", attempt,
			"error", err,
		)
	}
	slog.Error("log download gave up",
		"project", project,
		"url", a.URL,
		"attempts", d.attempts,
		"error", lastErr,
	)
	return false
}
