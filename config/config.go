package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Dashboard DashboardConfig
	Browser   BrowserConfig
	Render    RenderConfig
	Action    ActionConfig
	Download  DownloadConfig
	Store     StoreConfig
	Log       LogConfig
	Schedule  ScheduleConfig
	Webhook   WebhookConfig
}

// DashboardConfig locates the status dashboard and its artifact host.
type DashboardConfig struct {
	// IndexURL is the dashboard page listing every project.
	IndexURL string // default: "https://oss-fuzz-build-logs.storage.googleapis.com/index.html"

	// ArtifactBase is prepended to relative log links.
	ArtifactBase string // default: "https://oss-fuzz-build-logs.storage.googleapis.com"

	// RootSelector is the dashboard's root control.
	RootSelector string // default: "build-status"
}

// BrowserConfig controls the Rod browser instances.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// UserAgent is sent by the browser and by the log downloader.
	UserAgent string

	// WindowWidth and WindowHeight size the browser viewport.
	WindowWidth  int // default: 1200
	WindowHeight int // default: 900

	// Stealth injects anti-bot-detection evasions before navigation.
	Stealth bool // default: false

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// SessionsPerSecond paces browser launches.
	SessionsPerSecond float64 // default: 0.5
}

// RenderConfig bounds every wait performed against a rendered page.
type RenderConfig struct {
	// NavigationTimeout is the max time for page.Navigate alone.
	NavigationTimeout time.Duration // default: 60s

	// ReadyTimeout bounds the wait for the root control to appear.
	ReadyTimeout time.Duration // default: 100s

	// SettleDelay lets the dashboard finish its asynchronous loads.
	SettleDelay time.Duration // default: 20s

	// ExpandBudget bounds the post-disclosure shadow-DOM expansion loop.
	ExpandBudget time.Duration // default: 3s

	// ScriptTimeout bounds a single JavaScript evaluation.
	ScriptTimeout time.Duration // default: 120s
}

// ActionConfig controls disclosure retries.
type ActionConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int // default: 2

	// BackoffBase is multiplied by 2^attempt between retries.
	BackoffBase time.Duration // default: 1s
}

// DownloadConfig controls artifact downloads.
type DownloadConfig struct {
	// MaxAttempts is the total number of download attempts.
	MaxAttempts int // default: 3

	// Timeout bounds a single download.
	Timeout time.Duration // default: 50s
}

// StoreConfig locates the persisted work queues and the archive.
type StoreConfig struct {
	Dir         string // default: "."
	ArchiveDir  string // default: "archive"
	TargetFile  string // default: "target_url_list.txt"
	WrongFile   string // default: "wrong_url_list.txt"
	CatalogFile string // default: "project_url_list.txt"
	Snapshot    string // default: "index_snapshot.html"
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
	Dir    string // default: "logs"
}

// ScheduleConfig lists the local times at which scheduled passes run.
type ScheduleConfig struct {
	Times []string // default: ["01:00", "23:00"]
}

// WebhookConfig controls the optional pass report notification.
type WebhookConfig struct {
	URL    string
	Secret string
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.0.0 Safari/537.36"

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Dashboard: DashboardConfig{
			IndexURL:     envOr("HARVEST_INDEX_URL", "https://oss-fuzz-build-logs.storage.googleapis.com/index.html"),
			ArtifactBase: envOr("HARVEST_ARTIFACT_BASE", "https://oss-fuzz-build-logs.storage.googleapis.com"),
			RootSelector: envOr("HARVEST_ROOT_SELECTOR", "build-status"),
		},
		Browser: BrowserConfig{
			Headless:          envBoolOr("HARVEST_HEADLESS", true),
			NoSandbox:         envBoolOr("HARVEST_NO_SANDBOX", true),
			BrowserBin:        os.Getenv("HARVEST_BROWSER_BIN"),
			UserAgent:         envOr("HARVEST_USER_AGENT", defaultUserAgent),
			WindowWidth:       envIntOr("HARVEST_WINDOW_WIDTH", 1200),
			WindowHeight:      envIntOr("HARVEST_WINDOW_HEIGHT", 900),
			Stealth:           envBoolOr("HARVEST_STEALTH", false),
			SessionsPerSecond: envFloatOr("HARVEST_SESSIONS_PER_SECOND", 0.5),
			BlockedResourceTypes: envSliceOr("HARVEST_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Render: RenderConfig{
			NavigationTimeout: envDurationOr("HARVEST_NAV_TIMEOUT", 60*time.Second),
			ReadyTimeout:      envDurationOr("HARVEST_READY_TIMEOUT", 100*time.Second),
			SettleDelay:       envDurationOr("HARVEST_SETTLE_DELAY", 20*time.Second),
			ExpandBudget:      envDurationOr("HARVEST_EXPAND_BUDGET", 3*time.Second),
			ScriptTimeout:     envDurationOr("HARVEST_SCRIPT_TIMEOUT", 120*time.Second),
		},
		Action: ActionConfig{
			MaxRetries:  envIntOr("HARVEST_ACTION_RETRIES", 2),
			BackoffBase: envDurationOr("HARVEST_ACTION_BACKOFF", time.Second),
		},
		Download: DownloadConfig{
			MaxAttempts: envIntOr("HARVEST_DOWNLOAD_ATTEMPTS", 3),
			Timeout:     envDurationOr("HARVEST_DOWNLOAD_TIMEOUT", 50*time.Second),
		},
		Store: StoreConfig{
			Dir:         envOr("HARVEST_STORE_DIR", "."),
			ArchiveDir:  envOr("HARVEST_ARCHIVE_DIR", "archive"),
			TargetFile:  envOr("HARVEST_TARGET_FILE", "target_url_list.txt"),
			WrongFile:   envOr("HARVEST_WRONG_FILE", "wrong_url_list.txt"),
			CatalogFile: envOr("HARVEST_CATALOG_FILE", "project_url_list.txt"),
			Snapshot:    envOr("HARVEST_SNAPSHOT_FILE", "index_snapshot.html"),
		},
		Log: LogConfig{
			Level:  envOr("HARVEST_LOG_LEVEL", "info"),
			Format: envOr("HARVEST_LOG_FORMAT", "text"),
			Dir:    envOr("HARVEST_LOG_DIR", "logs"),
		},
		Schedule: ScheduleConfig{
			Times: envSliceOr("HARVEST_SCHEDULE", []string{"01:00", "23:00"}),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("HARVEST_WEBHOOK_URL"),
			Secret: os.Getenv("HARVEST_WEBHOOK_SECRET"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
