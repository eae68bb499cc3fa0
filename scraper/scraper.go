package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/buildharvest/config"
	"github.com/use-agent/buildharvest/models"
	"golang.org/x/time/rate"
)

// Scraper opens browser sessions against the dashboard. Every session gets
// its own browser process so no shadow-DOM state survives between actions.
type Scraper struct {
	browserCfg config.BrowserConfig
	renderCfg  config.RenderConfig
	limiter    *rate.Limiter
}

// NewScraper creates a Scraper. Launches are paced by
// browserCfg.SessionsPerSecond; zero or less disables pacing.
func NewScraper(browserCfg config.BrowserConfig, renderCfg config.RenderConfig) *Scraper {
	limit := rate.Inf
	if browserCfg.SessionsPerSecond > 0 {
		limit = rate.Limit(browserCfg.SessionsPerSecond)
	}
	return &Scraper{
		browserCfg: browserCfg,
		renderCfg:  renderCfg,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Open launches a browser and returns a Session on a fresh page. The caller
// must Close the session.
func (s *Scraper) Open(ctx context.Context) (*Session, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, categorizeError(err, "waiting for launch slot")
	}

	l := s.newLauncher()
	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		l.Kill()
		return nil, models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Debug("browser launched", "controlURL", controlURL)

	sess := &Session{launcher: l, renderCfg: s.renderCfg}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		_ = sess.Close()
		return nil, models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}
	sess.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = sess.Close()
		return nil, models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to create page", err)
	}
	sess.page = page

	if err := s.preparePage(page); err != nil {
		_ = sess.Close()
		return nil, err
	}
	sess.router = setupHijack(page, s.browserCfg.BlockedResourceTypes)
	return sess, nil
}

func (s *Scraper) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(s.browserCfg.Headless).
		NoSandbox(s.browserCfg.NoSandbox).
		Leakless(true)

	if s.browserCfg.BrowserBin != "" {
		l = l.Bin(s.browserCfg.BrowserBin)
	}
	if s.browserCfg.WindowWidth > 0 && s.browserCfg.WindowHeight > 0 {
		l.Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", s.browserCfg.WindowWidth, s.browserCfg.WindowHeight))
	}
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	return l
}

// preparePage installs everything that must exist before navigation.
func (s *Scraper) preparePage(page *rod.Page) error {
	if s.browserCfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
	if ua := s.browserCfg.UserAgent; ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			return models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to set user agent", err)
		}
	}
	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{"Accept-Language": "en-US,en;q=0.9"}),
	}.Call(page)
	return nil
}
