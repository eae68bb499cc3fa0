package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/buildharvest/config"
	"github.com/use-agent/buildharvest/models"
	"github.com/use-agent/buildharvest/timeline"
	"github.com/ysmood/gson"
)

// Session is one browser process with one page. Close is idempotent.
type Session struct {
	launcher  *launcher.Launcher
	browser   *rod.Browser
	page      *rod.Page
	router    *rod.HijackRouter
	renderCfg config.RenderConfig
	closeOnce sync.Once
}

// Navigate loads url in the session's page.
func (s *Session) Navigate(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, s.renderCfg.NavigationTimeout)
	defer cancel()
	if err := s.page.Context(ctx).Navigate(url); err != nil {
		return categorizeError(err, "navigation to dashboard failed")
	}
	return nil
}

// AwaitSelector blocks until an element matching selector is present or
// timeout elapses.
func (s *Session) AwaitSelector(ctx context.Context, selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := s.page.Context(ctx).Element(selector); err != nil {
		return categorizeError(err, "waiting for "+selector)
	}
	return nil
}

// Flatten copies every shadow root's content into its host element so the
// page HTML contains the dashboard's real content.
//
// Roots are not marked as expanded, so the timed expansion after a click
// copies them again with the content the click revealed.
func (s *Session) Flatten(ctx context.Context) error {
	n, err := s.expand(ctx, flattenJS)
	if err != nil {
		return err
	}
	slog.Debug("shadow DOM flattened", "roots", n)
	return nil
}

// FlattenWithin repeats the expansion until a pass finds no new shadow root
// or budget runs out. Content that arrives after the budget is ignored.
func (s *Session) FlattenWithin(ctx context.Context, budget time.Duration) {
	deadline := time.Now().Add(budget)
	for time.Now().Before(deadline) {
		n, err := s.expand(ctx, expandJS)
		if err != nil {
			slog.Debug("shadow expansion failed", "error", err)
			return
		}
		if n == 0 {
			slog.Debug("shadow DOM fully flattened")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
	slog.Debug("shadow expansion budget exhausted", "budget", budget)
}

// Disclose clicks the build control at pos inside the dashboard's shadow
// root, revealing that build's log link.
func (s *Session) Disclose(ctx context.Context, pos timeline.Position) error {
	ctx, cancel := context.WithTimeout(ctx, s.renderCfg.ScriptTimeout)
	defer cancel()

	var arg any = pos.Index
	if pos.Green {
		arg = "GREEN"
	}
	res, err := s.page.Context(ctx).Eval(discloseJS, arg)
	if err != nil {
		return categorizeError(err, "click on build #"+pos.String())
	}
	if !res.Value.Bool() {
		return models.NewHarvestError(models.ErrCodePermanentRender, "build #"+pos.String()+" not clickable", nil)
	}
	return nil
}

// HTML returns the page's current serialized DOM.
func (s *Session) HTML(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.renderCfg.ScriptTimeout)
	defer cancel()
	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return "", categorizeError(err, "failed to extract page HTML")
	}
	return html, nil
}

// Close stops the hijack router, closes the browser and kills its process.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.router != nil {
			_ = s.router.Stop()
		}
		if s.browser != nil {
			err = s.browser.Close()
		}
		if s.launcher != nil {
			s.launcher.Kill()
			s.launcher.Cleanup()
		}
	})
	return err
}

func (s *Session) expand(ctx context.Context, script string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.renderCfg.ScriptTimeout)
	defer cancel()
	res, err := s.page.Context(ctx).Eval(script)
	if err != nil {
		return 0, categorizeError(err, "shadow DOM expansion failed")
	}
	return res.Value.Int(), nil
}

// flattenJS appends a copy of every shadow root to its host and recurses
// into the copy, leaving the roots unmarked. It returns the number of roots
// copied.
const flattenJS = `() => {
	function expandShadowRoots(root) {
		let count = 0;
		for (const el of Array.from(root.querySelectorAll('*'))) {
			if (el.shadowRoot) {
				const container = document.createElement('div');
				container.className = '__shadow_contents';
				container.innerHTML = el.shadowRoot.innerHTML;
				el.appendChild(container);
				count++;
				count += expandShadowRoots(container);
			}
		}
		return count;
	}
	return expandShadowRoots(document.body);
}`

// expandJS is flattenJS that skips and marks roots it has already copied,
// so repeated runs converge to zero.
const expandJS = `() => {
	function expandShadowRoots(root) {
		let count = 0;
		for (const el of Array.from(root.querySelectorAll('*'))) {
			if (el.shadowRoot && !el.shadowRoot.__expanded) {
				const container = document.createElement('div');
				container.className = '__shadow_contents';
				container.innerHTML = el.shadowRoot.innerHTML;
				el.appendChild(container);
				el.shadowRoot.__expanded = true;
				count++;
				count += expandShadowRoots(container);
			}
		}
		return count;
	}
	return expandShadowRoots(document.body);
}`

// discloseJS clicks either the last-known-good button or the idx-th
// build-history button inside the build-status shadow root.
const discloseJS = `(idx) => {
	const buildStatus = document.querySelector('body > build-status, body > * > build-status');
	if (!buildStatus || !buildStatus.shadowRoot) return false;
	const shadow = buildStatus.shadowRoot;
	let btn;
	if (idx === "GREEN") {
		btn = shadow.querySelector('paper-button.green');
	} else {
		const history = shadow.querySelector('div.buildHistory');
		const buttons = history ? history.querySelectorAll('paper-button') : [];
		btn = buttons[idx];
	}
	if (!btn) return false;
	btn.click();
	return true;
}`

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into HarvestErrors. Timeout-class
// failures are transient; everything else is permanent.
func categorizeError(err error, msg string) *models.HarvestError {
	if isTimeout(err) {
		return models.NewHarvestError(models.ErrCodeTransientRender, msg, err)
	}
	return models.NewHarvestError(models.ErrCodePermanentRender, msg, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "timed out") || strings.Contains(lower, "timeout")
}
