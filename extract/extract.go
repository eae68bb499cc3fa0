// Package extract reads project names, build-history controls and log links
// out of dashboard HTML whose shadow roots have been flattened into the
// light DOM.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/buildharvest/timeline"
	"golang.org/x/net/html"
)

var (
	errorIconSel   = cascadia.MustCompile(`iron-icon[icon="icons:error"]`)
	historySel     = cascadia.MustCompile(`div.buildHistory`)
	historyBtnSel  = cascadia.MustCompile(`paper-button`)
	greenButtonSel = cascadia.MustCompile(`paper-button.green`)
	anchorSel      = cascadia.MustCompile(`a[href]`)
)

// Extractor is the content extractor for the build-status dashboard.
type Extractor struct {
	artifactBase *url.URL
}

// New creates an Extractor that resolves log links against artifactBase.
func New(artifactBase string) (*Extractor, error) {
	u, err := url.Parse(artifactBase)
	if err != nil {
		return nil, fmt.Errorf("extract: parse artifact base: %w", err)
	}
	return &Extractor{artifactBase: u}, nil
}

// ProjectNames returns, in page order and without duplicates, the names of
// projects whose row carries an error icon.
func (x *Extractor) ProjectNames(rawHTML string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("extract: parse html: %w", err)
	}

	var names []string
	seen := make(map[string]struct{})
	doc.FindMatcher(errorIconSel).Each(func(_ int, icon *goquery.Selection) {
		row := icon.Closest("div")
		if row.Length() == 0 {
			return
		}
		name := lastOwnText(row.Get(0))
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	})
	return names, nil
}

// HistoryControls returns the controls of the first build-history list and,
// when present, the last-known-good control.
func (x *Extractor) HistoryControls(rawHTML string) ([]timeline.Control, *timeline.Control, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, nil, fmt.Errorf("extract: parse html: %w", err)
	}

	var controls []timeline.Control
	doc.FindMatcher(historySel).First().FindMatcher(historyBtnSel).Each(func(_ int, btn *goquery.Selection) {
		controls = append(controls, toControl(btn))
	})

	var green *timeline.Control
	if g := doc.FindMatcher(greenButtonSel).First(); g.Length() > 0 {
		c := toControl(g)
		green = &c
	}
	return controls, green, nil
}

// LogLink returns the absolute URL of the first build-log link on the page.
func (x *Extractor) LogLink(rawHTML string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", false
	}

	var link string
	doc.FindMatcher(anchorSel).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if !strings.HasPrefix(href, "/log-") || !strings.HasSuffix(href, ".txt") {
			return true
		}
		resolved, err := x.artifactBase.Parse(href)
		if err != nil {
			return true
		}
		link = resolved.String()
		return false
	})
	return link, link != ""
}

func toControl(s *goquery.Selection) timeline.Control {
	markup, _ := goquery.OuterHtml(s)
	return timeline.Control{
		Label:  strings.TrimSpace(s.Text()),
		Markup: markup,
	}
}

// lastOwnText returns the last non-blank text node that is a direct child of n.
func lastOwnText(n *html.Node) string {
	for c := n.LastChild; c != nil; c = c.PrevSibling {
		if c.Type != html.TextNode {
			continue
		}
		if t := strings.TrimSpace(c.Data); t != "" {
			return t
		}
	}
	return ""
}
