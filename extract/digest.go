package extract

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/net/html"
)

// Digester renders a dashboard snapshot as Markdown for humans reading the
// pass output.
type Digester struct {
	conv   *converter.Converter
	domain string
}

// NewDigester creates a Digester resolving relative links against domain.
func NewDigester(domain string) *Digester {
	return &Digester{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		),
		domain: domain,
	}
}

// Digest converts rawHTML to Markdown, headed by the page title if any.
func (d *Digester) Digest(rawHTML string) (string, error) {
	md, err := d.conv.ConvertString(rawHTML, converter.WithDomain(d.domain))
	if err != nil {
		return "", err
	}
	if title := pageTitle(rawHTML); title != "" {
		return "# " + title + "\n\n" + md, nil
	}
	return md, nil
}

// pageTitle uses the Go HTML tokenizer to find the first <title> element.
func pageTitle(rawHTML string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(rawHTML))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				if tokenizer.Next() == html.TextToken {
					return strings.TrimSpace(string(tokenizer.Text()))
				}
				return ""
			}
		}
	}
}
