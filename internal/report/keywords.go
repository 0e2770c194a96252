package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/webchecks/internal/crawler"
)

// ErrInvalidKeyword is returned when a keyword is not a valid regular expression.
var ErrInvalidKeyword = errors.New("invalid keyword")

// KeywordFinder searches the visible text of crawled HTML pages for keywords.
// Keywords are case-insensitive regular expressions. Page text is NFKC
// normalised first, so full-width and ligature forms match their plain
// spelling.
type KeywordFinder struct {
	keywords []string
	patterns []*regexp.Regexp
	logger   *slog.Logger

	mu   sync.Mutex
	hits map[string][]string
}

// NewKeywordFinder compiles keywords.
func NewKeywordFinder(keywords []string, logger *slog.Logger) (*KeywordFinder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f := &KeywordFinder{logger: logger, hits: make(map[string][]string)}
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + norm.NFKC.String(kw))
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidKeyword, kw, err)
		}
		f.keywords = append(f.keywords, kw)
		f.patterns = append(f.patterns, re)
	}
	return f, nil
}

// Keywords returns the configured keywords.
func (f *KeywordFinder) Keywords() []string {
	return append([]string(nil), f.keywords...)
}

// Observe is a crawler.PageObserver. Only non-empty HTML pages are searched.
func (f *KeywordFinder) Observe(_ context.Context, page crawler.Page) {
	if len(f.patterns) == 0 || !page.HTML || len(page.Content) == 0 {
		return
	}
	text, err := VisibleText(page.Content)
	if err != nil {
		f.logger.Debug("failed to extract page text", "url", page.URL, "error", err)
		return
	}

	location := page.URL
	if page.Name != "" {
		location = page.FQDN + "/" + page.Name
	}

	for i, re := range f.patterns {
		if !re.MatchString(text) {
			continue
		}
		kw := f.keywords[i]
		f.logger.Info("keyword found", "keyword", kw, "url", page.URL)
		f.mu.Lock()
		f.hits[kw] = append(f.hits[kw], location)
		f.mu.Unlock()
	}
}

// Hits returns the matches per keyword in keyword order. Keywords without
// a match are included with no locations.
func (f *KeywordFinder) Hits() []KeywordHit {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]KeywordHit, 0, len(f.keywords))
	for _, kw := range f.keywords {
		out = append(out, KeywordHit{Keyword: kw, Locations: append([]string(nil), f.hits[kw]...)})
	}
	return out
}

// VisibleText returns the NFKC-normalised text of an HTML document with
// script and style contents removed and whitespace collapsed.
func VisibleText(content []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "template", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return norm.NFKC.String(strings.Join(strings.Fields(b.String()), " ")), nil
}
