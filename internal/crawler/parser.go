package crawler

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/idna"

	"github.com/nao1215/webchecks/internal/urlmodel"
)

// HTML element and attribute names used during extraction.
const (
	htmlElementA    = "a"
	htmlElementArea = "area"
	htmlAttrHref    = "href"
)

// skippedSchemes are link schemes that never lead to a crawlable page.
var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// Parser extracts followable links from one HTML page.
type Parser struct {
	pageURL string
	fqdn    string
}

// ParseResult contains the data extracted from a page.
type ParseResult struct {
	// Title is the page title.
	Title string

	// Links are the hyperlinks on the page, rewritten so that each one is an
	// absolute link. They keep document order and contain no duplicates.
	Links []string
}

// NewParser creates a parser for the page fetched from pageURL.
func NewParser(pageURL string) (*Parser, error) {
	fqdn, err := urlmodel.ExtractFQDN(pageURL)
	if err != nil {
		return nil, fmt.Errorf("page url: %w", err)
	}
	return &Parser{pageURL: pageURL, fqdn: fqdn}, nil
}

// Parse reads an HTML document. contentType is the Content-Type header of
// the response and selects the character set; "" lets the document decide.
func (p *Parser) Parse(r io.Reader, contentType string) (*ParseResult, error) {
	utf8Reader, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}
	doc, err := html.Parse(utf8Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	result := &ParseResult{}
	seen := make(map[string]struct{})

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					result.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case htmlElementA, htmlElementArea:
				if link, ok := p.resolve(getAttr(n, htmlAttrHref)); ok {
					if _, dup := seen[link]; !dup {
						seen[link] = struct{}{}
						result.Links = append(result.Links, link)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// resolve turns an href into a link the gateway can admit. Protocol-relative
// links lose their "//", local paths are joined to the page host and
// in-page references are dropped.
func (p *Parser) resolve(href string) (string, bool) {
	link := strings.TrimSpace(href)
	if link == "" {
		return "", false
	}
	lower := strings.ToLower(link)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	switch {
	case urlmodel.IsReferential(link):
		return "", false
	case strings.HasPrefix(link, "//"):
		return asciiHost(strings.TrimPrefix(link, "//")), true
	case urlmodel.IsLocal(link):
		return urlmodel.MergeURL(p.fqdn, link), true
	default:
		return asciiHost(link), true
	}
}

// asciiHost converts an internationalised host name to its punycode form and
// lower-cases it. The link is returned unchanged when the host is not a
// valid domain name.
func asciiHost(link string) string {
	prefix := ""
	rest := link
	if i := strings.Index(link, "://"); i >= 0 {
		prefix, rest = link[:i+3], link[i+3:]
	}
	end := strings.IndexAny(rest, "/?#")
	if end < 0 {
		end = len(rest)
	}
	host, tail := rest[:end], rest[end:]

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return link
	}
	return strings.ToLower(prefix) + ascii + tail
}

// IsHTML reports whether a response is an HTML page. The Content-Type header
// decides when present; otherwise the content is sniffed.
func IsHTML(header http.Header, content []byte) bool {
	if header != nil {
		if ct := header.Get("Content-Type"); ct != "" {
			mt, _, err := mime.ParseMediaType(ct)
			return err == nil && (mt == "text/html" || mt == "application/xhtml+xml")
		}
	}
	return mimetype.Detect(content).Is("text/html")
}

// parsePage parses an HTML page fetched from pageURL.
func parsePage(pageURL string, header http.Header, content []byte) (*ParseResult, error) {
	p, err := NewParser(pageURL)
	if err != nil {
		return nil, err
	}
	ct := ""
	if header != nil {
		ct = header.Get("Content-Type")
	}
	return p.Parse(bytes.NewReader(content), ct)
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
