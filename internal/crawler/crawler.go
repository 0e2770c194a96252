package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/webchecks/internal/profile"
	"github.com/nao1215/webchecks/internal/transport"
	"github.com/nao1215/webchecks/internal/urlmodel"
)

// DefaultInterval is the pause between two rounds of the run loop.
const DefaultInterval = 100 * time.Millisecond

// ErrSeedRejected is returned by Run when the gateway refuses a seed.
var ErrSeedRejected = errors.New("seed rejected")

// Frontier is the part of the gateway the run loop drives.
type Frontier interface {
	AddToQueue(ctx context.Context, link string) bool
	ProcessQueue(ctx context.Context) []transport.Response
	Done() bool
	Pending() (links, hosts int)
}

// Profiles hands out the profile owning a host.
type Profiles interface {
	Fetch(fqdn string) *profile.Profile
}

// Page is a consumed response as seen by page observers.
type Page struct {
	URL     string
	FQDN    string
	Name    string
	Header  http.Header
	Content []byte
	HTML    bool
	Title   string
	Links   []string
}

// PageObserver is called once for every consumed response.
type PageObserver func(ctx context.Context, page Page)

// Crawler drives the gateway until the queue drains or time runs out.
type Crawler struct {
	frontier       Frontier
	profiles       Profiles
	crawl          bool
	interval       time.Duration
	now            func() time.Time
	logger         *slog.Logger
	observers      []PageObserver
	ignorePatterns []string
	followPatterns []string

	mu    sync.Mutex
	stats Stats
}

// Stats contains run statistics.
type Stats struct {
	// Responses is the number of responses consumed.
	Responses int

	// Empty is the number of responses that carried no content.
	Empty int

	// Queued is the number of discovered links the gateway accepted.
	Queued int

	// Rounds is the number of run loop iterations.
	Rounds int
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithCrawling toggles following links found on fetched pages. When off only
// the seeds are fetched.
func WithCrawling(enabled bool) Option {
	return func(c *Crawler) { c.crawl = enabled }
}

// WithInterval sets the pause between rounds.
func WithInterval(d time.Duration) Option {
	return func(c *Crawler) { c.interval = d }
}

// WithClock overrides the clock used for the deadline.
func WithClock(now func() time.Time) Option {
	return func(c *Crawler) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Crawler) { c.logger = l }
}

// WithPageObserver registers fn to see every consumed response.
func WithPageObserver(fn PageObserver) Option {
	return func(c *Crawler) { c.observers = append(c.observers, fn) }
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) Option {
	return func(c *Crawler) { c.ignorePatterns = patterns }
}

// WithFollowPatterns restricts crawling to URL paths matching at least one
// glob pattern. Empty means all paths are followed.
func WithFollowPatterns(patterns []string) Option {
	return func(c *Crawler) { c.followPatterns = patterns }
}

// New creates a Crawler.
func New(frontier Frontier, profiles Profiles, opts ...Option) *Crawler {
	c := &Crawler{
		frontier: frontier,
		profiles: profiles,
		crawl:    true,
		interval: DefaultInterval,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run queues every seed and then alternates between draining the gateway
// and sleeping until the queue is empty, the deadline passes or ctx is
// cancelled. A zero deadline means no time limit. A seed the gateway
// refuses aborts the run before anything is fetched.
func (c *Crawler) Run(ctx context.Context, seeds []string, deadline time.Time) error {
	for _, seed := range seeds {
		if !c.frontier.AddToQueue(ctx, seed) {
			return fmt.Errorf("%w: %s", ErrSeedRejected, seed)
		}
	}
	c.logger.Info("crawl started", "seeds", len(seeds))

	for {
		for _, resp := range c.frontier.ProcessQueue(ctx) {
			c.handle(ctx, resp)
		}

		c.mu.Lock()
		c.stats.Rounds++
		c.mu.Unlock()

		if c.frontier.Done() {
			c.logger.Info("crawl finished, queue is empty")
			return nil
		}
		if !deadline.IsZero() && c.now().After(deadline) {
			c.logger.Info("crawl stopped, run duration exceeded")
			return nil
		}
		links, hosts := c.frontier.Pending()
		c.logger.Debug("waiting for queued links", "links", links, "hosts", hosts)

		t := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Stats returns the statistics collected so far.
func (c *Crawler) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Crawler) handle(ctx context.Context, resp transport.Response) {
	c.mu.Lock()
	c.stats.Responses++
	if resp.Empty() {
		c.stats.Empty++
	}
	c.mu.Unlock()

	fqdn, err := urlmodel.ExtractFQDN(resp.URL)
	if err != nil {
		c.logger.Warn("response for a link without a host", "url", resp.URL)
		return
	}
	owner := c.profiles.Fetch(fqdn)

	page := Page{URL: resp.URL, FQDN: fqdn, Header: resp.Header, Content: resp.Content}
	page.Name, err = owner.Consume(ctx, resp.URL, resp.Header, resp.Content)
	if err != nil {
		c.logger.Warn("failed to store content", "url", resp.URL, "error", err)
	}

	if !resp.Empty() && IsHTML(resp.Header, resp.Content) {
		page.HTML = true
		if c.crawl {
			c.follow(ctx, &page)
		}
	}

	for _, fn := range c.observers {
		fn(ctx, page)
	}
}

// follow extracts the links of an HTML page, registers them with the profile
// of the host each one points to and queues the new ones.
func (c *Crawler) follow(ctx context.Context, page *Page) {
	res, err := parsePage(page.URL, page.Header, page.Content)
	if err != nil {
		c.logger.Debug("failed to parse page", "url", page.URL, "error", err)
		return
	}
	page.Title = res.Title

	byHost := make(map[string][]string)
	var order []string
	for _, link := range res.Links {
		if !c.shouldCrawl(link) {
			continue
		}
		fqdn, err := urlmodel.ExtractFQDN(link)
		if err != nil {
			c.logger.Debug("skipping link that is not a url", "link", link)
			continue
		}
		if _, ok := byHost[fqdn]; !ok {
			order = append(order, fqdn)
		}
		byHost[fqdn] = append(byHost[fqdn], link)
	}

	for _, fqdn := range order {
		for _, link := range c.profiles.Fetch(fqdn).Register(byHost[fqdn]) {
			page.Links = append(page.Links, link)
			if c.frontier.AddToQueue(ctx, link) {
				c.mu.Lock()
				c.stats.Queued++
				c.mu.Unlock()
			}
		}
	}
}

// shouldCrawl checks if a link should be crawled based on ignore/follow patterns.
//
// Logic:
//  1. If the path matches any ignore pattern, skip it
//  2. If follow patterns are set and the path matches none, skip it
//  3. Otherwise, crawl it
func (c *Crawler) shouldCrawl(link string) bool {
	if len(c.ignorePatterns) == 0 && len(c.followPatterns) == 0 {
		return true
	}

	path, err := urlmodel.ExtractLocalPathWithoutArgs(link)
	if err != nil {
		return false
	}
	if path == "" {
		path = "/"
	}

	for _, pattern := range c.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}
	if len(c.followPatterns) == 0 {
		return true
	}
	for _, pattern := range c.followPatterns {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// matchPattern checks if a path matches a glob pattern.
//   - "/admin/*" matches "/admin" and everything below it
//   - "*.pdf" matches any path ending in ".pdf"
//   - other patterns use filepath.Match, against the whole path and, for
//     patterns without a slash, against the last segment
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}
	return false
}
