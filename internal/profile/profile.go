package profile

import (
	"context"
	"log/slog"
	"maps"
	"math/rand/v2"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/webchecks/internal/urlmodel"
)

// Archiver stores fetched content and the visited-link set of each host.
type Archiver interface {
	Save(ctx context.Context, fqdn, link string, header http.Header, content []byte) (string, error)
	LoadVisited(fqdn string) ([]string, error)
	SaveVisited(fqdn string, links []string) error
}

// Settings are the per-host knobs that can come from configuration.
type Settings struct {
	Pacing Pacing
	// Headers are added to, or with an empty value removed from, the defaults.
	Headers map[string]string
	// JavaScript marks the host as trusted to run scripts.
	JavaScript bool
}

// Profile holds everything webchecks knows about accessing one host: how
// often, with which headers, and which of its links were already seen.
type Profile struct {
	domain     string
	javascript bool
	archive    Archiver
	floor      func() time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	headers http.Header
	pacing  Pacing
	rng     *rand.Rand
	visited map[string]struct{}
	waiting map[string]struct{}
}

func newProfile(domain, userAgent string, s Settings, archive Archiver, seed uint64, logger *slog.Logger) *Profile {
	p := &Profile{
		domain:     domain,
		javascript: s.JavaScript,
		archive:    archive,
		logger:     logger,
		headers:    defaultHeaders(userAgent),
		pacing:     s.Pacing,
		rng:        rand.New(rand.NewPCG(seed, uint64(len(domain)))), //nolint:gosec // pacing jitter, not security
		visited:    make(map[string]struct{}),
		waiting:    make(map[string]struct{}),
	}
	for key, value := range s.Headers {
		p.SetHeader(key, value)
	}
	if archive != nil {
		links, err := archive.LoadVisited(domain)
		if err != nil {
			logger.Warn("failed to load visited links", "domain", domain, "error", err)
		}
		for _, l := range links {
			p.visited[l] = struct{}{}
		}
		if len(links) > 0 {
			logger.Info("loaded visited links", "domain", domain, "count", len(links))
		}
	}
	return p
}

func defaultHeaders(userAgent string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", userAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.5")
	h.Set("DNT", "1")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("Sec-Fetch-User", "?1")
	return h
}

// Domain returns the host the profile belongs to.
func (p *Profile) Domain() string { return p.domain }

// TrustsJavaScript reports whether scripts from this host may run.
func (p *Profile) TrustsJavaScript() bool { return p.javascript }

// Headers returns a copy of the request headers.
func (p *Profile) Headers() http.Header {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.headers.Clone()
}

// SetHeader sets a request header. An empty value removes it.
func (p *Profile) SetHeader(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if value == "" {
		p.headers.Del(key)
		return
	}
	p.headers.Set(key, value)
}

// Pacing returns the access pattern.
func (p *Profile) Pacing() Pacing {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pacing
}

// SetPacing replaces the access pattern after validating it.
func (p *Profile) SetPacing(pacing Pacing) error {
	if err := pacing.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pacing = pacing
	return nil
}

// WaitTime draws the delay before the next request to this host. It is
// never shorter than the host's robots Crawl-delay.
func (p *Profile) WaitTime() time.Duration {
	p.mu.Lock()
	wait := p.pacing.draw(p.rng)
	p.mu.Unlock()

	if p.floor != nil {
		wait = max(wait, p.floor())
	}
	return wait
}

// Register filters links down to the ones worth queueing and marks them as
// waiting. Links that differ only in query, fragment or one trailing
// character count as the same link.
func (p *Profile) Register(links []string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var kept []string
	seen := make(map[string]struct{}, len(links))
	for _, link := range links {
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}

		stripped := urlmodel.RemoveArgs(link)
		if slices.ContainsFunc(kept, func(k string) bool { return similar(urlmodel.RemoveArgs(k), stripped) }) {
			continue
		}
		if _, ok := p.waiting[link]; ok {
			continue
		}
		if _, ok := p.visited[link]; ok {
			continue
		}
		if p.redundant(stripped) {
			continue
		}
		kept = append(kept, link)
	}

	for _, link := range kept {
		p.waiting[link] = struct{}{}
	}
	return kept
}

// redundant must be called with mu held.
func (p *Profile) redundant(stripped string) bool {
	for w := range p.waiting {
		if similar(urlmodel.RemoveArgs(w), stripped) {
			return true
		}
	}
	for v := range p.visited {
		if similar(v, stripped) {
			return true
		}
	}
	return false
}

// similar reports whether s and t are equal or differ by one trailing character.
func similar(s, t string) bool {
	return s == t || dropLast(s) == t || s == dropLast(t)
}

func dropLast(s string) string {
	if s == "" {
		return s
	}
	return s[:len(s)-1]
}

// Consume processes a fetched resource: non-empty content is archived, and
// the link is moved from waiting to visited either way. It returns the
// archive name, or "" when nothing was stored.
func (p *Profile) Consume(ctx context.Context, link string, header http.Header, content []byte) (string, error) {
	defer p.deregister(link)

	if len(content) == 0 || p.archive == nil {
		return "", nil
	}
	return p.archive.Save(ctx, p.domain, link, header, content)
}

func (p *Profile) deregister(link string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visited[urlmodel.RemoveArgs(link)] = struct{}{}
	delete(p.waiting, link)
}

// Visited returns the visited links in sorted order.
func (p *Profile) Visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Sorted(maps.Keys(p.visited))
}

// waitingCount returns the number of registered links not yet consumed.
func (p *Profile) waitingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiting)
}
