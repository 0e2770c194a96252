package profile

import (
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/webchecks/internal/urlmodel"
)

// DefaultUserAgent is sent when no other User-Agent is configured.
const DefaultUserAgent = "webchecks"

// CrawlDelays reports the robots Crawl-delay of a host.
type CrawlDelays interface {
	CrawlDelay(fqdn string) time.Duration
}

// Registry owns one Profile per host. A lookup for a host without a profile
// falls back to the profile of its base domain and then creates one.
//
// Registry is the gateway's Pacer and the HTTP transport's HeaderSource.
type Registry struct {
	defaults  Settings
	overrides map[string]Settings
	userAgent string
	archive   Archiver
	delays    CrawlDelays
	seed      uint64
	logger    *slog.Logger

	mu       sync.Mutex
	profiles map[string]*Profile
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDomainSettings sets per-host overrides, keyed by fqdn or base domain.
func WithDomainSettings(s map[string]Settings) RegistryOption {
	return func(r *Registry) { r.overrides = maps.Clone(s) }
}

// WithUserAgent sets the User-Agent header of new profiles.
func WithUserAgent(ua string) RegistryOption {
	return func(r *Registry) { r.userAgent = ua }
}

// WithArchive sets where profiles store content and visited links.
func WithArchive(a Archiver) RegistryOption {
	return func(r *Registry) { r.archive = a }
}

// WithCrawlDelays makes every profile honour robots Crawl-delay values.
func WithCrawlDelays(d CrawlDelays) RegistryOption {
	return func(r *Registry) { r.delays = d }
}

// WithSeed fixes the seed of the wait-time generators.
func WithSeed(seed uint64) RegistryOption {
	return func(r *Registry) { r.seed = seed }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry validates defaults and every override.
func NewRegistry(defaults Settings, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		defaults:  defaults,
		userAgent: DefaultUserAgent,
		seed:      uint64(time.Now().UnixNano()), //nolint:gosec // seed only
		logger:    slog.Default(),
		profiles:  make(map[string]*Profile),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := defaults.Pacing.Validate(); err != nil {
		return nil, err
	}
	for domain, s := range r.overrides {
		if err := s.Pacing.Validate(); err != nil {
			return nil, fmt.Errorf("domain %s: %w", domain, err)
		}
	}
	return r, nil
}

// Fetch returns the profile for fqdn, the profile of its base domain, or a
// newly created one, in that order.
func (r *Registry) Fetch(fqdn string) *Profile {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.profiles[fqdn]; ok {
		return p
	}
	base, err := urlmodel.ExtractDomain(fqdn)
	if err == nil {
		if p, ok := r.profiles[base]; ok {
			return p
		}
	}

	settings, ok := r.overrides[fqdn]
	if !ok && base != "" {
		settings, ok = r.overrides[base]
	}
	if !ok {
		r.logger.Warn("domain has no profile, using a default profile", "domain", fqdn)
		settings = r.defaults
	}
	return r.create(fqdn, settings)
}

// define creates, or replaces, the profile of domain with explicit settings.
func (r *Registry) define(domain string, s Settings) (*Profile, error) {
	if err := s.Pacing.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.create(domain, s), nil
}

// create must be called with mu held.
func (r *Registry) create(domain string, s Settings) *Profile {
	h := fnv.New64a()
	_, _ = h.Write([]byte(domain))

	p := newProfile(domain, r.userAgent, s, r.archive, r.seed^h.Sum64(), r.logger)
	if r.delays != nil {
		delays := r.delays
		p.floor = func() time.Duration { return delays.CrawlDelay(domain) }
	}
	r.profiles[domain] = p
	return p
}

// WaitTime implements the gateway pacer.
func (r *Registry) WaitTime(fqdn string) time.Duration {
	return r.Fetch(fqdn).WaitTime()
}

// Headers implements the transport header source.
func (r *Registry) Headers(fqdn string) http.Header {
	return r.Fetch(fqdn).Headers()
}

// TrustsJavaScript reports whether the profile for fqdn trusts scripts.
func (r *Registry) TrustsJavaScript(fqdn string) bool {
	return r.Fetch(fqdn).TrustsJavaScript()
}

// Profiles returns every profile ordered by domain.
func (r *Registry) Profiles() []*Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Profile, 0, len(r.profiles))
	for _, domain := range slices.Sorted(maps.Keys(r.profiles)) {
		out = append(out, r.profiles[domain])
	}
	return out
}

// Flush persists the visited links of every profile.
func (r *Registry) Flush() error {
	if r.archive == nil {
		return nil
	}
	var errs []error
	for _, p := range r.Profiles() {
		if err := r.archive.SaveVisited(p.Domain(), p.Visited()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
