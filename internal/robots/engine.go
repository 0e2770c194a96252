package robots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/webchecks/internal/cache"
	"github.com/nao1215/webchecks/internal/transport"
	"github.com/nao1215/webchecks/internal/urlmodel"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// fileName is the cache name robots files are stored under.
const fileName = "robots.txt"

// DefaultRetryInterval is how long a failed robots fetch is remembered before
// the engine tries the host again.
const DefaultRetryInterval = time.Hour

// ErrInvalidFallback is returned by ParseFallback for unknown values.
var ErrInvalidFallback = errors.New("invalid unguided access policy")

// Fallback is the verdict applied when a host's robots file cannot be fetched.
type Fallback string

const (
	// FallbackFree allows access to hosts without a robots file.
	FallbackFree Fallback = "free"
	// FallbackStrict denies access to hosts without a robots file.
	FallbackStrict Fallback = "strict"
)

// ParseFallback validates s as a Fallback.
func ParseFallback(s string) (Fallback, error) {
	switch f := Fallback(s); f {
	case FallbackFree, FallbackStrict:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidFallback, s, FallbackFree, FallbackStrict)
	}
}

// Store is the part of the TTL cache the engine needs.
type Store interface {
	GetHash(ctx context.Context, domain, name string) (string, error)
	Load(ctx context.Context, domain, name string) (*cache.Entry, error)
	Store(ctx context.Context, domain string, content []byte, name string, ttl time.Duration) (string, error)
}

// Fetcher issues an immediate, admission-checked request. The gateway's
// express path implements it.
type Fetcher interface {
	ExpressRequest(ctx context.Context, link string) transport.Response
}

// Engine decides whether paths may be crawled according to each host's
// robots file, keeping files in the TTL cache for a day.
type Engine struct {
	store         Store
	agent         string
	fallback      Fallback
	retryInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger

	mu       sync.Mutex
	hashes   map[string]string
	rules    map[string][]Rule
	delays   map[string]time.Duration
	failedAt map[string]time.Time

	group singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithAgent sets the agent name matched against User-agent lines.
func WithAgent(agent string) Option {
	return func(e *Engine) { e.agent = agent }
}

// WithFallback sets the verdict for hosts whose robots file is unavailable.
func WithFallback(f Fallback) Option {
	return func(e *Engine) { e.fallback = f }
}

// WithRetryInterval sets how long a failed fetch suppresses refetching.
func WithRetryInterval(d time.Duration) Option {
	return func(e *Engine) { e.retryInterval = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine returns an engine persisting robots files in store. The default
// agent is "webchecks" and the default fallback is FallbackStrict.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		agent:         "webchecks",
		fallback:      FallbackStrict,
		retryInterval: DefaultRetryInterval,
		now:           time.Now,
		logger:        slog.Default(),
		hashes:        make(map[string]string),
		rules:         make(map[string][]Rule),
		delays:        make(map[string]time.Duration),
		failedAt:      make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Allowed reports whether addr may be fetched. Missing robots files are
// requested through f.
func (e *Engine) Allowed(ctx context.Context, addr urlmodel.Address, f Fetcher) bool {
	path := addr.PathWithoutArgs()
	if path == "/robots.txt" {
		return true
	}
	if path == "" {
		path = "/"
	}

	domain := addr.FQDN()
	v, _, _ := e.group.Do(domain, func() (any, error) {
		rules, ok := e.resolve(ctx, domain, f)
		return resolved{rules: rules, ok: ok}, nil
	})
	r, _ := v.(resolved)
	if !r.ok {
		return e.fallback == FallbackFree
	}
	return Check(r.rules, path)
}

type resolved struct {
	rules []Rule
	ok    bool
}

// resolve returns the current rule set for domain, reusing compiled rules
// while the cached file is unchanged.
func (e *Engine) resolve(ctx context.Context, domain string, f Fetcher) ([]Rule, bool) {
	cached, err := e.store.GetHash(ctx, domain, fileName)
	if err != nil {
		e.logger.Warn("robots cache lookup failed", "domain", domain, "error", err)
		cached = ""
	}

	e.mu.Lock()
	last := e.hashes[domain]
	rules := e.rules[domain]
	failedAt, failed := e.failedAt[domain]
	e.mu.Unlock()

	if cached != "" && cached == last {
		return rules, true
	}
	if last == "" && cached != "" {
		entry, err := e.store.Load(ctx, domain, fileName)
		if err == nil && entry != nil {
			e.logger.Info("loaded cached robots.txt", "domain", domain)
			return e.remember(domain, entry.Content, entry.Hash), true
		}
	}
	if failed && e.now().Sub(failedAt) < e.retryInterval {
		return nil, false
	}

	resp := f.ExpressRequest(ctx, urlmodel.MergeURL(domain, fileName))
	if resp.Empty() {
		e.logger.Error("failed to fetch robots.txt, applying unguided access policy",
			"domain", domain, "policy", string(e.fallback))
		e.mu.Lock()
		e.hashes[domain] = ""
		delete(e.rules, domain)
		e.failedAt[domain] = e.now()
		e.mu.Unlock()
		return nil, false
	}

	hash, err := e.store.Store(ctx, domain, resp.Content, fileName, cache.DurationDay)
	if err != nil {
		e.logger.Warn("failed to cache robots.txt", "domain", domain, "error", err)
		hash = cache.Hash(resp.Content)
	}
	return e.remember(domain, resp.Content, hash), true
}

func (e *Engine) remember(domain string, content []byte, hash string) []Rule {
	rules := Parse(string(content), e.agent)

	var delay time.Duration
	if data, err := robotstxt.FromBytes(content); err == nil {
		if group := data.FindGroup(e.agent); group != nil {
			delay = group.CrawlDelay
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.hashes[domain] = hash
	e.rules[domain] = rules
	delete(e.failedAt, domain)
	if delay > 0 {
		e.delays[domain] = delay
	} else {
		delete(e.delays, domain)
	}
	return rules
}

// CrawlDelay returns the Crawl-delay the host's robots file asks of this
// agent, or zero.
func (e *Engine) CrawlDelay(fqdn string) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.delays[fqdn]
}

// rulesFor returns the compiled rules last seen for fqdn.
func (e *Engine) rulesFor(fqdn string) []Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Rule(nil), e.rules[fqdn]...)
}
