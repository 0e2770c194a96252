package gateway

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/webchecks/internal/delayqueue"
	"github.com/nao1215/webchecks/internal/robots"
	"github.com/nao1215/webchecks/internal/security"
	"github.com/nao1215/webchecks/internal/transport"
	"github.com/nao1215/webchecks/internal/urlmodel"
)

// Pacer supplies the politeness delay for a host.
type Pacer interface {
	WaitTime(fqdn string) time.Duration
}

// RobotsChecker decides whether an address is allowed by its host's robots
// file, fetching the file through f when needed.
type RobotsChecker interface {
	Allowed(ctx context.Context, addr urlmodel.Address, f robots.Fetcher) bool
}

// Gateway is the only path from the crawler to the network. Every link is
// validated, rewritten to https where required, checked against the security
// policy and robots rules, and then paced per host through a delay queue.
// Dispatch is serialized: at most one request is in flight at a time.
type Gateway struct {
	transport transport.Transport
	pacer     Pacer
	robots    RobotsChecker
	policy    atomic.Pointer[security.Policy]
	now       func() time.Time
	logger    *slog.Logger
	observers []func(transport.URLPair)

	mu    sync.Mutex
	queue *delayqueue.Queue[transport.URLPair]

	dispatchMu sync.Mutex
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRobots enables robots checks. Without it every path is allowed.
func WithRobots(r RobotsChecker) Option {
	return func(g *Gateway) { g.robots = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithDispatchObserver registers fn to be called before every dispatch,
// express requests included.
func WithDispatchObserver(fn func(transport.URLPair)) Option {
	return func(g *Gateway) { g.observers = append(g.observers, fn) }
}

// New returns a gateway dispatching through t and pacing hosts with pacer.
func New(policy *security.Policy, t transport.Transport, pacer Pacer, opts ...Option) *Gateway {
	g := &Gateway{
		transport: t,
		pacer:     pacer,
		now:       time.Now,
		logger:    slog.Default(),
		queue:     delayqueue.New[transport.URLPair](),
	}
	g.policy.Store(policy)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetPolicy replaces the security policy for all later admissions.
func (g *Gateway) SetPolicy(p *security.Policy) {
	g.policy.Store(p)
}

// Policy returns the current security policy.
func (g *Gateway) Policy() *security.Policy {
	return g.policy.Load()
}

// Admit runs every admission step on link without queueing it.
func (g *Gateway) Admit(ctx context.Context, link string) Decision {
	d := Decision{Link: link}

	addr, err := urlmodel.Parse(link)
	if err != nil {
		g.logger.Debug("rejecting link that is not a url", "link", link)
		d.Stage = StageInvalid
		return d
	}

	policy := g.policy.Load()
	addr = ensureHTTPS(addr, policy.EnforceHTTPS())
	d.Address = addr
	d.Normalized = addr.String()

	verdict := policy.Evaluate(addr)
	d.Step = verdict.Step
	if !verdict.Allowed {
		g.logger.Debug("security policy disallows link", "link", d.Normalized, "step", string(verdict.Step))
		d.Stage = StageSecurity
		return d
	}

	if g.robots != nil && !g.robots.Allowed(ctx, addr, g) {
		g.logger.Info("robots.txt disallows link", "link", d.Normalized)
		d.Stage = StageRobots
		return d
	}

	d.Stage = StageAdmitted
	return d
}

// ensureHTTPS rewrites a missing or empty protocol to https, and any other
// protocol too when enforce is set.
func ensureHTTPS(a urlmodel.Address, enforce bool) urlmodel.Address {
	p, ok := a.Protocol()
	if !ok || p == "" || (p != "https" && enforce) {
		return a.WithProtocol("https")
	}
	return a
}

// AddToQueue admits link and schedules it on its host's lane. It reports
// whether the link was accepted; malformed and disallowed links both yield
// false.
func (g *Gateway) AddToQueue(ctx context.Context, link string) bool {
	d := g.Admit(ctx, link)
	if !d.Allowed() {
		return false
	}

	fqdn := d.Address.FQDN()
	delay := g.pacer.WaitTime(fqdn)

	g.mu.Lock()
	g.queue.Enqueue(fqdn, transport.URLPair{Original: link, URL: d.Normalized}, delay, g.now())
	g.mu.Unlock()

	g.logger.Debug("added to queue", "link", d.Normalized, "delay", delay)
	return true
}

// ProcessQueue dispatches every entry whose time has come, one at a time,
// and returns all responses. It does not wait for entries that are not yet
// ready and stops early when ctx is cancelled.
func (g *Gateway) ProcessQueue(ctx context.Context) []transport.Response {
	var out []transport.Response
	for ctx.Err() == nil {
		g.mu.Lock()
		pair, ok := g.queue.Dequeue(g.now())
		g.mu.Unlock()
		if !ok {
			break
		}
		out = append(out, g.dispatch(ctx, pair)...)
	}
	return out
}

// Done reports whether nothing is waiting in the queue.
func (g *Gateway) Done() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queue.IsEmpty()
}

// Pending returns the number of queued links and of hosts they wait on.
func (g *Gateway) Pending() (links, hosts int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queue.Len(), g.queue.Lanes()
}

// ExpressRequest admits link and dispatches it immediately, bypassing the
// queue. Because the transport may report several responses, the one for
// the requested link is picked; if none can be identified an empty response
// is returned.
func (g *Gateway) ExpressRequest(ctx context.Context, link string) transport.Response {
	empty := transport.Response{URL: link}

	d := g.Admit(ctx, link)
	if !d.Allowed() {
		g.logger.Debug("link not permitted as express request", "link", link)
		return empty
	}

	responses := g.dispatch(ctx, transport.URLPair{Original: link, URL: d.Normalized})
	for _, r := range responses {
		if r.URL == link || r.URL == d.Normalized {
			return r
		}
	}
	if len(responses) == 1 {
		return responses[0]
	}
	for _, r := range responses {
		if strings.Contains(r.URL, "robots.txt") {
			return r
		}
	}
	g.logger.Error("express request failed, probably due to an opaque redirect", "link", link, "responses", len(responses))
	return empty
}

func (g *Gateway) dispatch(ctx context.Context, pair transport.URLPair) []transport.Response {
	g.dispatchMu.Lock()
	defer g.dispatchMu.Unlock()

	for _, fn := range g.observers {
		fn(pair)
	}
	return g.transport.Dispatch(ctx, pair)
}
