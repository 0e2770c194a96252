package report

import (
	"cmp"
	"slices"
	"sync"

	"golang.org/x/net/publicsuffix"

	"github.com/nao1215/webchecks/internal/transport"
	"github.com/nao1215/webchecks/internal/urlmodel"
)

// Recorder counts dispatched links per host. Register ObserveDispatch with
// the gateway to feed it.
type Recorder struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{counts: make(map[string]int)}
}

// ObserveDispatch records one dispatched link.
func (r *Recorder) ObserveDispatch(pair transport.URLPair) {
	fqdn, err := urlmodel.ExtractFQDN(pair.URL)
	if err != nil {
		fqdn = pair.URL
	}
	r.mu.Lock()
	r.counts[fqdn]++
	r.mu.Unlock()
}

// Domains returns the per-host counts, busiest host first.
func (r *Recorder) Domains() []DomainCount {
	r.mu.Lock()
	out := make([]DomainCount, 0, len(r.counts))
	for fqdn, n := range r.counts {
		out = append(out, DomainCount{FQDN: fqdn, Site: site(fqdn), Requests: n})
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b DomainCount) int {
		return cmp.Or(cmp.Compare(b.Requests, a.Requests), cmp.Compare(a.FQDN, b.FQDN))
	})
	return out
}

// Sites sums the per-host counts by registrable domain, busiest first.
func (r *Recorder) Sites() []DomainCount {
	bySite := make(map[string]int)
	for _, d := range r.Domains() {
		bySite[d.Site] += d.Requests
	}
	out := make([]DomainCount, 0, len(bySite))
	for s, n := range bySite {
		out = append(out, DomainCount{FQDN: s, Site: s, Requests: n})
	}
	slices.SortFunc(out, func(a, b DomainCount) int {
		return cmp.Or(cmp.Compare(b.Requests, a.Requests), cmp.Compare(a.Site, b.Site))
	})
	return out
}

// site returns the registrable domain of fqdn, or fqdn itself when the
// public suffix list has no answer.
func site(fqdn string) string {
	s, err := publicsuffix.EffectiveTLDPlusOne(fqdn)
	if err != nil {
		return fqdn
	}
	return s
}
