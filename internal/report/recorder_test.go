package report

import (
	"sync"
	"testing"

	"github.com/nao1215/webchecks/internal/transport"
)

func TestRecorder(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	links := []string{
		"https://example.com/",
		"https://example.com/a",
		"https://www.example.com/",
		"https://shop.example.co.uk/cart",
		"https://example.com/b",
	}

	var wg sync.WaitGroup
	for _, l := range links {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.ObserveDispatch(transport.URLPair{Original: l, URL: l})
		}()
	}
	wg.Wait()

	domains := r.Domains()
	want := []DomainCount{
		{FQDN: "example.com", Site: "example.com", Requests: 3},
		{FQDN: "shop.example.co.uk", Site: "example.co.uk", Requests: 1},
		{FQDN: "www.example.com", Site: "example.com", Requests: 1},
	}
	if len(domains) != len(want) {
		t.Fatalf("Domains() = %+v, want %+v", domains, want)
	}
	for i := range want {
		if domains[i] != want[i] {
			t.Errorf("Domains()[%d] = %+v, want %+v", i, domains[i], want[i])
		}
	}

	sites := r.Sites()
	if len(sites) != 2 || sites[0].Site != "example.com" || sites[0].Requests != 4 {
		t.Errorf("Sites() = %+v", sites)
	}
}
