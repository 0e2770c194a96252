package transport

import (
	"context"
	"strings"

	"github.com/nao1215/webchecks/internal/urlmodel"
)

// Selector dispatches through a JavaScript-capable transport for hosts that
// are trusted to run scripts and through the plain transport otherwise.
// robots.txt always goes through the plain transport so its bytes are not
// wrapped in a rendered document.
type Selector struct {
	plain Transport
	js    Transport
	trust JSTrust
}

// NewSelector returns a Selector. A nil js or trust makes it plain only.
func NewSelector(plain, js Transport, trust JSTrust) *Selector {
	return &Selector{plain: plain, js: js, trust: trust}
}

// Dispatch implements Transport.
func (s *Selector) Dispatch(ctx context.Context, pair URLPair) []Response {
	if s.useJS(pair.URL) {
		return s.js.Dispatch(ctx, pair)
	}
	return s.plain.Dispatch(ctx, pair)
}

func (s *Selector) useJS(link string) bool {
	if s.js == nil || s.trust == nil {
		return false
	}
	addr, err := urlmodel.Parse(link)
	if err != nil {
		return false
	}
	if strings.HasSuffix(addr.PathWithoutArgs(), "/robots.txt") {
		return false
	}
	return s.trust.TrustsJavaScript(addr.FQDN())
}
