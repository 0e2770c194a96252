package transport

import (
	"context"
	"net/http"
)

// URLPair is a link as the caller submitted it together with the link
// actually requested after normalisation.
type URLPair struct {
	Original string
	URL      string
}

// Response is one fetched resource. Failures are represented by a Response
// with empty Content whose URL is the originally submitted link.
type Response struct {
	Content []byte
	Header  http.Header
	URL     string
}

// Empty reports whether the response carries no content.
func (r Response) Empty() bool {
	return len(r.Content) == 0
}

// ContentType returns the Content-Type header, or "".
func (r Response) ContentType() string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get("Content-Type")
}

// failed is the response used for any fetch that produced nothing.
func failed(pair URLPair) []Response {
	return []Response{{Header: http.Header{}, URL: pair.Original}}
}

// Transport fetches a link. Dispatch never returns an error; connection
// failures and non-success statuses become an empty Response. It may return
// more than one Response.
type Transport interface {
	Dispatch(ctx context.Context, pair URLPair) []Response
}

// HeaderSource supplies the default request headers for a host.
type HeaderSource interface {
	Headers(fqdn string) http.Header
}

// JSTrust decides whether scripts served by a host may run.
type JSTrust interface {
	TrustsJavaScript(fqdn string) bool
}
