package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/nao1215/webchecks/internal/tor"
	"golang.org/x/net/publicsuffix"
)

const (
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 20 * time.Second

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize int64 = 10 * 1024 * 1024

	maxRedirects = 10
)

// HTTP fetches resources with net/http and never runs scripts.
type HTTP struct {
	client      *http.Client
	headers     HeaderSource
	allow       func(*url.URL) bool
	maxBodySize int64
	logger      *slog.Logger
}

// HTTPOption configures an HTTP transport.
type HTTPOption func(*httpOptions)

type httpOptions struct {
	timeout     time.Duration
	proxy       *tor.Client
	headers     HeaderSource
	allow       func(*url.URL) bool
	maxBodySize int64
	logger      *slog.Logger
	base        http.RoundTripper
}

// WithTimeout sets the request timeout. Zero disables it.
func WithTimeout(d time.Duration) HTTPOption {
	return func(o *httpOptions) { o.timeout = d }
}

// WithProxy routes every request through the SOCKS5 proxy of c.
func WithProxy(c *tor.Client) HTTPOption {
	return func(o *httpOptions) { o.proxy = c }
}

// WithHeaders sets the source of per-host default headers.
func WithHeaders(h HeaderSource) HTTPOption {
	return func(o *httpOptions) { o.headers = h }
}

// WithRedirectCheck makes the transport stop at any redirect whose target
// allow rejects. The last response before the refused hop is returned.
func WithRedirectCheck(allow func(*url.URL) bool) HTTPOption {
	return func(o *httpOptions) { o.allow = allow }
}

// WithMaxBodySize caps the number of body bytes read per response.
func WithMaxBodySize(n int64) HTTPOption {
	return func(o *httpOptions) { o.maxBodySize = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) HTTPOption {
	return func(o *httpOptions) { o.logger = l }
}

// WithRoundTripper replaces the underlying round tripper. WithProxy is
// ignored when it is set.
func WithRoundTripper(rt http.RoundTripper) HTTPOption {
	return func(o *httpOptions) { o.base = rt }
}

// NewHTTP builds the plain transport.
func NewHTTP(opts ...HTTPOption) (*HTTP, error) {
	o := httpOptions{
		timeout:     DefaultTimeout,
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	rt := o.base
	if rt == nil && o.proxy != nil {
		rt = o.proxy.Transport()
	}

	h := &HTTP{
		headers:     o.headers,
		allow:       o.allow,
		maxBodySize: o.maxBodySize,
		logger:      o.logger,
	}
	h.client = &http.Client{
		Transport:     rt,
		Timeout:       o.timeout,
		Jar:           jar,
		CheckRedirect: h.checkRedirect,
	}
	return h, nil
}

func (h *HTTP) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return http.ErrUseLastResponse
	}
	if h.allow != nil && !h.allow(req.URL) {
		h.logger.Info("refusing redirect", "from", via[len(via)-1].URL.String(), "to", req.URL.String())
		return http.ErrUseLastResponse
	}
	return nil
}

// Dispatch fetches pair.URL and returns exactly one Response.
func (h *HTTP) Dispatch(ctx context.Context, pair URLPair) []Response {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pair.URL, nil)
	if err != nil {
		h.logger.Warn("cannot build request", "url", pair.URL, "error", err)
		return failed(pair)
	}
	if h.headers != nil {
		for key, values := range h.headers.Headers(req.URL.Hostname()) {
			req.Header[key] = append([]string(nil), values...)
		}
	}

	h.logger.Debug("requesting", "url", pair.URL)
	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("connection problem", "url", pair.URL, "error", err)
		return failed(pair)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		h.logger.Info("request error", "url", pair.URL, "status", resp.StatusCode)
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, h.maxBodySize))
		return failed(pair)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBodySize))
	if err != nil {
		h.logger.Warn("failed to read body", "url", pair.URL, "error", err)
		return failed(pair)
	}
	return []Response{{Content: body, Header: resp.Header.Clone(), URL: pair.Original}}
}
