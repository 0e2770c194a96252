package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Browser renders pages in a headless Chromium driven by go-rod, so scripts
// on trusted hosts run before the document is captured. Scripts from hosts
// the JSTrust rejects are blocked at the network layer.
type Browser struct {
	browser *rod.Browser
	launch  *launcher.Launcher
	trust   JSTrust
	timeout time.Duration
	logger  *slog.Logger

	// rod pages share one browser; navigations are serialized.
	mu sync.Mutex
}

// BrowserOptions configures NewBrowser.
type BrowserOptions struct {
	// Bin is the browser executable. Empty lets rod find or download one.
	Bin string
	// Proxy is a proxy server URL such as socks5://127.0.0.1:9050.
	Proxy string
	// Timeout bounds one page load.
	Timeout time.Duration
	// Trust decides which hosts may run scripts. Nil trusts none.
	Trust  JSTrust
	Logger *slog.Logger
}

// NewBrowser launches the browser and connects to it.
func NewBrowser(opts BrowserOptions) (*Browser, error) {
	l := launcher.New().Headless(true)
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	if opts.Proxy != "" {
		l = l.Proxy(opts.Proxy)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Browser{
		browser: b,
		launch:  l,
		trust:   opts.Trust,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Close shuts the browser down.
func (b *Browser) Close() error {
	err := b.browser.Close()
	b.launch.Kill()
	return err
}

func (b *Browser) trusts(host string) bool {
	return b.trust != nil && b.trust.TrustsJavaScript(host)
}

// Dispatch loads pair.URL and returns the rendered document under the URL the
// browser finally landed on.
func (b *Browser) Dispatch(ctx context.Context, pair URLPair) []Response {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		b.logger.Warn("cannot open page", "url", pair.URL, "error", err)
		return failed(pair)
	}
	defer func() { _ = page.Close() }()

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if h.Request.Type() == proto.NetworkResourceTypeScript && !b.trusts(h.Request.URL().Hostname()) {
			b.logger.Debug("blocking script", "url", h.Request.URL().String())
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	defer func() { _ = router.Stop() }()

	p := page.Context(ctx)
	if err := p.Navigate(pair.URL); err != nil {
		b.logger.Warn("connection problem", "url", pair.URL, "error", err)
		return failed(pair)
	}
	if err := p.WaitLoad(); err != nil {
		b.logger.Warn("page did not finish loading", "url", pair.URL, "error", err)
	}

	html, err := p.HTML()
	if err != nil || html == "" {
		b.logger.Warn("no document", "url", pair.URL, "error", err)
		return failed(pair)
	}

	final := pair.Original
	if info, err := p.Info(); err == nil && info.URL != "" && info.URL != pair.URL {
		final = info.URL
	}
	return []Response{{
		Content: []byte(html),
		Header:  http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		URL:     final,
	}}
}
