package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/nao1215/webchecks/internal/archive"
	"github.com/nao1215/webchecks/internal/cache"
	"github.com/nao1215/webchecks/internal/config"
	"github.com/nao1215/webchecks/internal/gateway"
	"github.com/nao1215/webchecks/internal/profile"
	"github.com/nao1215/webchecks/internal/report"
	"github.com/nao1215/webchecks/internal/robots"
	"github.com/nao1215/webchecks/internal/security"
	"github.com/nao1215/webchecks/internal/tor"
	"github.com/nao1215/webchecks/internal/transport"
	"github.com/nao1215/webchecks/internal/urlmodel"
)

// session wires the components of one run together and releases them in
// reverse order on Close.
type session struct {
	cfg    *config.Config
	logger *slog.Logger

	cache    *cache.Cache
	archive  *archive.Archive
	robots   *robots.Engine
	registry *profile.Registry
	gateway  *gateway.Gateway
	recorder *report.Recorder

	closers []func() error
}

// openSession builds every component cfg asks for. Content is archived only
// when archiveContent is set.
func openSession(ctx context.Context, cfg *config.Config, logger *slog.Logger, archiveContent bool) (*session, error) {
	s := &session{cfg: cfg, logger: logger, recorder: report.NewRecorder()}
	if err := s.open(ctx, archiveContent); err != nil {
		if cerr := s.Close(); cerr != nil {
			logger.Warn("failed to release partially opened session", "error", cerr)
		}
		return nil, err
	}
	return s, nil
}

func (s *session) open(ctx context.Context, archiveContent bool) error {
	cfg := s.cfg

	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	fallback, err := cfg.Fallback()
	if err != nil {
		return err
	}
	defaults, err := cfg.DefaultSettings()
	if err != nil {
		return err
	}
	domains, err := cfg.DomainSettings()
	if err != nil {
		return err
	}

	s.cache, err = cache.Open(cfg.CacheDir, cache.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	s.closers = append(s.closers, s.cache.Close)
	s.logger.Debug("cache opened", "dir", cfg.CacheDir)

	s.robots = robots.NewEngine(s.cache,
		robots.WithAgent(cfg.AgentName),
		robots.WithFallback(fallback),
		robots.WithLogger(s.logger),
	)

	registryOpts := []profile.RegistryOption{
		profile.WithDomainSettings(domains),
		profile.WithUserAgent(cfg.UserAgent),
		profile.WithCrawlDelays(s.robots),
		profile.WithLogger(s.logger),
	}
	if archiveContent {
		s.archive, err = archive.New(cfg.ResultDir,
			archive.WithCompression(cfg.Compress),
			archive.WithLinkStore(s.cache),
			archive.WithLogger(s.logger),
		)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		s.closers = append(s.closers, s.archive.Close)
		registryOpts = append(registryOpts, profile.WithArchive(s.archive))
		s.logger.Info("archiving content", "dir", cfg.ResultDir, "run", s.archive.RunID())
	}

	s.registry, err = profile.NewRegistry(defaults, registryOpts...)
	if err != nil {
		return err
	}

	proxy, err := s.proxy(ctx)
	if err != nil {
		return err
	}

	httpOpts := []transport.HTTPOption{
		transport.WithTimeout(cfg.Timeout),
		transport.WithHeaders(s.registry),
		transport.WithRedirectCheck(redirectCheck(func() *security.Policy { return s.gateway.Policy() })),
		transport.WithLogger(s.logger),
	}
	if cfg.MaxBodySize > 0 {
		httpOpts = append(httpOpts, transport.WithMaxBodySize(cfg.MaxBodySize))
	}
	if proxy != nil {
		httpOpts = append(httpOpts, transport.WithProxy(proxy))
	}
	plain, err := transport.NewHTTP(httpOpts...)
	if err != nil {
		return err
	}

	var t transport.Transport = plain
	if needsBrowser(defaults, domains) {
		opts := transport.BrowserOptions{
			Bin:     cfg.BrowserBin,
			Timeout: cfg.Timeout,
			Trust:   s.registry,
			Logger:  s.logger,
		}
		if proxy != nil {
			opts.Proxy = "socks5://" + proxy.ProxyAddress()
		}
		browser, err := transport.NewBrowser(opts)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, browser.Close)
		t = transport.NewSelector(plain, browser, s.registry)
		s.logger.Info("headless browser started for trusted domains")
	}

	s.gateway = gateway.New(policy, t, s.registry,
		gateway.WithRobots(s.robots),
		gateway.WithLogger(s.logger),
		gateway.WithDispatchObserver(s.recorder.ObserveDispatch),
	)
	return nil
}

// proxy returns the Tor client requests are routed through, or nil when
// requests go out directly.
func (s *session) proxy(ctx context.Context) (*tor.Client, error) {
	cfg := s.cfg

	if cfg.EmbeddedTor {
		s.logger.Info("starting embedded Tor daemon, this may take a few minutes")
		daemon := tor.NewDaemon(tor.WithStartupTimeout(cfg.TorStartupTimeout))
		if err := daemon.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		s.closers = append(s.closers, daemon.Stop)
		s.logger.Info("embedded Tor daemon started", "socksAddr", daemon.SocksAddr())
		return daemon.Client()
	}

	if !cfg.UseTor {
		return nil, nil
	}

	client, err := tor.NewClient(cfg.TorProxyAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
		return nil, fmt.Errorf("tor proxy check failed: %w (make sure Tor is running at %s)",
			status.Err(), cfg.TorProxyAddress)
	}
	s.logger.Info("Tor proxy connection verified", "address", cfg.TorProxyAddress)
	return client, nil
}

// Close releases every opened component, newest first.
func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// redirectCheck admits a redirect target only if the policy in force when
// the redirect happens admits it.
func redirectCheck(policy func() *security.Policy) func(*url.URL) bool {
	return func(u *url.URL) bool {
		addr, err := urlmodel.Parse(u.String())
		if err != nil {
			return false
		}
		return policy().IsAllowed(addr)
	}
}

// needsBrowser reports whether any host may run scripts.
func needsBrowser(defaults profile.Settings, domains map[string]profile.Settings) bool {
	if defaults.JavaScript {
		return true
	}
	for _, s := range domains {
		if s.JavaScript {
			return true
		}
	}
	return false
}
