package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/webchecks/internal/profile"
	"github.com/nao1215/webchecks/internal/robots"
	"github.com/nao1215/webchecks/internal/security"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "webchecks"

	// DefaultAgentName is the user-agent token looked up in robots files.
	DefaultAgentName = "webchecks"

	// DefaultUserAgent is the User-Agent header sent with every request.
	DefaultUserAgent = "webchecks"

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 20 * time.Second

	// DefaultDuration is how long a crawl runs before it stops with links
	// still queued.
	DefaultDuration = 1000 * time.Second

	// DefaultUnguidedPolicy denies hosts whose robots file cannot be fetched.
	DefaultUnguidedPolicy = string(robots.FallbackStrict)

	// DefaultPacingAlgorithm waits an exponentially distributed time with a floor.
	DefaultPacingAlgorithm = string(profile.DefaultAlgorithm)

	// DefaultAverageWait is the mean pause between two requests to one host.
	DefaultAverageWait = profile.DefaultAverageWait

	// DefaultMinimumWait is the shortest pause between two requests to one host.
	DefaultMinimumWait = profile.DefaultMinimumWait

	// DefaultTorProxyAddress is the standard Tor SOCKS5 proxy address.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultMaxBodySize limits the response body size read per request.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB
)

// Config holds all configuration options for webchecks.
// It is populated from CLI flags and passed through the application rather
// than kept in global state.
type Config struct {
	// Seeds are the URLs a crawl starts from, or the URLs `check` evaluates.
	Seeds []string

	// Duration bounds the whole crawl.
	Duration time.Duration

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// EnforceHTTPS rewrites every link to https before it is admitted.
	EnforceHTTPS bool

	// AllowRedirect disables the generic redirect filter.
	AllowRedirect bool

	// WhitelistDomains, when not empty, restricts access to matching fqdns.
	WhitelistDomains []string

	// WhitelistTLD, when not empty, restricts access to matching TLDs.
	WhitelistTLD []string

	// BlindlyTrustedTLD are TLDs admitted regardless of the whitelists.
	BlindlyTrustedTLD []string

	// BlacklistedTLD are TLDs that are never accessed.
	BlacklistedTLD []string

	// SingleDomainOnly, when set, is the one fqdn pattern that may be accessed.
	SingleDomainOnly string

	// UnguidedPolicy decides hosts without a robots file: "free" or "strict".
	UnguidedPolicy string

	// AgentName is matched against User-agent lines in robots files.
	AgentName string

	// UserAgent is the User-Agent header.
	UserAgent string

	// PacingAlgorithm, AverageWait and MinimumWait are the default pacing.
	PacingAlgorithm string
	AverageWait     time.Duration
	MinimumWait     time.Duration

	// Crawl follows links found on fetched pages. When false only the seeds
	// are fetched.
	Crawl bool

	// Compress stores text content zstd-compressed.
	Compress bool

	// JavaScript renders pages of trusted domains in a headless browser.
	JavaScript bool

	// BrowserBin is the browser executable. Empty lets the launcher find or
	// download one.
	BrowserBin string

	// UseTor routes requests through the SOCKS5 proxy at TorProxyAddress.
	UseTor bool

	// TorProxyAddress is the Tor SOCKS5 proxy in "host:port" format.
	TorProxyAddress string

	// EmbeddedTor starts a private Tor daemon and uses it as the proxy.
	EmbeddedTor bool

	// TorStartupTimeout bounds the bootstrap of the embedded daemon.
	TorStartupTimeout time.Duration

	// ResultDir is the archive root.
	ResultDir string

	// CacheDir holds the TTL cache.
	CacheDir string

	// Keywords are regular expressions searched for in crawled pages.
	Keywords []string

	// IgnorePatterns and FollowPatterns filter followed links by path.
	IgnorePatterns []string
	FollowPatterns []string

	// JSONReport and MarkdownReport select the summary format.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile receives the summary instead of stdout.
	ReportFile string

	// MaxBodySize is the maximum response body size in bytes. 0 means the default.
	MaxBodySize int64

	// ConfigFilePath is the explicit configuration file path.
	ConfigFilePath string

	// File is the loaded configuration file, if any.
	File *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Duration:          DefaultDuration,
		Timeout:           DefaultTimeout,
		EnforceHTTPS:      true,
		UnguidedPolicy:    DefaultUnguidedPolicy,
		AgentName:         DefaultAgentName,
		UserAgent:         DefaultUserAgent,
		PacingAlgorithm:   DefaultPacingAlgorithm,
		AverageWait:       DefaultAverageWait,
		MinimumWait:       DefaultMinimumWait,
		Crawl:             true,
		Compress:          true,
		TorProxyAddress:   DefaultTorProxyAddress,
		TorStartupTimeout: DefaultTorStartupTimeout,
		ResultDir:         filepath.Join(XDGDataDir(), "content"),
		CacheDir:          XDGCacheDir(),
		MaxBodySize:       DefaultMaxBodySize,
	}
}

// XDGDataDir returns the XDG data directory for webchecks.
// On Linux: ~/.local/share/webchecks
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for webchecks.
// On Linux: ~/.config/webchecks
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for webchecks.
// On Linux: ~/.cache/webchecks
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Duration <= 0 {
		return ErrInvalidDuration
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if _, err := c.Fallback(); err != nil {
		return err
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	if _, err := c.DefaultSettings(); err != nil {
		return err
	}
	if _, err := c.DomainSettings(); err != nil {
		return err
	}
	return nil
}

// Fallback returns the robots fallback for hosts without a robots file.
func (c *Config) Fallback() (robots.Fallback, error) {
	f, err := robots.ParseFallback(c.UnguidedPolicy)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}
	return f, nil
}

// PolicyConfig merges the policy flags with the policy block of the
// configuration file.
func (c *Config) PolicyConfig() security.PolicyConfig {
	var pc security.PolicyConfig
	if c.File != nil && c.File.Policy != nil {
		pc = *c.File.Policy
	}

	pc.WhitelistDomains = slices.Concat(pc.WhitelistDomains, c.WhitelistDomains)
	pc.WhitelistedDomainsOnly = pc.WhitelistedDomainsOnly || len(c.WhitelistDomains) > 0
	pc.WhitelistTLD = slices.Concat(pc.WhitelistTLD, c.WhitelistTLD)
	pc.WhitelistedTLDOnly = pc.WhitelistedTLDOnly || len(c.WhitelistTLD) > 0
	pc.BlindlyTrustedTLD = slices.Concat(pc.BlindlyTrustedTLD, c.BlindlyTrustedTLD)
	pc.EnableBlindlyTrustedTLD = pc.EnableBlindlyTrustedTLD || len(c.BlindlyTrustedTLD) > 0
	pc.BlacklistedTLD = slices.Concat(pc.BlacklistedTLD, c.BlacklistedTLD)
	if c.SingleDomainOnly != "" {
		pc.SingleDomainOnly = c.SingleDomainOnly
	}
	pc.AllowRedirect = pc.AllowRedirect || c.AllowRedirect
	pc.EnforceHTTPS = c.EnforceHTTPS
	return pc
}

// Policy compiles PolicyConfig. A bad pattern is reported with ErrInvalidPattern.
func (c *Config) Policy() (*security.Policy, error) {
	return c.PolicyConfig().Compile()
}

// DefaultSettings returns the profile settings for domains without their
// own configuration.
func (c *Config) DefaultSettings() (profile.Settings, error) {
	if c.File != nil {
		return c.settings(c.File.Defaults)
	}
	return c.settings(DomainConfig{})
}

// DomainSettings returns the profile settings of every domain named in the
// configuration file.
func (c *Config) DomainSettings() (map[string]profile.Settings, error) {
	out := make(map[string]profile.Settings)
	if c.File == nil {
		return out, nil
	}
	for domain := range c.File.Domains {
		s, err := c.settings(c.File.DomainConfig(domain))
		if err != nil {
			return nil, fmt.Errorf("domain %s: %w", domain, err)
		}
		out[domain] = s
	}
	return out, nil
}

// settings fills the empty fields of dc from the flags and validates it.
func (c *Config) settings(dc DomainConfig) (profile.Settings, error) {
	name := c.PacingAlgorithm
	if dc.Algorithm != "" {
		name = dc.Algorithm
	}
	algorithm, err := profile.ParseAlgorithm(name)
	if err != nil {
		return profile.Settings{}, err
	}

	pacing := profile.Pacing{Algorithm: algorithm, Average: c.AverageWait, Minimum: c.MinimumWait}
	if dc.AverageWait != 0 {
		pacing.Average = dc.AverageWait
	}
	if dc.MinimumWait != 0 {
		pacing.Minimum = dc.MinimumWait
	}
	if err := pacing.Validate(); err != nil {
		return profile.Settings{}, err
	}

	s := profile.Settings{Pacing: pacing, JavaScript: c.JavaScript}
	switch strings.ToLower(dc.JavaScript) {
	case "":
	case JavaScriptTrusted:
		s.JavaScript = true
	case JavaScriptUntrusted:
		s.JavaScript = false
	default:
		return profile.Settings{}, &profile.OptionsError{
			Option:   "javascript",
			Value:    dc.JavaScript,
			Accepted: []string{JavaScriptTrusted, JavaScriptUntrusted},
		}
	}

	if len(dc.Headers) > 0 || dc.Cookie != "" {
		s.Headers = make(map[string]string, len(dc.Headers)+1)
		for k, v := range dc.Headers {
			s.Headers[k] = v
		}
		if dc.Cookie != "" {
			s.Headers["Cookie"] = dc.Cookie
		}
	}
	return s, nil
}
