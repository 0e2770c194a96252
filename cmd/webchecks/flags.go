package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nao1215/webchecks/internal/config"
)

// addAccessFlags registers the flags shared by every command that touches
// the network: configuration file, security policy, robots and proxy.
func addAccessFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	f.StringP("config", "c", "",
		"Configuration file path (default: .webchecks.yaml in current or home directory)")
	f.DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	f.Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")
	f.String("cache-dir", config.XDGCacheDir(),
		"Directory holding the robots.txt cache")

	// Security policy
	f.Bool("allow-http", false,
		"Keep http links instead of rewriting them to https")
	f.Bool("allow-redirect", false,
		"Follow links that carry another URL in their query")
	f.StringSlice("whitelist-domain", nil,
		"Only visit domains matching this pattern (repeatable)")
	f.StringSlice("whitelist-tld", nil,
		"Only visit TLDs matching this pattern (repeatable)")
	f.StringSlice("trusted-tld", nil,
		"Always visit TLDs matching this pattern (repeatable)")
	f.StringSlice("blacklist-tld", nil,
		"Never visit TLDs matching this pattern (repeatable)")
	f.String("single-domain", "",
		"Only visit domains matching this single pattern")

	// Robots
	f.String("unguided", config.DefaultUnguidedPolicy,
		"Access to hosts without a robots.txt: free or strict")
	f.String("agent", config.DefaultAgentName,
		"Agent name matched against robots.txt User-agent lines")
	f.String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")

	// Tor
	f.Bool("tor", false,
		"Route requests through the Tor SOCKS5 proxy")
	f.String("tor-proxy", config.DefaultTorProxyAddress,
		"Tor SOCKS5 proxy address (implies --tor)")
	f.Bool("tor-embedded", false,
		"Start an embedded Tor daemon and route requests through it")
	f.Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")
}

// addCrawlFlags registers the flags that only make sense for a crawl.
func addCrawlFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	f.DurationP("duration", "d", config.DefaultDuration,
		"Stop the crawl after this long, even with links still queued")
	f.Bool("no-crawl", false,
		"Fetch only the given URLs without following links")
	f.Bool("no-compress", false,
		"Store text content uncompressed")
	f.String("result-dir", config.NewConfig().ResultDir,
		"Directory fetched content is archived in")

	// Pacing
	f.String("algorithm", config.DefaultPacingAlgorithm,
		"Default pacing: EQUISPACED, EXPONENTIAL_RND or EXPONENTIAL_RND_MIN")
	f.Duration("average-wait", config.DefaultAverageWait,
		"Default mean pause between two requests to one host")
	f.Duration("minimum-wait", config.DefaultMinimumWait,
		"Default shortest pause between two requests to one host")

	// JavaScript
	f.Bool("javascript", false,
		"Render pages in a headless browser and run their scripts")
	f.String("browser-bin", "",
		"Browser executable (default: find or download Chromium)")

	// Link filters and keywords
	f.StringSliceP("keyword", "k", nil,
		"Regular expression searched for in crawled pages (repeatable)")
	f.StringSlice("ignore", nil,
		"Do not follow links whose path matches this glob (repeatable)")
	f.StringSlice("follow", nil,
		"Only follow links whose path matches this glob (repeatable)")

	// Report
	f.BoolP("json", "j", false,
		"Output JSON summary (mutually exclusive with --markdown)")
	f.BoolP("markdown", "m", false,
		"Output Markdown summary (mutually exclusive with --json)")
	f.StringP("output", "o", "",
		"Write summary to specified file path (creates directories if needed)")
}

// flagReader reads flags one after another and keeps the first error.
type flagReader struct {
	flags *pflag.FlagSet
	err   error
}

func (r *flagReader) keep(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

func (r *flagReader) str(name string) string {
	v, err := r.flags.GetString(name)
	r.keep(err)
	return v
}

func (r *flagReader) boolean(name string) bool {
	v, err := r.flags.GetBool(name)
	r.keep(err)
	return v
}

func (r *flagReader) duration(name string) time.Duration {
	v, err := r.flags.GetDuration(name)
	r.keep(err)
	return v
}

func (r *flagReader) int64(name string) int64 {
	v, err := r.flags.GetInt64(name)
	r.keep(err)
	return v
}

func (r *flagReader) stringSlice(name string) []string {
	v, err := r.flags.GetStringSlice(name)
	r.keep(err)
	return v
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags and the
// configuration file. Crawl flags are read only when cmd defines them.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	r := &flagReader{flags: cmd.Flags()}

	cfg.ConfigFilePath = r.str("config")
	cfg.Timeout = r.duration("timeout")
	cfg.MaxBodySize = r.int64("max-body-size")
	cfg.CacheDir = r.str("cache-dir")

	cfg.EnforceHTTPS = !r.boolean("allow-http")
	cfg.AllowRedirect = r.boolean("allow-redirect")
	cfg.WhitelistDomains = r.stringSlice("whitelist-domain")
	cfg.WhitelistTLD = r.stringSlice("whitelist-tld")
	cfg.BlindlyTrustedTLD = r.stringSlice("trusted-tld")
	cfg.BlacklistedTLD = r.stringSlice("blacklist-tld")
	cfg.SingleDomainOnly = r.str("single-domain")

	cfg.UnguidedPolicy = r.str("unguided")
	cfg.AgentName = r.str("agent")
	cfg.UserAgent = r.str("user-agent")

	cfg.UseTor = r.boolean("tor") || cmd.Flags().Changed("tor-proxy")
	cfg.TorProxyAddress = r.str("tor-proxy")
	cfg.EmbeddedTor = r.boolean("tor-embedded")
	cfg.TorStartupTimeout = r.duration("tor-timeout")

	if cmd.Flags().Lookup("duration") != nil {
		cfg.Duration = r.duration("duration")
		cfg.Crawl = !r.boolean("no-crawl")
		cfg.Compress = !r.boolean("no-compress")
		cfg.ResultDir = r.str("result-dir")
		cfg.PacingAlgorithm = r.str("algorithm")
		cfg.AverageWait = r.duration("average-wait")
		cfg.MinimumWait = r.duration("minimum-wait")
		cfg.JavaScript = r.boolean("javascript")
		cfg.BrowserBin = r.str("browser-bin")
		cfg.Keywords = r.stringSlice("keyword")
		cfg.IgnorePatterns = r.stringSlice("ignore")
		cfg.FollowPatterns = r.stringSlice("follow")
		cfg.JSONReport = r.boolean("json")
		cfg.MarkdownReport = r.boolean("markdown")
		cfg.ReportFile = r.str("output")
	}

	if r.err != nil {
		return nil, r.err
	}

	if err := loadConfigFile(cfg); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Seeds = args

	return cfg, nil
}

// loadConfigFile attaches the configuration file to cfg. A file the user
// named explicitly must exist; otherwise a missing file is not an error.
func loadConfigFile(cfg *config.Config) error {
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath == "" {
		if explicitConfigPath {
			return fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
		}
		return nil
	}

	file, err := config.LoadConfigFile(configPath)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) && !explicitConfigPath {
			return nil
		}
		return fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	cfg.File = file
	return nil
}
