package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/webchecks/internal/config"
	"github.com/nao1215/webchecks/internal/crawler"
	"github.com/nao1215/webchecks/internal/log"
	"github.com/nao1215/webchecks/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url]...",
		Short: "Crawl websites politely, starting from the given URLs",
		Long: `Crawl fetches the given URLs and follows the links found on them.

Every link passes the security policy and the robots.txt of its host before
it is queued. Requests to each host are spaced out by the host's pacing, and
fetched content is archived under the result directory.

The crawl ends when the queue is empty or the run duration is exceeded, and
a summary of the run is printed.

Examples:
  # Crawl a site
  webchecks crawl example.com

  # Stay on one domain and stop after ten minutes
  webchecks crawl --single-domain 'example\.com' -d 10m example.com

  # Fetch the given pages only and search them for keywords
  webchecks crawl --no-crawl -k privacy -k 'cookie\s+policy' example.com/privacy

  # Write a Markdown summary
  webchecks crawl -m -o report.md example.com

  # Crawl through Tor
  webchecks crawl --tor example.com`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	addAccessFlags(cmd)
	addCrawlFlags(cmd)

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout())
}

// runCrawl runs one crawl and writes its summary. A crawl cut short by a
// signal still reports what it fetched.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	keywords, err := report.NewKeywordFinder(cfg.Keywords, logger)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	s, err := openSession(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error("failed to close session", "error", err)
		}
	}()

	c := crawler.New(s.gateway, s.registry,
		crawler.WithCrawling(cfg.Crawl),
		crawler.WithLogger(logger),
		crawler.WithPageObserver(keywords.Observe),
		crawler.WithIgnorePatterns(cfg.IgnorePatterns),
		crawler.WithFollowPatterns(cfg.FollowPatterns),
	)

	summary := &report.Summary{
		RunID:    s.archive.RunID(),
		Started:  time.Now(),
		Seeds:    cfg.Seeds,
		Keywords: keywords.Keywords(),
	}

	runErr := c.Run(ctx, cfg.Seeds, summary.Started.Add(cfg.Duration))

	if err := s.registry.Flush(); err != nil {
		logger.Error("failed to save visited links", "error", err)
	}

	stats := c.Stats()
	summary.Finished = time.Now()
	summary.Domains = s.recorder.Domains()
	summary.Sites = s.recorder.Sites()
	summary.Hits = keywords.Hits()
	summary.Visited = s.visited()
	summary.Responses = stats.Responses
	summary.EmptyResponses = stats.Empty
	summary.Stopped = stopReason(runErr, s.gateway.Done())
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		summary.Error = runErr.Error()
	}

	if err := outputSummary(cfg, summary, stdout); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// visited returns the visited links of every host, sorted.
func (s *session) visited() []string {
	var links []string
	for _, p := range s.registry.Profiles() {
		links = append(links, p.Visited()...)
	}
	slices.Sort(links)
	return links
}

// stopReason names why the run loop returned.
func stopReason(runErr error, queueEmpty bool) string {
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		return report.StopCancelled
	case runErr != nil:
		return report.StopFailed
	case queueEmpty:
		return report.StopQueueEmpty
	default:
		return report.StopDeadline
	}
}

// outputSummary writes the summary in the requested format to the report
// file, or to stdout when none is set.
func outputSummary(cfg *config.Config, summary *report.Summary, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Summaries list every visited link, so only the owner may read them.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
	_, err := w.Write(summary)
	return err
}
