package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/webchecks/internal/config"
	"github.com/nao1215/webchecks/internal/gateway"
	"github.com/nao1215/webchecks/internal/log"
)

// checkConcurrency bounds the robots.txt lookups running at once.
const checkConcurrency = 8

// errNotAdmitted is returned when at least one checked link was refused.
var errNotAdmitted = errors.New("some links would not be requested")

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [url]...",
		Short: "Show whether links would be requested, without crawling",
		Long: `Check runs the admission steps of a crawl on each URL and prints the result.

A URL is first validated, then rewritten to https unless --allow-http is set,
then evaluated against the security policy and finally against the robots.txt
of its host. robots.txt files are fetched and cached as during a crawl; no
other request is sent.

The command exits with an error when any URL would be refused.

Examples:
  # Check a single link
  webchecks check example.com/admin

  # Check links against a TLD whitelist
  webchecks check --whitelist-tld org example.com example.org`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCheckCmd,
	}

	addAccessFlags(cmd)

	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCheck(ctx, cfg, logger, cmd.OutOrStdout())
}

// runCheck admits every seed of cfg and prints one line per decision, in
// argument order.
func runCheck(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	s, err := openSession(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error("failed to close session", "error", err)
		}
	}()

	decisions := make([]gateway.Decision, len(cfg.Seeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(checkConcurrency)
	for i, link := range cfg.Seeds {
		g.Go(func() error {
			decisions[i] = s.gateway.Admit(gctx, link)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	refused := false
	for _, d := range decisions {
		fmt.Fprintln(stdout, formatDecision(d))
		if !d.Allowed() {
			refused = true
		}
	}
	if refused {
		return errNotAdmitted
	}
	return nil
}

// formatDecision renders a decision as one line.
func formatDecision(d gateway.Decision) string {
	switch d.Stage {
	case gateway.StageAdmitted:
		if d.Step != "" {
			return fmt.Sprintf("ALLOWED   %s (%s)", d.Normalized, d.Step)
		}
		return fmt.Sprintf("ALLOWED   %s", d.Normalized)
	case gateway.StageInvalid:
		return fmt.Sprintf("INVALID   %s", d.Link)
	case gateway.StageSecurity:
		return fmt.Sprintf("REFUSED   %s: %s (%s)", d.Normalized, d.Stage, d.Step)
	default:
		return fmt.Sprintf("REFUSED   %s: %s", d.Normalized, d.Stage)
	}
}
