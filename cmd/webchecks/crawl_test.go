package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/webchecks/internal/config"
	"github.com/nao1215/webchecks/internal/crawler"
	"github.com/nao1215/webchecks/internal/report"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// offlineConfig returns a config whose cache and archive live in temporary
// directories.
func offlineConfig(t *testing.T, seeds ...string) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Seeds = seeds
	cfg.CacheDir = t.TempDir()
	cfg.ResultDir = t.TempDir()
	return cfg
}

func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()
	for _, name := range []string{"duration", "no-crawl", "keyword", "json", "markdown", "output", "tor", "whitelist-tld", "unguided"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %q flag", name)
		}
	}
}

func TestRunCrawlCmd_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "no seed", args: nil, want: config.ErrNoSeed},
		{name: "both report formats", args: []string{"--json", "--markdown", "example.com"}, want: config.ErrConflictingReportFormats},
		{name: "unknown unguided policy", args: []string{"--unguided", "maybe", "example.com"}, want: config.ErrInvalidPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeConfigFile(t, "defaults: {}\n")
			cmd := NewCrawlCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetArgs(append([]string{"-c", path}, tt.args...))
			if err := cmd.Execute(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRunCrawl_RejectedSeed(t *testing.T) {
	t.Parallel()

	cfg := offlineConfig(t, "example.com")
	cfg.BlacklistedTLD = []string{"com"}

	var buf bytes.Buffer
	err := runCrawl(context.Background(), cfg, quietLogger(), &buf)
	if !errors.Is(err, crawler.ErrSeedRejected) {
		t.Fatalf("expected ErrSeedRejected, got %v", err)
	}

	output := buf.String()
	for _, want := range []string{"WEBCHECKS CRAWL SUMMARY", "ERROR - seed rejected: example.com"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected summary to contain %q, got:\n%s", want, output)
		}
	}
}

func TestRunCrawl_InvalidKeyword(t *testing.T) {
	t.Parallel()

	cfg := offlineConfig(t, "example.com")
	cfg.Keywords = []string{"(unclosed"}

	err := runCrawl(context.Background(), cfg, quietLogger(), io.Discard)
	if !errors.Is(err, report.ErrInvalidKeyword) {
		t.Errorf("expected ErrInvalidKeyword, got %v", err)
	}
}

func TestStopReason(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		queueEmpty bool
		want       string
	}{
		{name: "queue drained", queueEmpty: true, want: report.StopQueueEmpty},
		{name: "deadline", queueEmpty: false, want: report.StopDeadline},
		{name: "signal", err: context.Canceled, want: report.StopCancelled},
		{name: "context deadline", err: context.DeadlineExceeded, want: report.StopCancelled},
		{name: "failure", err: crawler.ErrSeedRejected, queueEmpty: true, want: report.StopFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := stopReason(tt.err, tt.queueEmpty); got != tt.want {
				t.Errorf("stopReason() = %q, want %q", got, tt.want)
			}
		})
	}
}

func testSummary() *report.Summary {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return &report.Summary{
		RunID:    "run-1",
		Started:  start,
		Finished: start.Add(time.Minute),
		Seeds:    []string{"example.com"},
		Domains:  []report.DomainCount{{FQDN: "example.com", Site: "example.com", Requests: 2}},
		Visited:  []string{"example.com/"},
		Stopped:  report.StopQueueEmpty,
	}
}

func TestOutputSummary(t *testing.T) {
	t.Parallel()

	t.Run("simple to stdout", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if err := outputSummary(config.NewConfig(), testSummary(), &buf); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "WEBCHECKS CRAWL SUMMARY") {
			t.Errorf("unexpected output: %s", buf.String())
		}
	})

	t.Run("markdown to stdout", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.MarkdownReport = true
		var buf bytes.Buffer
		if err := outputSummary(cfg, testSummary(), &buf); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "# Webchecks Crawl Summary") {
			t.Errorf("unexpected output: %s", buf.String())
		}
	})

	t.Run("json to file in new directory", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.JSONReport = true
		cfg.ReportFile = filepath.Join(t.TempDir(), "reports", "run.json")

		var stdout bytes.Buffer
		if err := outputSummary(cfg, testSummary(), &stdout); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stdout.Len() != 0 {
			t.Error("nothing should be written to stdout")
		}

		data, err := os.ReadFile(cfg.ReportFile)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		var got report.JSONReport
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Summary == nil || got.Summary.RunID != "run-1" {
			t.Errorf("unexpected report: %+v", got)
		}

		info, err := os.Stat(cfg.ReportFile)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("report permissions = %o, want 600", perm)
		}
	})
}
