package report

import (
	"fmt"
	"io"
	"strings"
)

// SimpleWriter outputs a plain text summary for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose lists every visited link.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables the visited-link listing.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeDomains(&sb, summary)
	w.writeHits(&sb, summary)
	if w.verbose {
		w.writeVisited(&sb, summary)
	}
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        WEBCHECKS CRAWL SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Run:        %s\n", s.RunID)
	fmt.Fprintf(sb, "Started:    %s\n", s.Started.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:   %s\n", s.Duration())
	fmt.Fprintf(sb, "Seeds:      %s\n", strings.Join(s.Seeds, ", "))
	fmt.Fprintf(sb, "Requests:   %d (%d empty responses)\n", s.TotalRequests(), s.EmptyResponses)
	if s.Error != "" {
		fmt.Fprintf(sb, "Status:     ERROR - %s\n", s.Error)
	} else {
		fmt.Fprintf(sb, "Status:     %s\n", s.Stopped)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDomains(sb *strings.Builder, s *Summary) {
	writeSection(sb, "REQUESTS PER DOMAIN")
	if len(s.Domains) == 0 {
		sb.WriteString("  No requests were sent\n\n")
		return
	}
	for _, d := range s.Domains {
		fmt.Fprintf(sb, "  %6d  %s\n", d.Requests, d.FQDN)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeHits(sb *strings.Builder, s *Summary) {
	if len(s.Keywords) == 0 {
		return
	}
	writeSection(sb, "KEYWORDS")
	for _, h := range s.Hits {
		fmt.Fprintf(sb, "[%d] %s\n", len(h.Locations), h.Keyword)
		for _, loc := range h.Locations {
			fmt.Fprintf(sb, "  * %s\n", loc)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeVisited(sb *strings.Builder, s *Summary) {
	writeSection(sb, "VISITED")
	for _, v := range s.Visited {
		fmt.Fprintf(sb, "  %s\n", v)
	}
	sb.WriteString("\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}
