package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// maxChartSlices is the number of sites drawn before the rest is folded into "other".
const maxChartSlices = 8

// MarkdownWriter outputs summaries in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeDomains(md, summary)
	w.writeKeywords(md, summary)
	w.writeVisited(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run information table and status alert.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *Summary) {
	md.H1("Webchecks Crawl Summary")
	md.PlainText("")

	seeds := make([]string, len(s.Seeds))
	for i, seed := range s.Seeds {
		seeds[i] = "`" + seed + "`"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", "`" + s.RunID + "`"},
			{"Started", s.Started.Format("2006-01-02 15:04:05 MST")},
			{"Duration", s.Duration().String()},
			{"Seeds", strings.Join(seeds, ", ")},
			{"Requests", strconv.Itoa(s.TotalRequests())},
			{"Empty responses", strconv.Itoa(s.EmptyResponses)},
			{"Stopped", s.Stopped},
		},
	})
	md.PlainText("")

	switch {
	case s.Error != "":
		md.Cautionf("The run ended with an error: %s", s.Error)
	case s.Stopped == StopDeadline:
		md.Warningf("The run duration was exceeded with links still queued.")
	case s.EmptyResponses > 0:
		md.Importantf("%d request(s) returned no content.", s.EmptyResponses)
	default:
		md.Tip("Every queued link was fetched.")
	}
	md.PlainText("")
}

// writeDomains writes the per-host table and the per-site pie chart.
func (w *MarkdownWriter) writeDomains(md *markdown.Markdown, s *Summary) {
	md.H2("Requests per Domain")
	md.PlainText("")

	if len(s.Domains) == 0 {
		md.PlainText("No requests were sent.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.Domains))
	for i, d := range s.Domains {
		rows[i] = []string{d.FQDN, d.Site, strconv.Itoa(d.Requests)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Domain", "Site", "Requests"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writePieChart(md, s)
}

// writePieChart writes a mermaid pie chart of requests per site.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *Summary) {
	if len(s.Sites) == 0 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Requests per Site"),
		piechart.WithShowData(true),
	)

	other := 0
	for i, site := range s.Sites {
		if i >= maxChartSlices {
			other += site.Requests
			continue
		}
		chart.LabelAndIntValue(site.Site, uint64(site.Requests)) //nolint:gosec // counts are never negative
	}
	if other > 0 {
		chart.LabelAndIntValue("other", uint64(other)) //nolint:gosec // counts are never negative
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeKeywords writes one section per keyword with the pages it was found on.
func (w *MarkdownWriter) writeKeywords(md *markdown.Markdown, s *Summary) {
	if len(s.Keywords) == 0 {
		return
	}

	md.H2("Keywords")
	md.PlainText("")

	rows := make([][]string, len(s.Hits))
	for i, h := range s.Hits {
		rows[i] = []string{"`" + h.Keyword + "`", strconv.Itoa(len(h.Locations))}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Keyword", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, h := range s.Hits {
		if len(h.Locations) == 0 {
			continue
		}
		md.PlainText("### " + h.Keyword)
		md.PlainText("")
		md.BulletList(h.Locations...)
		md.PlainText("")
	}
}

// writeVisited writes the visited links inside a collapsible block.
func (w *MarkdownWriter) writeVisited(md *markdown.Markdown, s *Summary) {
	md.H2("Visited")
	md.PlainText("")

	if len(s.Visited) == 0 {
		md.Note("No page was visited.")
		md.PlainText("")
		return
	}
	md.Details(strconv.Itoa(len(s.Visited))+" links", strings.Join(s.Visited, "\n"))
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [webchecks](https://github.com/nao1215/webchecks)*")
}
