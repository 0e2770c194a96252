// Package report summarises a crawl run.
//
// A Recorder counts the links the gateway dispatches per host and a
// KeywordFinder searches crawled pages. Both feed a Summary, which one of
// the writers renders:
//   - SimpleWriter: plain text for the terminal
//   - MarkdownWriter: a Markdown document with a mermaid pie chart of the
//     requests per site
//   - JSONWriter: structured output for other tools
//
// Writers implement the Writer interface, so they can be combined with
// MultiWriter.
package report
