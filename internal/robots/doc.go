// Package robots parses robots.txt files and decides whether a path may be
// crawled.
//
// Rules apply in file order and the last matching rule wins. Directives for
// "*" and for the configured agent are merged into a single list. The Engine
// fetches each host's file once through the gateway's express path, keeps it
// in the TTL cache for a day and recompiles only when the cached content hash
// changes. When a file cannot be fetched the configured Fallback decides.
//
// Crawl-delay is read with github.com/temoto/robotstxt and exposed through
// Engine.CrawlDelay for the pacing profiles.
package robots
