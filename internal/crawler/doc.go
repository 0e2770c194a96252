// Package crawler turns fetched pages into new work for the gateway.
//
// # Architecture
//
// Crawler.Run is a cooperative loop over a Frontier (the gateway):
//
//  1. every seed is queued; a refused seed aborts the run
//  2. ProcessQueue dispatches whatever is due
//  3. each response goes to the profile owning its host, which archives it
//     and marks the link visited
//  4. links on HTML pages are extracted by Parser, filtered by the ignore and
//     follow patterns, registered with the profile of the host they point to
//     and queued
//  5. the loop sleeps for the interval and repeats until the queue is empty,
//     the deadline passes or the context ends
//
// # Link extraction
//
// Parser reads <a> and <area> elements after decoding the page to UTF-8.
// Protocol-relative links lose their leading "//", paths are joined onto the
// page host, in-page references and javascript:, mailto:, tel: and data:
// links are dropped, and internationalised host names are converted to
// punycode so they fit the address grammar.
//
// # Usage
//
//	c := crawler.New(gw, registry, crawler.WithPageObserver(finder.Observe))
//	err := c.Run(ctx, seeds, time.Now().Add(duration))
package crawler
