// Package main provides the entry point for the webchecks CLI.
//
// webchecks is a polite crawler. Every request passes a security policy and
// the target's robots.txt, and each host is paced by its own access profile.
//
// Usage:
//
//	webchecks crawl <url>...
//	webchecks check <url>...
//
// See --help for all available options.
package main

func main() {
	Execute()
}
