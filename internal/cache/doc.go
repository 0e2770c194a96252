// Package cache provides the persistent TTL cache shared by the robots engine
// and the content archive.
//
// Two key spaces live in one SQLite database (modernc.org/sqlite, no cgo):
//   - (domain, name) -> (hash, expiry), with the bytes in <root>/<domain>/<name>
//   - weblink -> local identifier, append-only
//
// Expired entries are deleted lazily when Load or GetHash reads them. A store
// with a non-positive TTL is refused, so nothing in the cache lives forever.
// This is the only state that survives between runs.
package cache
