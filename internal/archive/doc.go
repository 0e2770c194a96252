// Package archive stores fetched resources on disk.
//
// Every host gets its own directory under the archive root:
//
//	<root>/<fqdn>/content/<name>        the resource, zstd-compressed when it is text
//	<root>/<fqdn>/metadata/<name>.txt   "key : value" lines describing it
//	<root>/<fqdn>/visited.txt           links already crawled, one per line
//
// Names are derived from the URL path by FileName. When a LinkStore is set,
// Save also records the strong-stripped URL against "<fqdn>/<name>" so a later
// run can find the local copy of a link.
package archive
