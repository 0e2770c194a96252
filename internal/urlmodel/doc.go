// Package urlmodel parses address strings into protocol, subdomain prefix,
// domain name, TLD and local path.
//
// The model is deliberately narrower than net/url: an Address is anything
// matching
//
//	(protocol://)?(subdomains.)*domain.tld(/path)?
//
// and nothing else. Local links (relative paths, "//host" and "#fragment")
// never produce an Address and must be merged onto a base first.
//
// Every Extract* function returns ErrNotAURL for non-Addresses. Callers
// check IsURL, or handle the error, before using the result.
package urlmodel
