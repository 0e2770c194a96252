package urlmodel

import "strings"

// documentExtensions are file extensions that the grammar would otherwise read
// as a TLD. A bare "index.html" is a local link, not the host "index.html".
var documentExtensions = map[string]bool{
	"html": true, "htm": true, "xhtml": true, "shtml": true,
	"php": true, "asp": true, "aspx": true, "jsp": true, "cgi": true,
	"pdf": true, "txt": true, "xml": true, "json": true, "css": true, "js": true,
	"png": true, "jpg": true, "jpeg": true, "gif": true, "svg": true, "webp": true, "ico": true,
	"mp3": true, "mp4": true, "webm": true,
}

// IsReferential reports whether link points into the current page ("#section").
func IsReferential(link string) bool {
	return strings.HasPrefix(link, "#")
}

// IsSuperlocal reports whether link omits only the protocol ("//host.tld/path").
func IsSuperlocal(link string) bool {
	rest, ok := strings.CutPrefix(link, "//")
	return ok && IsURL(rest)
}

// IsLocal reports whether link is a path relative to the current host. In-page
// references, protocol-relative links and links with a foreign scheme
// (mailto:, javascript:) are not local, and neither is the empty string.
func IsLocal(link string) bool {
	if link == "" || IsReferential(link) || strings.HasPrefix(link, "//") {
		return false
	}
	a, err := Parse(link)
	if err != nil {
		return !hasScheme(link)
	}
	if _, ok := a.Protocol(); ok || a.PathAndArgs() != "" || a.Subdomains() != "" {
		return false
	}
	return documentExtensions[a.TLD()]
}

// hasScheme reports whether link starts with "scheme:" per RFC 3986.
func hasScheme(link string) bool {
	for i, r := range link {
		switch {
		case r == ':':
			return i > 0
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return false
}
