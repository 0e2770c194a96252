package security

import (
	"regexp"
	"strings"

	"github.com/nao1215/webchecks/internal/urlmodel"
)

// maxDecodeRounds bounds percent-decoding. A path still changing after this
// many rounds is treated as a redirect.
const maxDecodeRounds = 5

// sublink finds "protocol://host.tld/path" or "host.tld" anywhere in a string.
var sublink = regexp.MustCompile(`(([a-z]*)://)?(([a-zA-Z0-9\-]+\.)*)([a-zA-Z0-9\-]+)\.([a-z]+)(/.*)?`)

// IsGenericRedirect reports whether the path and query of rawURL embed another
// absolute URL, possibly percent-encoded several times over. rawURL must be
// an Address; otherwise the error wraps urlmodel.ErrNotAURL.
func IsGenericRedirect(rawURL string) (bool, error) {
	path, err := urlmodel.ExtractLocalPathAndArgs(rawURL)
	if err != nil {
		return false, err
	}
	return isRedirectPath(path), nil
}

// isRedirectPath only searches strings that still decode to something else,
// so a plain path with a file name ("/a/b.html") is not a redirect.
func isRedirectPath(path string) bool {
	current := path
	decoded := unquote(current)
	for round := 1; current != decoded; round++ {
		if sublink.MatchString(current) {
			return true
		}
		current = decoded
		decoded = unquote(decoded)
		if round > maxDecodeRounds {
			return true
		}
	}
	return false
}

// unquote decodes every valid %XX escape and leaves malformed escapes as they
// are. url.PathUnescape rejects the whole string on a malformed escape, which
// would let "%zz" hide an encoded target from the loop above.
func unquote(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
