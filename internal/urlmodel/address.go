package urlmodel

import (
	"fmt"
	"regexp"
	"strings"
)

// grammar is the single shape every Address is derived from.
// Groups: 2 protocol, 3 subdomain prefix, 5 domain name, 6 TLD, 7 path and args.
var grammar = regexp.MustCompile(`^(([a-z]*)://)?(([a-zA-Z0-9\-]+\.)*)([a-zA-Z0-9\-]+)\.([a-z]+)(/.*)?$`)

// Address is a decomposed URL. The zero value is not a valid Address; obtain
// one from Parse.
type Address struct {
	protocol    string
	hasProtocol bool
	subdomains  string
	name        string
	tld         string
	path        string
}

// Parse decomposes s. It returns ErrNotAURL when s does not match the grammar;
// there are no partial results.
func Parse(s string) (Address, error) {
	m := grammar.FindStringSubmatchIndex(s)
	if m == nil {
		return Address{}, fmt.Errorf("%w: %q", ErrNotAURL, s)
	}
	group := func(i int) string {
		if m[2*i] < 0 {
			return ""
		}
		return s[m[2*i]:m[2*i+1]]
	}
	return Address{
		protocol:    group(2),
		hasProtocol: m[4] >= 0,
		subdomains:  group(3),
		name:        group(5),
		tld:         group(6),
		path:        group(7),
	}, nil
}

// IsURL reports whether s is an Address.
func IsURL(s string) bool {
	return grammar.MatchString(s)
}

// Protocol returns the protocol and whether one was written. A written but
// empty protocol ("://host.tld") reports ("", true).
func (a Address) Protocol() (string, bool) {
	return a.protocol, a.hasProtocol
}

// Subdomains returns the subdomain prefix including its trailing dot, or "".
func (a Address) Subdomains() string { return a.subdomains }

// DomainName returns the label directly left of the TLD.
func (a Address) DomainName() string { return a.name }

// TLD returns the final label.
func (a Address) TLD() string { return a.tld }

// Domain returns DomainName + "." + TLD.
func (a Address) Domain() string { return a.name + "." + a.tld }

// FQDN returns the fully qualified domain name, subdomains included.
func (a Address) FQDN() string { return a.subdomains + a.Domain() }

// PathAndArgs returns everything after the TLD, query and fragment included.
func (a Address) PathAndArgs() string { return a.path }

// PathWithoutArgs returns the local path with query and fragment removed.
func (a Address) PathWithoutArgs() string {
	if a.path == "" {
		return ""
	}
	return RemoveArgs(a.path)
}

// WithProtocol returns a copy of a using protocol p.
func (a Address) WithProtocol(p string) Address {
	a.protocol = p
	a.hasProtocol = true
	return a
}

// String reassembles the address.
func (a Address) String() string {
	var b strings.Builder
	if a.hasProtocol {
		b.WriteString(a.protocol)
		b.WriteString("://")
	}
	b.WriteString(a.FQDN())
	b.WriteString(a.path)
	return b.String()
}
