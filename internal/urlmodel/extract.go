package urlmodel

import (
	"fmt"
	"strings"
)

// ExtractProtocol returns the protocol of s and whether one is present.
func ExtractProtocol(s string) (string, bool, error) {
	a, err := Parse(s)
	if err != nil {
		return "", false, err
	}
	p, ok := a.Protocol()
	return p, ok, nil
}

// ExtractDomainName returns the domain name of s, e.g. "world" for "hello.world.com".
func ExtractDomainName(s string) (string, error) {
	a, err := Parse(s)
	if err != nil {
		return "", err
	}
	return a.DomainName(), nil
}

// ExtractTLD returns the top level domain of s.
func ExtractTLD(s string) (string, error) {
	a, err := Parse(s)
	if err != nil {
		return "", err
	}
	return a.TLD(), nil
}

// ExtractDomain returns domain name and TLD of s, e.g. "world.go" for "https://ok.world.go".
func ExtractDomain(s string) (string, error) {
	a, err := Parse(s)
	if err != nil {
		return "", err
	}
	return a.Domain(), nil
}

// ExtractFQDN returns the fully qualified domain name of s.
func ExtractFQDN(s string) (string, error) {
	a, err := Parse(s)
	if err != nil {
		return "", err
	}
	return a.FQDN(), nil
}

// ExtractLocalPathAndArgs returns the path of s including query and fragment.
func ExtractLocalPathAndArgs(s string) (string, error) {
	a, err := Parse(s)
	if err != nil {
		return "", err
	}
	return a.PathAndArgs(), nil
}

// ExtractLocalPathWithoutArgs returns the path of s without query and fragment.
func ExtractLocalPathWithoutArgs(s string) (string, error) {
	a, err := Parse(s)
	if err != nil {
		return "", err
	}
	return a.PathWithoutArgs(), nil
}

// ChangeProtocol rewrites or inserts the protocol of s. It fails when s is not
// an Address, whether or not s carries a protocol.
func ChangeProtocol(protocol, s string) (string, error) {
	a, err := Parse(s)
	if err != nil {
		return "", err
	}
	return a.WithProtocol(protocol).String(), nil
}

// AddProtocol prefixes s with protocol. It fails with ErrHasProtocol when s
// already names one.
func AddProtocol(protocol, s string) (string, error) {
	a, err := Parse(s)
	if err != nil {
		return "", err
	}
	if p, ok := a.Protocol(); ok {
		return "", fmt.Errorf("%w: %q uses %q", ErrHasProtocol, s, p)
	}
	return protocol + "://" + s, nil
}

// RemoveArgs drops the query and the fragment of link.
func RemoveArgs(link string) string {
	link, _, _ = strings.Cut(link, "?")
	link, _, _ = strings.Cut(link, "#")
	return link
}

// StrongStrip is RemoveArgs followed by removal of one trailing "/".
func StrongStrip(link string) string {
	return strings.TrimSuffix(RemoveArgs(link), "/")
}

// MergeURL joins a domain (or any absolute prefix) and a local path with
// exactly one "/" between them.
func MergeURL(domain, local string) string {
	if local == "" {
		return domain
	}
	if domain == "" {
		return local
	}
	domainSlash := strings.HasSuffix(domain, "/")
	localSlash := strings.HasPrefix(local, "/")
	switch {
	case domainSlash && localSlash:
		return domain + local[1:]
	case domainSlash || localSlash:
		return domain + local
	default:
		return domain + "/" + local
	}
}

// MergeRefURL appends an in-page reference to base with no "/" between them.
func MergeRefURL(base, ref string) string {
	return strings.TrimSuffix(base, "/") + strings.TrimPrefix(ref, "/")
}
