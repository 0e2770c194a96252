package security

import (
	"fmt"
	"regexp"

	"github.com/nao1215/webchecks/internal/urlmodel"
)

// PolicyConfig is the operator's admission policy. Patterns are regular
// expressions matched from the start of the candidate, without requiring a
// full-string match.
type PolicyConfig struct {
	// WhitelistedDomainsOnly restricts access to fqdns matching WhitelistDomains.
	WhitelistedDomainsOnly bool `yaml:"whitelistedDomainsOnly"`
	// WhitelistDomains are matched against the fully qualified domain name.
	WhitelistDomains []string `yaml:"whitelistDomains,omitempty"`
	// WhitelistedTLDOnly restricts access to TLDs matching WhitelistTLD.
	WhitelistedTLDOnly bool `yaml:"whitelistedTLDOnly"`
	// WhitelistTLD is matched against the TLD.
	WhitelistTLD []string `yaml:"whitelistTLD,omitempty"`
	// EnableBlindlyTrustedTLD lets BlindlyTrustedTLD override every earlier check.
	EnableBlindlyTrustedTLD bool `yaml:"enableBlindlyTrustedTLD"`
	// BlindlyTrustedTLD is matched against the TLD.
	BlindlyTrustedTLD []string `yaml:"blindlyTrustedTLD,omitempty"`
	// BlacklistedTLD always wins, blind trust included.
	BlacklistedTLD []string `yaml:"blacklistedTLD,omitempty"`
	// SingleDomainOnly, when non-empty, is the one pattern the fqdn must match.
	SingleDomainOnly string `yaml:"singleDomainOnly,omitempty"`
	// AllowRedirect disables the generic redirect filter.
	AllowRedirect bool `yaml:"allowRedirect"`
	// EnforceHTTPS makes the gateway rewrite every protocol to https.
	EnforceHTTPS bool `yaml:"enforceHTTPS"`
}

// Step names the policy step that decided a verdict.
type Step string

// Policy steps, in evaluation order.
const (
	StepNone        Step = ""
	StepSingle      Step = "single-domain"
	StepWhitelist   Step = "domain-whitelist"
	StepTLD         Step = "tld-whitelist"
	StepRedirect    Step = "generic-redirect"
	StepBlindTrust  Step = "blind-trust"
	StepBlacklisted Step = "tld-blacklist"
)

// Verdict is the outcome of a policy evaluation. Step is the step that
// produced a rejection, or the override that forced the result.
type Verdict struct {
	Allowed bool
	Step    Step
}

// Policy is a compiled PolicyConfig. It is immutable and safe for concurrent use.
type Policy struct {
	cfg       PolicyConfig
	single    *regexp.Regexp
	domains   []*regexp.Regexp
	tlds      []*regexp.Regexp
	trusted   []*regexp.Regexp
	blacklist []*regexp.Regexp
}

// Compile validates every pattern of c.
func (c PolicyConfig) Compile() (*Policy, error) {
	p := &Policy{cfg: c}
	var err error
	if c.SingleDomainOnly != "" {
		if p.single, err = compilePrefix(c.SingleDomainOnly); err != nil {
			return nil, err
		}
	}
	if p.domains, err = compileAll(c.WhitelistDomains); err != nil {
		return nil, err
	}
	if p.tlds, err = compileAll(c.WhitelistTLD); err != nil {
		return nil, err
	}
	if p.trusted, err = compileAll(c.BlindlyTrustedTLD); err != nil {
		return nil, err
	}
	if p.blacklist, err = compileAll(c.BlacklistedTLD); err != nil {
		return nil, err
	}
	return p, nil
}

// MustCompile is Compile that panics on an invalid pattern. Intended for tests
// and literal policies.
func (c PolicyConfig) MustCompile() *Policy {
	p, err := c.Compile()
	if err != nil {
		panic(err)
	}
	return p
}

// Config returns the configuration p was compiled from.
func (p *Policy) Config() PolicyConfig { return p.cfg }

// EnforceHTTPS reports whether non-https protocols must be rewritten.
func (p *Policy) EnforceHTTPS() bool { return p.cfg.EnforceHTTPS }

// IsAllowed reports whether a may be accessed under p.
func (p *Policy) IsAllowed(a urlmodel.Address) bool {
	return p.Evaluate(a).Allowed
}

// Evaluate runs the policy steps in order. Each of the first four steps can
// only narrow the result; blind trust then forces true and the blacklist
// forces false.
func (p *Policy) Evaluate(a urlmodel.Address) Verdict {
	fqdn, tld := a.FQDN(), a.TLD()
	v := Verdict{Allowed: true}
	narrow := func(ok bool, step Step) {
		if !ok && v.Allowed {
			v = Verdict{Allowed: false, Step: step}
		}
	}

	if p.single != nil {
		narrow(p.single.MatchString(fqdn), StepSingle)
	}
	if p.cfg.WhitelistedDomainsOnly {
		narrow(matchAny(p.domains, fqdn), StepWhitelist)
	}
	if p.cfg.WhitelistedTLDOnly {
		narrow(matchAny(p.tlds, tld), StepTLD)
	}
	if !p.cfg.AllowRedirect {
		narrow(!isRedirectPath(a.PathAndArgs()), StepRedirect)
	}
	if p.cfg.EnableBlindlyTrustedTLD && matchAny(p.trusted, tld) {
		v = Verdict{Allowed: true, Step: StepBlindTrust}
	}
	if matchAny(p.blacklist, tld) {
		v = Verdict{Allowed: false, Step: StepBlacklisted}
	}
	return v
}

func compilePrefix(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidPattern, pattern, err)
	}
	return re, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := compilePrefix(pattern)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
