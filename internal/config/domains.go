package config

import (
	"maps"
	"time"

	"github.com/nao1215/webchecks/internal/security"
)

// JavaScript trust values accepted in DomainConfig.
const (
	JavaScriptTrusted   = "trusted"
	JavaScriptUntrusted = "untrusted"
)

// DomainConfig holds the access settings of one domain. Empty fields fall
// back to the file defaults and then to the CLI flags.
type DomainConfig struct {
	// Algorithm is the pacing algorithm: EQUISPACED, EXPONENTIAL_RND or
	// EXPONENTIAL_RND_MIN.
	Algorithm string `yaml:"algorithm,omitempty"`

	// AverageWait is the mean pause between two requests, e.g. "25s".
	AverageWait time.Duration `yaml:"averageWait,omitempty"`

	// MinimumWait is the shortest pause, used by EXPONENTIAL_RND_MIN.
	MinimumWait time.Duration `yaml:"minimumWait,omitempty"`

	// Cookie is sent as the Cookie header.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this domain.
	// An empty value removes a default header.
	Headers map[string]string `yaml:"headers,omitempty"`

	// JavaScript is "trusted" or "untrusted".
	JavaScript string `yaml:"javascript,omitempty"`
}

// File represents the structure of the .webchecks.yaml configuration file.
type File struct {
	// Policy is merged with the policy flags. Lists are concatenated and
	// switches are enabled when either side enables them.
	Policy *security.PolicyConfig `yaml:"policy,omitempty"`

	// Domains maps a domain or fqdn (without protocol) to its settings.
	Domains map[string]DomainConfig `yaml:"domains,omitempty"`

	// Defaults applies to every domain unless overridden in Domains.
	Defaults DomainConfig `yaml:"defaults,omitempty"`
}

// DomainConfig returns the configuration of domain merged over the defaults.
func (cf *File) DomainConfig(domain string) DomainConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	dc, ok := cf.Domains[domain]
	if !ok {
		return result
	}
	if dc.Algorithm != "" {
		result.Algorithm = dc.Algorithm
	}
	if dc.AverageWait != 0 {
		result.AverageWait = dc.AverageWait
	}
	if dc.MinimumWait != 0 {
		result.MinimumWait = dc.MinimumWait
	}
	if dc.Cookie != "" {
		result.Cookie = dc.Cookie
	}
	if dc.JavaScript != "" {
		result.JavaScript = dc.JavaScript
	}
	if len(dc.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(dc.Headers))
		}
		maps.Copy(result.Headers, dc.Headers)
	}
	return result
}
