package robots

import (
	"regexp"
	"strings"
)

// Verdict is the outcome a rule assigns to the paths it matches.
type Verdict bool

const (
	// Disallow forbids access.
	Disallow Verdict = false
	// Allow permits access.
	Allow Verdict = true
)

func (v Verdict) String() string {
	if v == Allow {
		return "Allow"
	}
	return "Disallow"
}

// Rule is one compiled Allow or Disallow directive.
type Rule struct {
	// Path is the directive value as written in the file.
	Path    string
	Pattern *regexp.Regexp
	Verdict Verdict
}

// Matches reports whether the rule's pattern matches path from its start.
func (r Rule) Matches(path string) bool {
	return r.Pattern.MatchString(path)
}

func (r Rule) String() string {
	return r.Verdict.String() + ": " + r.Path
}

// Parse compiles the Allow and Disallow directives of a robots file that
// apply to agent, keeping file order. Directives under "User-agent: *" and
// under the exact agent name are interleaved into one list.
func Parse(text, agent string) []Rule {
	agent = stripBlanks(agent)

	var (
		current string
		rules   []Rule
	)
	text = strings.TrimPrefix(text, "\ufeff")
	for _, line := range strings.Split(text, "\n") {
		line = stripBlanks(line)
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		switch strings.ToLower(field) {
		case "user-agent":
			current = value
		case "allow", "disallow":
			if value == "" || (current != "*" && current != agent) {
				continue
			}
			verdict := Disallow
			if strings.EqualFold(field, "allow") {
				verdict = Allow
			}
			rules = append(rules, Rule{
				Path:    value,
				Pattern: compilePath(value),
				Verdict: verdict,
			})
		}
	}
	return rules
}

// Check evaluates path against rules. The last matching rule decides; no
// match allows.
func Check(rules []Rule, path string) bool {
	result := true
	for _, r := range rules {
		if r.Matches(path) {
			result = bool(r.Verdict)
		}
	}
	return result
}

// compilePath turns a directive value into a start-anchored pattern. "*"
// matches anything and a trailing "$" anchors the end; every other character
// is literal.
func compilePath(value string) *regexp.Regexp {
	anchored := strings.HasSuffix(value, "$")
	value = strings.TrimSuffix(value, "$")

	var b strings.Builder
	b.WriteString("^")
	for i, part := range strings.Split(value, "*") {
		if i > 0 {
			b.WriteString(".*")
		}
		b.WriteString(regexp.QuoteMeta(part))
	}
	switch {
	case anchored:
		b.WriteString("$")
	case strings.HasSuffix(value, "/"):
		b.WriteString(".*")
	}
	return regexp.MustCompile(b.String())
}

var blanks = strings.NewReplacer(" ", "", "\t", "", "\r", "")

func stripBlanks(s string) string {
	return blanks.Replace(s)
}
