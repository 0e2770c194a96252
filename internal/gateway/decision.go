package gateway

import (
	"github.com/nao1215/webchecks/internal/security"
	"github.com/nao1215/webchecks/internal/urlmodel"
)

// Stage is how far a link got through admission.
type Stage int

const (
	// StageInvalid means the link is not an address.
	StageInvalid Stage = iota
	// StageSecurity means the security policy rejected the link.
	StageSecurity
	// StageRobots means the host's robots file rejected the link.
	StageRobots
	// StageAdmitted means the link passed every check.
	StageAdmitted
)

func (s Stage) String() string {
	switch s {
	case StageInvalid:
		return "not a url"
	case StageSecurity:
		return "security policy"
	case StageRobots:
		return "robots.txt"
	case StageAdmitted:
		return "admitted"
	default:
		return "unknown"
	}
}

// Decision is the result of Admit.
type Decision struct {
	// Link is the string as submitted.
	Link string
	// Address and Normalized are set once the link parsed.
	Address    urlmodel.Address
	Normalized string
	Stage      Stage
	// Step is the security step that rejected or overrode, if any.
	Step security.Step
}

// Allowed reports whether the link was admitted.
func (d Decision) Allowed() bool {
	return d.Stage == StageAdmitted
}
