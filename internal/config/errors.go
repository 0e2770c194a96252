package config

import (
	"errors"

	"github.com/nao1215/webchecks/internal/profile"
	"github.com/nao1215/webchecks/internal/security"
)

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
var (
	// ErrNoSeed is returned when no seed URL is given.
	ErrNoSeed = errors.New("no seed specified: provide at least one url")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDuration is returned when the run duration is not positive.
	ErrInvalidDuration = errors.New("invalid run duration: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidPolicy is returned when the unguided access policy is neither
	// "free" nor "strict".
	ErrInvalidPolicy = errors.New("invalid unguided access policy")

	// ErrInvalidWait is returned for a non-positive average or negative minimum wait.
	ErrInvalidWait = profile.ErrInvalidWait

	// ErrInvalidPattern is returned when a policy pattern is not a valid regular expression.
	ErrInvalidPattern = security.ErrInvalidPattern
)
