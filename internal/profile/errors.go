package profile

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidWait is returned for a non-positive average or a negative minimum wait.
var ErrInvalidWait = errors.New("invalid wait time")

// OptionsError reports a configuration value outside its accepted set.
type OptionsError struct {
	Option   string
	Value    string
	Accepted []string
}

func (e *OptionsError) Error() string {
	return fmt.Sprintf("invalid value %q for option %s, accepted values: %s",
		e.Value, e.Option, strings.Join(e.Accepted, ", "))
}
