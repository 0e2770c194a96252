package security

import "errors"

// ErrInvalidPattern is returned by Compile when a policy pattern is not a valid regular expression.
var ErrInvalidPattern = errors.New("invalid policy pattern")
