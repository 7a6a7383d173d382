package operators

import "errors"

// ErrNotFound means the directory has no operator for the drone
var ErrNotFound = errors.New("operator not found")

// LookupError wraps any failure to resolve an operator
type LookupError struct {
	Serial string
	Err    error
}

func (e *LookupError) Error() string {
	return "operator lookup " + e.Serial + ": " + e.Err.Error()
}

func (e *LookupError) Unwrap() error {
	return e.Err
}
