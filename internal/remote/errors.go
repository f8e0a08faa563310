// Package remote holds the failure kind shared by everything that talks to
// the persistence service.
package remote

import "errors"

// ErrUnavailable marks any failed remote call: transport, status or decoding.
var ErrUnavailable = errors.New("remote unavailable")

// Error wraps the underlying cause of a failed remote operation.
type Error struct {
	Op  string
	Err error
}

// Wrap returns nil for a nil err, otherwise an *Error for op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

func (e *Error) Error() string {
	return e.Op + ": " + ErrUnavailable.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}
