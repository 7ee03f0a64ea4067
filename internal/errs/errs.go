// Package errs defines domain sentinel errors mapped to HTTP codes in handlers.
package errs

import "errors"

var (
	// ErrValidation marks bad input or a business-rule violation. No side
	// effects were performed.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks host-pool exhaustion for the requested window. The
	// client should pick another time.
	ErrConflict = errors.New("time conflict")
	// ErrProvider marks a third-party conferencing platform failure. Local
	// state is unchanged and the operation is safe to retry.
	ErrProvider = errors.New("provider request failed")
	// ErrNotFound marks an unresolvable meeting, activity or record id.
	ErrNotFound = errors.New("not found")
	// ErrPermission marks a failed role or ownership check.
	ErrPermission = errors.New("permission denied")
)
