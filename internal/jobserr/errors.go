// Package jobserr declares the sentinel error kinds surfaced across the job
// runner's components, checked with errors.Is rather than type assertions.
package jobserr

import "errors"

var (
	// ErrInvalid marks malformed input: an empty command, a malformed job
	// id, or any other caller-supplied value that fails validation before
	// a mutation is attempted.
	ErrInvalid = errors.New("jobserr: invalid input")

	// ErrNotFound marks a lookup that found nothing: delete of an unknown
	// todo id, pop of an id not present in the todo bucket.
	ErrNotFound = errors.New("jobserr: not found")

	// ErrCollision marks an id that already exists where a fresh one was
	// expected: a dependency snapshot already present for the id, or an
	// Enqueue whose bounded re-stamping found no free id. Enqueue re-stamps
	// internally and returns this only when its attempts are exhausted.
	ErrCollision = errors.New("jobserr: id collision")

	// ErrBroken marks a subscription whose backing queue was torn down
	// while a reader was waiting on it.
	ErrBroken = errors.New("jobserr: subscription broken")

	// ErrMissing marks an operation against a subscription key that was
	// never registered.
	ErrMissing = errors.New("jobserr: subscription missing")
)
