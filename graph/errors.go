// ABOUTME: Error values shared by graph operations
// ABOUTME: Invariant violations panic with InvariantError; checks return wrapped sentinels

package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrInvariant marks a violated graph precondition (a programmer error)
	ErrInvariant = errors.New("graph invariant violated")

	// ErrInconsistent is wrapped by every verifier finding
	ErrInconsistent = errors.New("inconsistent graph")

	// ErrInvalidFree is returned when freeing something that is not a live heap allocation
	ErrInvalidFree = errors.New("invalid free")
)

// InvariantError is the panic payload for misuse of the graph API
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "graph: " + e.Msg
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}

func invariantf(format string, args ...any) *InvariantError {
	return &InvariantError{Msg: fmt.Sprintf(format, args...)}
}

// AsInvariantError converts a recovered panic value into an error.
// Panics that did not originate from the graph API are re-raised.
func AsInvariantError(r any) error {
	if e, ok := r.(*InvariantError); ok {
		return e
	}
	panic(r)
}
