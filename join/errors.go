// ABOUTME: Error values reported by the join
// ABOUTME: Semantic non-joinability is not an error; these mark aborted joins

package join

import "errors"

var (
	// ErrProtocolViolation aborts the whole join: the inputs or the
	// accumulated mappings contradict each other
	ErrProtocolViolation = errors.New("join protocol violation")

	// ErrMisaligned is returned when field alignment fails its postcondition
	ErrMisaligned = errors.New("fields not aligned")
)

// AsymmetricGlobalsUnjoinable is the Reason of a join whose inputs declare
// different global variables. Such inputs are reported as not joinable even
// though a join over the common globals could exist; this is a deliberate
// approximation.
const AsymmetricGlobalsUnjoinable = "asymmetric globals"
