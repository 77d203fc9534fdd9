// ABOUTME: Join status lattice describing the direction of generalisation
// ABOUTME: Combine is the lattice join used to accumulate status across a join

package join

import "fmt"

// Status tells how the joined graph relates to its two inputs
type Status uint8

const (
	// Equal means both inputs denote the same heaps
	Equal Status = iota
	// LeftEntail means the left input is the more general one
	LeftEntail
	// RightEntail means the right input is the more general one
	RightEntail
	// Incomparable means neither input subsumes the other
	Incomparable
)

// Combine folds another observation into s
func (s Status) Combine(other Status) Status {
	switch {
	case other == Equal || s == other:
		return s
	case s == Equal:
		return other
	}
	return Incomparable
}

func (s Status) String() string {
	switch s {
	case Equal:
		return "EQUAL"
	case LeftEntail:
		return "LEFT_ENTAIL"
	case RightEntail:
		return "RIGHT_ENTAIL"
	case Incomparable:
		return "INCOMPARABLE"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}
