// ABOUTME: Parser interface for graph description formats
// ABOUTME: Defines the contract for pluggable description parsers

package heapdump

import (
	"io"

	"github.com/prateek/heapshape/graph"
)

// Parser is the interface for graph description parsers
type Parser interface {
	// Name identifies the format, e.g. "json"
	Name() string

	// CanParse checks if this parser can handle the given description.
	// The reader is a bounded preview; implementations must not assume
	// it holds the whole document.
	CanParse(r io.Reader) bool

	// Parse reads the description and builds a memory graph.
	// The reader is positioned at the start of the document.
	Parse(r io.Reader) (*graph.Memory, error)
}
