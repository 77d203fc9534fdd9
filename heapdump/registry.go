// ABOUTME: Registry for graph description parsers
// ABOUTME: Manages parser plugins and selects the parser for a document

package heapdump

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/prateek/heapshape/graph"
)

var (
	// ErrNoParser is returned when no parser can handle the description format
	ErrNoParser = errors.New("no parser found for description format")
)

// previewSize bounds how much of a document format detection sees
const previewSize = 4096

// parserRegistry holds registered parsers
type parserRegistry struct {
	mu      sync.RWMutex
	parsers []Parser
}

// Global registry instance
var registry = &parserRegistry{
	parsers: make([]Parser, 0),
}

// Register adds a parser to the registry
func Register(p Parser) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.parsers = append(registry.parsers, p)
}

// Lookup returns the registered parser with the given name
func Lookup(name string) (Parser, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	for _, p := range registry.parsers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Open reads a graph description and returns the memory it describes.
// It tries each registered parser in registration order.
func Open(r io.Reader) (*graph.Memory, error) {
	preview := make([]byte, previewSize)
	n, err := io.ReadFull(r, preview)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	preview = preview[:n]

	registry.mu.RLock()
	defer registry.mu.RUnlock()

	for _, parser := range registry.parsers {
		if parser.CanParse(bytes.NewReader(preview)) {
			return parser.Parse(io.MultiReader(bytes.NewReader(preview), r))
		}
	}

	return nil, ErrNoParser
}
