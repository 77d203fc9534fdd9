// ABOUTME: JSON codec for graph descriptions
// ABOUTME: Detects a JSON object whose first key is a description section

package heapdump

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/prateek/heapshape/graph"
)

// sections are the top-level keys of a description
var sections = map[string]bool{
	"globals": true,
	"frames":  true,
	"heap":    true,
	"values":  true,
	"fields":  true,
	"neq":     true,
}

// JSONParser reads JSON graph descriptions
type JSONParser struct{}

func (p *JSONParser) Name() string { return "json" }

// CanParse checks that the input opens a JSON object with a known section.
// Only the first tokens are read, so a truncated preview still qualifies.
func (p *JSONParser) CanParse(r io.Reader) bool {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return false
	}
	key, err := dec.Token()
	if err != nil {
		return false
	}
	name, ok := key.(string)
	return ok && sections[name]
}

// Parse reads the JSON description and builds the memory graph
func (p *JSONParser) Parse(r io.Reader) (*graph.Memory, error) {
	var d Description

	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}

	return d.Build()
}

// init registers the JSON parser
func init() {
	Register(&JSONParser{})
}
