// ABOUTME: Encoder writing memory graphs as JSON or YAML descriptions
// ABOUTME: The output parses back through Open into an equivalent graph

package heapdump

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/prateek/heapshape/graph"
)

// Format selects the encoding of a description
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown description format %q", s)
}

// Encode writes the description of m to w
func Encode(w io.Writer, m *graph.Memory, format Format) error {
	d := Describe(m)
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown description format %q", format)
}
