// ABOUTME: YAML codec for graph descriptions
// ABOUTME: Detects a document whose first mapping key is a description section

package heapdump

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/prateek/heapshape/graph"
)

// YAMLParser reads YAML graph descriptions
type YAMLParser struct{}

func (p *YAMLParser) Name() string { return "yaml" }

// CanParse checks that the first content line opens a known section
func (p *YAMLParser) CanParse(r io.Reader) bool {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "---" || strings.HasPrefix(line, "#") {
			continue
		}
		key, _, found := strings.Cut(line, ":")
		return found && sections[key]
	}
	return false
}

// Parse reads the YAML description and builds the memory graph
func (p *YAMLParser) Parse(r io.Reader) (*graph.Memory, error) {
	var d Description

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&d); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode YAML: %w", err)
	}

	return d.Build()
}

func init() {
	Register(&YAMLParser{})
}
