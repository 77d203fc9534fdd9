// ABOUTME: Abstraction driver folding the best list or tree candidate until none remain
// ABOUTME: Each pass works on a copy so callers keep their input graph

package shape

import (
	"log/slog"

	"github.com/prateek/heapshape/graph"
	"github.com/prateek/heapshape/internal/metrics"
)

// Option configures an Abstractor
type Option func(*Abstractor)

// WithListThreshold sets the chain length a list must exceed to be folded
func WithListThreshold(n int) Option {
	return func(a *Abstractor) { a.listThreshold = n }
}

// WithTreeMinDepth sets the depth a tree must exceed to be folded
func WithTreeMinDepth(n int) Option {
	return func(a *Abstractor) { a.treeMinDepth = n }
}

// WithLogger sets the logger; nil keeps the default
func WithLogger(l *slog.Logger) Option {
	return func(a *Abstractor) {
		if l != nil {
			a.log = l
		}
	}
}

// Abstractor folds concrete heap shapes into list and tree segments
type Abstractor struct {
	listThreshold int
	treeMinDepth  int
	log           *slog.Logger
}

// NewAbstractor returns an Abstractor with the default thresholds
func NewAbstractor(opts ...Option) *Abstractor {
	a := &Abstractor{
		listThreshold: DefaultListThreshold,
		treeMinDepth:  DefaultTreeMinDepth,
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Candidates returns every list and tree candidate of m
func (a *Abstractor) Candidates(m *graph.Memory) []Candidate {
	var out []Candidate
	for _, c := range FindListCandidates(m, a.listThreshold) {
		out = append(out, c)
	}
	for _, c := range FindTreeCandidates(m, a.treeMinDepth) {
		out = append(out, c)
	}
	return out
}

// Abstract repeatedly folds the best candidate of m until none remains and
// returns the final graph along with the candidates applied, in order.
// Every fold replaces at least one concrete region, so the loop terminates.
func (a *Abstractor) Abstract(m *graph.Memory) (*graph.Memory, []Candidate) {
	cur := m.Copy()
	var applied []Candidate
	for {
		c, ok := best(a.Candidates(cur))
		if !ok {
			break
		}
		a.log.Debug("abstracting candidate", "kind", c.Kind(), "start", c.Start(), "score", c.Score())
		cur = c.Abstract(cur)
		applied = append(applied, c)
		metrics.Abstractions.WithLabelValues(c.Kind().String()).Inc()
	}
	a.log.Debug("abstraction done", "applied", len(applied), "heap", len(cur.HeapObjects()))
	return cur, applied
}
