// ABOUTME: Abstraction candidates reported by the shape finders
// ABOUTME: A candidate knows its kind, its starting node, its score and how to fold itself

package shape

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/prateek/heapshape/graph"
)

// ErrNotAbstract is returned when concretizing a concrete region
var ErrNotAbstract = errors.New("object is not abstract")

// Candidate is a heap shape that can be folded into one abstract object
type Candidate interface {
	fmt.Stringer

	// Kind is the kind of abstract object the candidate folds into
	Kind() graph.Kind

	// Start is the first concrete node the candidate covers
	Start() graph.ObjID

	// Score ranks candidates; larger folds more nodes
	Score() int

	// Abstract returns a copy of m with the candidate folded
	Abstract(m *graph.Memory) *graph.Memory
}

// best picks the candidate with the largest score, preferring the lowest start handle
func best(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return nil, false
	}
	return slices.MinFunc(candidates, func(a, b Candidate) int {
		return cmp.Or(
			cmp.Compare(b.Score(), a.Score()),
			cmp.Compare(a.Start(), b.Start()),
			cmp.Compare(a.Kind(), b.Kind()),
		)
	}), true
}

// isConcreteHeapRegion reports whether id can take part in a shape
func isConcreteHeapRegion(m *graph.Memory, id graph.ObjID) bool {
	return id != graph.NullObject && m.IsHeapObject(id) && m.Object(id).Kind == graph.KindRegion && m.IsValid(id)
}

// redirect moves every points-to edge aimed at from onto to, keeping offsets
func redirect(m *graph.Memory, from, to graph.ObjID) {
	for _, pt := range m.PTsTo(from) {
		m.RemovePT(pt.Value)
		m.AddPT(graph.PTEdge{Value: pt.Value, Object: to, Offset: pt.Offset})
	}
}
