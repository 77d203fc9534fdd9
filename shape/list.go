// ABOUTME: Singly-linked list discovery and folding into list segments
// ABOUTME: Chains of equally sized regions linked through one offset become one segment

package shape

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/prateek/heapshape/graph"
)

// DefaultListThreshold is the chain length a list must exceed to be reported
const DefaultListThreshold = 10

// ListCandidate is a chain of Length regions starting at Head, linked
// through the pointer field at Offset
type ListCandidate struct {
	Head   graph.ObjID
	Size   int
	Offset int
	Length int
}

func (c *ListCandidate) Kind() graph.Kind { return graph.KindList }

func (c *ListCandidate) Start() graph.ObjID { return c.Head }

func (c *ListCandidate) Score() int { return c.Length }

func (c *ListCandidate) String() string {
	return fmt.Sprintf("SLL CANDIDATE(head=%d, offset=%d, length=%d)", c.Head, c.Offset, c.Length)
}

func (c *ListCandidate) compatible(other *ListCandidate) bool {
	return c.Offset == other.Offset && c.Size == other.Size
}

// listFinder carries the state of one list discovery pass
type listFinder struct {
	m          *graph.Memory
	inbound    map[graph.ValueID]int
	candidates map[graph.ObjID]map[int]*ListCandidate
}

// FindListCandidates reports every list chain longer than threshold, sorted
// by head handle then offset
func FindListCandidates(m *graph.Memory, threshold int) []*ListCandidate {
	f := &listFinder{
		m:          m,
		inbound:    graph.ValueUses(m),
		candidates: make(map[graph.ObjID]map[int]*ListCandidate),
	}
	for _, id := range m.HeapObjects() {
		if isConcreteHeapRegion(m, id) {
			f.start(id)
		}
	}

	var out []*ListCandidate
	for _, byOffset := range f.candidates {
		for _, c := range byOffset {
			if c.Length > threshold {
				out = append(out, c)
			}
		}
	}
	slices.SortFunc(out, func(a, b *ListCandidate) int {
		return cmp.Or(cmp.Compare(a.Head, b.Head), cmp.Compare(a.Offset, b.Offset))
	})
	return out
}

func (f *listFinder) start(obj graph.ObjID) {
	if _, ok := f.candidates[obj]; ok {
		return
	}
	byOffset := make(map[int]*ListCandidate)
	f.candidates[obj] = byOffset

	size := f.m.Object(obj).Size
	for _, e := range f.m.HVs(graph.ObjectFilter(obj).WithoutValue(graph.NullValue)) {
		if !f.m.IsPointer(e.Value) {
			continue
		}
		c := &ListCandidate{Head: obj, Size: size, Offset: e.Offset, Length: 1}
		byOffset[e.Offset] = c
		f.extend(e.Value, c)
	}
}

// extend tries to prolong c through the node its link value points to
func (f *listFinder) extend(link graph.ValueID, c *ListCandidate) {
	pt, _ := f.m.PT(link)
	next := pt.Object
	if !isConcreteHeapRegion(f.m, next) {
		return
	}
	f.start(next)

	// An aliased node must stay visible on its own.
	if f.inbound[link] > 1 || len(f.m.PTsTo(next)) > 1 {
		return
	}

	byOffset := f.candidates[next]
	if _, ok := byOffset[c.Offset]; !ok && f.m.IsNullCovered(next, c.Offset, graph.PointerSize) {
		byOffset[c.Offset] = &ListCandidate{Head: next, Size: f.m.Object(next).Size, Offset: c.Offset, Length: 1}
	}

	tail, ok := byOffset[c.Offset]
	if !ok || tail == c || !c.compatible(tail) {
		return
	}
	delete(byOffset, c.Offset)
	c.Length += tail.Length
}

// Abstract returns a copy of m where the chain is replaced by one list segment
func (c *ListCandidate) Abstract(m *graph.Memory) *graph.Memory {
	out := m.Copy()
	list := out.AddHeapObject(graph.NewList(c.Size, c.Offset, c.Length))
	redirect(out, c.Head, list)

	node := c.Head
	value := graph.NullValue
	for range c.Length {
		if value != graph.NullValue {
			out.RemovePT(value)
			out.RemoveValue(value)
		}

		value = graph.NullValue
		for _, e := range out.HVs(graph.ObjectFilter(node).AtOffset(c.Offset)) {
			if out.IsPointer(e.Value) {
				value = e.Value
			}
		}

		out.RemoveHeapObject(node)
		if pt, ok := out.PT(value); ok {
			node = pt.Object
		}
	}

	out.AddHV(graph.HVEdge{Object: list, Offset: c.Offset, Size: graph.PointerSize, Value: value})
	return out
}
