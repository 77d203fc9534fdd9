// ABOUTME: Binary tree discovery and folding into tree segments
// ABOUTME: A node is suitable when both children are null or roots of suitable subtrees

package shape

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/prateek/heapshape/graph"
)

// DefaultTreeMinDepth is the depth a tree must exceed to be reported
const DefaultTreeMinDepth = 2

type suitability uint8

const (
	unchecked suitability = iota
	checking
	suitable
	unsuitable
)

// binding names the two child-pointer offsets of a node of a given size
type binding struct {
	left, right int
	size        int
}

func newBinding(a, b, size int) binding {
	if a > b {
		a, b = b, a
	}
	return binding{left: a, right: b, size: size}
}

// TreeCandidate is a binary tree of height Depth rooted at Root whose nodes
// link their children through the pointer fields at Left and Right
type TreeCandidate struct {
	Root  graph.ObjID
	Size  int
	Left  int
	Right int
	Depth int

	state suitability
}

func (c *TreeCandidate) Kind() graph.Kind { return graph.KindTree }

func (c *TreeCandidate) Start() graph.ObjID { return c.Root }

func (c *TreeCandidate) Score() int { return c.Depth }

func (c *TreeCandidate) String() string {
	return fmt.Sprintf("TREE CANDIDATE(root=%d, left=%d, right=%d, depth=%d)", c.Root, c.Left, c.Right, c.Depth)
}

func (c *TreeCandidate) binding() binding {
	return newBinding(c.Left, c.Right, c.Size)
}

// absorb grows c by its deeper child; absorbed children are no longer
// reported on their own
func (c *TreeCandidate) absorb(low, high *TreeCandidate) {
	low.state, high.state = unsuitable, unsuitable
	c.Depth += max(low.Depth, high.Depth)
}

type treeFinder struct {
	m        *graph.Memory
	uses     map[graph.ValueID]int
	bindings map[graph.ObjID]map[binding]*TreeCandidate
}

// FindTreeCandidates reports every suitable tree deeper than minDepth,
// sorted by root handle then binding
func FindTreeCandidates(m *graph.Memory, minDepth int) []*TreeCandidate {
	f := &treeFinder{
		m:        m,
		uses:     graph.ValueUses(m),
		bindings: make(map[graph.ObjID]map[binding]*TreeCandidate),
	}

	nodes := slices.DeleteFunc(m.HeapObjects(), func(id graph.ObjID) bool {
		return !isConcreteHeapRegion(m, id)
	})
	for _, id := range nodes {
		f.collectBindings(id)
	}
	for _, id := range nodes {
		for _, b := range f.sortedBindings(id) {
			if c := f.bindings[id][b]; c.state == unchecked {
				f.check(c)
			}
		}
	}

	var out []*TreeCandidate
	for _, id := range nodes {
		for _, b := range f.sortedBindings(id) {
			if c := f.bindings[id][b]; c.state == suitable && c.Depth > minDepth {
				out = append(out, c)
			}
		}
	}
	return out
}

// collectBindings records one candidate per pair of non-overlapping pointer fields
func (f *treeFinder) collectBindings(obj graph.ObjID) {
	found := make(map[binding]*TreeCandidate)
	f.bindings[obj] = found

	size := f.m.Object(obj).Size
	fields := f.m.HVs(graph.ObjectFilter(obj))
	for i, outer := range fields {
		if outer.Size != graph.PointerSize || !f.m.IsPointer(outer.Value) {
			continue
		}
		for _, inner := range fields[i+1:] {
			if inner.Size != graph.PointerSize || !f.m.IsPointer(inner.Value) || outer.Overlaps(inner) {
				continue
			}
			b := newBinding(outer.Offset, inner.Offset, size)
			found[b] = &TreeCandidate{Root: obj, Size: size, Left: b.left, Right: b.right, Depth: 1}
		}
	}
}

func (f *treeFinder) sortedBindings(obj graph.ObjID) []binding {
	keys := slices.Collect(maps.Keys(f.bindings[obj]))
	slices.SortFunc(keys, func(a, b binding) int {
		return cmp.Or(cmp.Compare(a.left, b.left), cmp.Compare(a.right, b.right))
	})
	return keys
}

// successor returns the child of node at offset. The null object stands for
// a provably null slot; ok is false when the slot cannot link a tree node.
func (f *treeFinder) successor(node graph.ObjID, offset int) (graph.ObjID, bool) {
	e, found := f.m.UniqueHV(graph.ObjectFilter(node).AtOffset(offset).WithSize(graph.PointerSize))
	if !found {
		return graph.NullObject, f.m.IsNullCovered(node, offset, graph.PointerSize)
	}
	pt, isPtr := f.m.PT(e.Value)
	switch {
	case !isPtr:
		return 0, false
	case pt.Object == graph.NullObject:
		return graph.NullObject, true
	case !isConcreteHeapRegion(f.m, pt.Object):
		return 0, false
	case f.uses[e.Value] > 1 || len(f.m.PTsTo(pt.Object)) > 1:
		// A shared node must stay visible on its own.
		return 0, false
	}
	return pt.Object, true
}

// check decides whether c roots a tree under its own binding
func (f *treeFinder) check(c *TreeCandidate) {
	c.state = checking
	lowNode, okLow := f.successor(c.Root, c.Left)
	highNode, okHigh := f.successor(c.Root, c.Right)
	if !okLow || !okHigh || (lowNode == highNode && lowNode != graph.NullObject) {
		c.state = unsuitable
		return
	}

	b := c.binding()
	low := f.child(b, lowNode)
	high := f.child(b, highNode)
	if c.state == checking && low.state == suitable && high.state == suitable {
		c.state = suitable
		c.absorb(low, high)
		return
	}
	c.state = unsuitable
}

// child returns the candidate rooted at node under the parent's binding b
func (f *treeFinder) child(b binding, node graph.ObjID) *TreeCandidate {
	if node == graph.NullObject {
		return &TreeCandidate{Root: node, Size: b.size, Left: b.left, Right: b.right, state: suitable}
	}

	mine := f.bindings[node]
	c, ok := mine[b]
	if !ok {
		if f.m.Object(node).Size != b.size {
			return &TreeCandidate{Root: node, state: unsuitable}
		}
		c = &TreeCandidate{Root: node, Size: b.size, Left: b.left, Right: b.right, Depth: 1}
		mine[b] = c
	}
	switch c.state {
	case unchecked:
		f.check(c)
	case checking:
		// Met again while its own subtree is being checked: a cycle.
		c.state = unsuitable
	}
	return c
}

// Abstract returns a copy of m where the tree is replaced by one tree segment
func (c *TreeCandidate) Abstract(m *graph.Memory) *graph.Memory {
	out := m.Copy()
	tree := out.AddHeapObject(graph.NewTree(c.Size, c.Left, c.Right, c.Depth))
	out.AddHV(graph.HVEdge{Object: tree, Offset: c.Left, Size: graph.PointerSize, Value: graph.NullValue})
	out.AddHV(graph.HVEdge{Object: tree, Offset: c.Right, Size: graph.PointerSize, Value: graph.NullValue})
	redirect(out, c.Root, tree)

	stack := []graph.ObjID{c.Root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, off := range []int{c.Left, c.Right} {
			e, ok := out.UniqueHV(graph.ObjectFilter(node).AtOffset(off).WithSize(graph.PointerSize))
			if !ok {
				continue
			}
			out.RemoveHV(e)
			if pt, isPtr := out.PT(e.Value); isPtr && e.Value != graph.NullValue {
				out.RemovePT(e.Value)
				out.RemoveValue(e.Value)
				stack = append(stack, pt.Object)
			}
		}
		out.RemoveHeapObject(node)
	}
	return out
}
