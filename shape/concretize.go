// ABOUTME: Materialisation of concrete regions out of abstract list and tree segments
// ABOUTME: Every result is an independent copy; alternatives are never merged

package shape

import (
	"fmt"

	"github.com/prateek/heapshape/graph"
	"github.com/prateek/heapshape/internal/metrics"
)

// Concretize materialises one concrete region out of the abstract object obj.
// A list segment yields the graph with a concrete head in front of a segment
// one shorter, plus the graph without the segment when it may be empty. A tree
// segment yields one graph per choice of null or subtree for each child.
func Concretize(m *graph.Memory, obj graph.ObjID) ([]*graph.Memory, error) {
	o := m.Object(obj)
	var out []*graph.Memory
	switch o.Kind {
	case graph.KindList:
		out = concretizeList(m, o)
	case graph.KindTree:
		out = concretizeTree(m, o)
	default:
		return nil, fmt.Errorf("%w: %v", ErrNotAbstract, o)
	}
	metrics.Concretizations.WithLabelValues(o.Kind.String()).Inc()
	metrics.ConcretizationResults.Observe(float64(len(out)))
	return out, nil
}

func concretizeList(m *graph.Memory, list graph.Object) []*graph.Memory {
	out := []*graph.Memory{materializeHead(m, list)}
	if list.List.Length == 0 {
		out = append(out, spliceOut(m, list))
	}
	return out
}

// materializeHead puts a fresh region in front of a segment one element shorter
func materializeHead(m *graph.Memory, list graph.Object) *graph.Memory {
	out := m.Copy()

	offset := 0
	if pts := out.PTsTo(list.ID); len(pts) > 0 {
		offset = pts[0].Offset
	}
	head := out.AddHeapObject(graph.NewRegion(list.Size, ""))
	redirect(out, list.ID, head)

	shorter := list
	shorter.List.Length = max(list.List.Length-1, 0)
	out.UpdateObject(shorter)

	link := out.NewValue()
	out.AddPT(graph.PTEdge{Value: link, Object: list.ID, Offset: offset})
	out.AddHV(graph.HVEdge{Object: head, Offset: list.List.Offset, Size: graph.PointerSize, Value: link})
	return out
}

// spliceOut removes an empty segment, so whatever pointed at it now holds its successor
func spliceOut(m *graph.Memory, list graph.Object) *graph.Memory {
	out := m.Copy()

	next, known := out.ReadValue(list.ID, list.List.Offset, graph.PointerSize)
	if known && !out.IsPointer(next) {
		known = false
	}
	inbound := out.PTsTo(list.ID)
	out.RemoveHeapObject(list.ID)

	for _, pt := range inbound {
		out.RemovePT(pt.Value)
		if known {
			out.MergeValues(next, pt.Value)
		}
	}
	return out
}

func concretizeTree(m *graph.Memory, tree graph.Object) []*graph.Memory {
	if tree.Tree.Depth <= 1 {
		return []*graph.Memory{materializeRoot(m, tree, false, false)}
	}
	var out []*graph.Memory
	for _, left := range []bool{false, true} {
		for _, right := range []bool{false, true} {
			out = append(out, materializeRoot(m, tree, left, right))
		}
	}
	return out
}

// materializeRoot replaces tree by a concrete root whose children are either
// null or subtrees one level shallower
func materializeRoot(m *graph.Memory, tree graph.Object, leftSubtree, rightSubtree bool) *graph.Memory {
	out := m.Copy()
	root := out.AddHeapObject(graph.NewRegion(tree.Size, ""))
	redirect(out, tree.ID, root)
	out.RemoveHeapObject(tree.ID)

	child := func(offset int, subtree bool) {
		value := graph.NullValue
		if subtree {
			sub := out.AddHeapObject(graph.NewTree(tree.Size, tree.Tree.Left, tree.Tree.Right, tree.Tree.Depth-1))
			out.AddHV(graph.HVEdge{Object: sub, Offset: tree.Tree.Left, Size: graph.PointerSize, Value: graph.NullValue})
			out.AddHV(graph.HVEdge{Object: sub, Offset: tree.Tree.Right, Size: graph.PointerSize, Value: graph.NullValue})
			value = out.NewValue()
			out.AddPT(graph.PTEdge{Value: value, Object: sub})
		}
		out.AddHV(graph.HVEdge{Object: root, Offset: offset, Size: graph.PointerSize, Value: value})
	}
	child(tree.Tree.Left, leftSubtree)
	child(tree.Tree.Right, rightSubtree)
	return out
}
