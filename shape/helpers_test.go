// ABOUTME: Shared builders for shape tests
// ABOUTME: Builds null-terminated lists, complete trees and abstract segments

package shape

import (
	"github.com/prateek/heapshape/graph"
)

const (
	nodeSize   = 16
	linkOffset = 8
)

// connect stores in field [off, off+8) of from a fresh pointer to offset 0 of to
func connect(m *graph.Memory, from graph.ObjID, off int, to graph.ObjID) graph.ValueID {
	v := m.NewValue()
	m.AddPT(graph.PTEdge{Value: v, Object: to})
	m.AddHV(graph.HVEdge{Object: from, Offset: off, Size: graph.PointerSize, Value: v})
	return v
}

// heapList builds n nodes where the first created is the null-terminated tail
// and every later node links to its predecessor. It returns the nodes from
// head to tail and a value pointing at the head that no field holds yet.
func heapList(m *graph.Memory, n, size, offset int) ([]graph.ObjID, graph.ValueID) {
	var nodes []graph.ObjID
	var value graph.ValueID
	for i := range n {
		node := m.AddHeapObject(graph.NewRegion(size, "list_node"))
		if i == 0 {
			m.AddHV(graph.HVEdge{Object: node, Offset: 0, Size: size, Value: graph.NullValue})
		} else {
			m.AddHV(graph.HVEdge{Object: node, Offset: offset, Size: graph.PointerSize, Value: value})
		}
		value = m.NewValue()
		m.AddPT(graph.PTEdge{Value: value, Object: node})
		nodes = append([]graph.ObjID{node}, nodes...)
	}
	return nodes, value
}

// globalList is heapList with the head pointer stored in a new global
func globalList(m *graph.Memory, name string, n, size, offset int) ([]graph.ObjID, graph.HVEdge) {
	nodes, value := heapList(m, n, size, offset)
	e := graph.HVEdge{Object: m.AddGlobal(name, graph.PointerSize), Size: graph.PointerSize, Value: value}
	m.AddHV(e)
	return nodes, e
}

// treeoid builds a root with two leaves whose children are null
func treeoid(m *graph.Memory, left, right int) graph.ObjID {
	root := m.AddHeapObject(graph.NewRegion(nodeSize, "root"))
	for _, off := range []int{left, right} {
		leaf := m.AddHeapObject(graph.NewRegion(nodeSize, "leaf"))
		m.AddHV(graph.HVEdge{Object: leaf, Offset: left, Size: graph.PointerSize, Value: graph.NullValue})
		m.AddHV(graph.HVEdge{Object: leaf, Offset: right, Size: graph.PointerSize, Value: graph.NullValue})
		connect(m, root, off, leaf)
	}
	return root
}

// completeTree builds a complete tree of three levels pointed to by a new global
func completeTree(m *graph.Memory, name string, left, right int) (graph.ObjID, graph.ObjID) {
	root := m.AddHeapObject(graph.NewRegion(nodeSize, "root"))
	connect(m, root, left, treeoid(m, left, right))
	connect(m, root, right, treeoid(m, left, right))
	global := m.AddGlobal(name, graph.PointerSize)
	connect(m, global, 0, root)
	return root, global
}

// globalSegment adds an abstract object pointed to by a new global
func globalSegment(m *graph.Memory, name string, o graph.Object) (graph.ObjID, graph.ObjID) {
	seg := m.AddHeapObject(o)
	global := m.AddGlobal(name, graph.PointerSize)
	connect(m, global, 0, seg)
	return seg, global
}

// target returns the object the pointer-sized field at off of obj points to
func target(m *graph.Memory, obj graph.ObjID, off int) (graph.Object, bool) {
	v, ok := m.ReadValue(obj, off, graph.PointerSize)
	if !ok {
		return graph.Object{}, false
	}
	pt, ok := m.PT(v)
	if !ok {
		return graph.Object{}, false
	}
	return m.Object(pt.Object), true
}
