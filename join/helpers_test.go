// ABOUTME: Shared builders for join tests
// ABOUTME: Wires pointers and fields into test graphs and builds quiet joiners

package join

import (
	"log/slog"

	"github.com/prateek/heapshape/graph"
)

func quietJoiner(smg1, smg2 *graph.Memory) *joiner {
	return newJoiner(smg1, smg2, options{log: slog.New(slog.DiscardHandler)})
}

// pointTo returns a fresh value addressing (obj, off)
func pointTo(m *graph.Memory, obj graph.ObjID, off int) graph.ValueID {
	v := m.NewValue()
	m.AddPT(graph.PTEdge{Value: v, Object: obj, Offset: off})
	return v
}

func store(m *graph.Memory, obj graph.ObjID, off, size int, v graph.ValueID) {
	m.AddHV(graph.HVEdge{Object: obj, Offset: off, Size: size, Value: v})
}

// link stores a fresh pointer to offset 0 of to in the pointer-sized field at off
func link(m *graph.Memory, from graph.ObjID, off int, to graph.ObjID) graph.ValueID {
	v := pointTo(m, to, 0)
	store(m, from, off, graph.PointerSize, v)
	return v
}

func fieldKeys(m *graph.Memory, obj graph.ObjID) []fieldKey {
	var keys []fieldKey
	for _, e := range m.HVs(graph.ObjectFilter(obj)) {
		keys = append(keys, keyOf(e))
	}
	return keys
}
