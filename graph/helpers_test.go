// ABOUTME: Shared builders for graph tests
// ABOUTME: Creates heap objects and pointer fields with minimal ceremony

package graph

// link stores in field [off, off+8) of from a fresh pointer to offset 0 of to
func link(m *Memory, from ObjID, off int, to ObjID) ValueID {
	v := m.NewValue()
	m.AddPT(PTEdge{Value: v, Object: to})
	m.AddHV(HVEdge{Object: from, Offset: off, Size: PointerSize, Value: v})
	return v
}

func heapRegion(m *Memory, label string) ObjID {
	return m.AddHeapObject(NewRegion(16, label))
}
