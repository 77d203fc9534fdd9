// ABOUTME: Program memory environment layered over the symbolic memory graph
// ABOUTME: Tracks global variables, the stack of frames and the heap object set

package graph

import (
	"fmt"
	"maps"
	"slices"
)

// Frame is one activation record on the stack
type Frame struct {
	Function string
	locals   map[string]ObjID
	order    []string
	ret      ObjID
	hasRet   bool
}

// NewFrame creates an empty frame for the named function
func NewFrame(function string) *Frame {
	return &Frame{Function: function, locals: make(map[string]ObjID)}
}

// Local returns the region of a local variable
func (f *Frame) Local(name string) (ObjID, bool) {
	id, ok := f.locals[name]
	return id, ok
}

// LocalNames returns the local variable names in declaration order
func (f *Frame) LocalNames() []string {
	return slices.Clone(f.order)
}

// Return returns the region holding the frame's return value, if any
func (f *Frame) Return() (ObjID, bool) {
	return f.ret, f.hasRet
}

// Objects returns every region owned by the frame
func (f *Frame) Objects() []ObjID {
	out := make([]ObjID, 0, len(f.order)+1)
	for _, name := range f.order {
		out = append(out, f.locals[name])
	}
	if f.hasRet {
		out = append(out, f.ret)
	}
	return out
}

func (f *Frame) clone() *Frame {
	c := *f
	c.locals = maps.Clone(f.locals)
	c.order = slices.Clone(f.order)
	return &c
}

// Memory is a graph plus the naming environment that roots it
type Memory struct {
	*SMG
	globals map[string]ObjID
	frames  []*Frame // frames[0] is the outermost
	heap    map[ObjID]struct{}
	leaked  bool
	strict  bool
}

// NewMemory creates an empty environment; the heap starts with the null object
func NewMemory() *Memory {
	return &Memory{
		SMG:     New(),
		globals: make(map[string]ObjID),
		heap:    map[ObjID]struct{}{NullObject: {}},
	}
}

// SetStrict toggles verification after every environment mutation
func (m *Memory) SetStrict(strict bool) {
	m.strict = strict
}

// Strict reports whether environment mutations are verified
func (m *Memory) Strict() bool {
	return m.strict
}

// AddGlobal creates a region for a global variable
func (m *Memory) AddGlobal(name string, size int) ObjID {
	if _, ok := m.globals[name]; ok {
		panic(invariantf("global %q already declared", name))
	}
	id := m.AddObject(NewRegion(size, name))
	m.globals[name] = id
	m.check()
	return id
}

// Global returns the region of a global variable
func (m *Memory) Global(name string) (ObjID, bool) {
	id, ok := m.globals[name]
	return id, ok
}

// GlobalNames returns the global variable names in sorted order
func (m *Memory) GlobalNames() []string {
	return slices.Sorted(maps.Keys(m.globals))
}

// PushFrame opens a new innermost frame
func (m *Memory) PushFrame(function string) *Frame {
	f := NewFrame(function)
	m.frames = append(m.frames, f)
	return f
}

// AddLocal creates a region for a local variable in the innermost frame
func (m *Memory) AddLocal(name string, size int) ObjID {
	f := m.top()
	if _, ok := f.locals[name]; ok {
		panic(invariantf("local %q already declared in %s", name, f.Function))
	}
	id := m.AddObject(NewRegion(size, name))
	f.locals[name] = id
	f.order = append(f.order, name)
	m.check()
	return id
}

// AddReturn creates the return-value region of the innermost frame
func (m *Memory) AddReturn(size int) ObjID {
	f := m.top()
	if f.hasRet {
		panic(invariantf("frame %s already has a return object", f.Function))
	}
	f.ret = m.AddObject(NewRegion(size, "return "+f.Function))
	f.hasRet = true
	m.check()
	return f.ret
}

// PopFrame drops the innermost frame together with its regions and their edges
func (m *Memory) PopFrame() {
	f := m.top()
	m.frames = m.frames[:len(m.frames)-1]
	for _, id := range f.Objects() {
		m.RemoveObjectAndEdges(id)
	}
	m.check()
}

// Frames returns the stack, outermost frame first
func (m *Memory) Frames() []*Frame {
	return slices.Clone(m.frames)
}

// AddHeapObject registers o as a heap allocation
func (m *Memory) AddHeapObject(o Object) ObjID {
	id := m.AddObject(o)
	m.heap[id] = struct{}{}
	m.check()
	return id
}

// AdoptHeapObject marks an existing object as a heap allocation.
// In strict mode adopting an object already on the heap panics.
func (m *Memory) AdoptHeapObject(id ObjID) {
	m.mustObject(id)
	if _, ok := m.heap[id]; ok && m.strict {
		panic(invariantf("heap object %d added twice", id))
	}
	m.heap[id] = struct{}{}
	m.check()
}

// RemoveHeapObject deletes a heap object and every edge that references it
func (m *Memory) RemoveHeapObject(id ObjID) {
	if !m.IsHeapObject(id) || id == NullObject {
		panic(invariantf("object %d is not a removable heap object", id))
	}
	delete(m.heap, id)
	m.RemoveObjectAndEdges(id)
}

// IsHeapObject reports whether id is on the heap
func (m *Memory) IsHeapObject(id ObjID) bool {
	_, ok := m.heap[id]
	return ok
}

// HeapObjects returns the heap set, null object included, in handle order
func (m *Memory) HeapObjects() []ObjID {
	return slices.Sorted(maps.Keys(m.heap))
}

// HasLeaks reports whether pruning ever dropped a valid object
func (m *Memory) HasLeaks() bool {
	return m.leaked
}

// Free releases the heap allocation addressed by (id, offset).
// Freed memory keeps its object but loses validity and contents.
func (m *Memory) Free(id ObjID, offset int) error {
	if !m.ContainsObject(id) || !m.IsHeapObject(id) {
		return fmt.Errorf("%w: object %d is not on the heap", ErrInvalidFree, id)
	}
	if id == NullObject {
		return nil
	}
	if offset != 0 {
		return fmt.Errorf("%w: offset %d into object %d", ErrInvalidFree, offset, id)
	}
	if !m.IsValid(id) {
		return fmt.Errorf("%w: object %d already freed", ErrInvalidFree, id)
	}
	m.SetValid(id, false)
	m.ReplaceObjectHVs(id, nil)
	m.check()
	return nil
}

// ReadValue returns the value stored in field [offset, offset+size) of obj.
// A provably null range reads as NullValue; anything else is unknown.
func (m *Memory) ReadValue(obj ObjID, offset, size int) (ValueID, bool) {
	if e, ok := m.UniqueHV(ObjectFilter(obj).AtOffset(offset).WithSize(size)); ok {
		return e.Value, true
	}
	if m.IsNullCovered(obj, offset, size) {
		return NullValue, true
	}
	return 0, false
}

// Address returns the value pointing at (obj, offset), if one exists
func (m *Memory) Address(obj ObjID, offset int) (ValueID, bool) {
	for _, e := range m.PTsTo(obj) {
		if e.Offset == offset {
			return e.Value, true
		}
	}
	return 0, false
}

// VisibleObject resolves a variable name in the innermost frame, then among globals
func (m *Memory) VisibleObject(name string) (ObjID, bool) {
	if len(m.frames) > 0 {
		if id, ok := m.frames[len(m.frames)-1].Local(name); ok {
			return id, true
		}
	}
	return m.Global(name)
}

// IsUnequal reports whether two values are known to differ
func (m *Memory) IsUnequal(a, b ValueID) bool {
	if a == b {
		return false
	}
	if m.IsNeq(a, b) {
		return true
	}
	pa, okA := m.PT(a)
	pb, okB := m.PT(b)
	return okA && okB && (pa.Object != pb.Object || pa.Offset != pb.Offset)
}

// Roots returns the global and stack regions reachability starts from
func (m *Memory) Roots() []ObjID {
	roots := make([]ObjID, 0, len(m.globals))
	for _, name := range m.GlobalNames() {
		roots = append(roots, m.globals[name])
	}
	for _, f := range m.frames {
		roots = append(roots, f.Objects()...)
	}
	return roots
}

// Copy returns a deep copy of the graph and its environment
func (m *Memory) Copy() *Memory {
	c := &Memory{
		SMG:     m.SMG.Copy(),
		globals: maps.Clone(m.globals),
		frames:  make([]*Frame, len(m.frames)),
		heap:    maps.Clone(m.heap),
		leaked:  m.leaked,
		strict:  m.strict,
	}
	for i, f := range m.frames {
		c.frames[i] = f.clone()
	}
	return c
}

func (m *Memory) top() *Frame {
	if len(m.frames) == 0 {
		panic(invariantf("no stack frame"))
	}
	return m.frames[len(m.frames)-1]
}

func (m *Memory) check() {
	if !m.strict {
		return
	}
	if err := m.Verify(); err != nil {
		panic(invariantf("%v", err))
	}
}
