// ABOUTME: Format-neutral graph description shared by the JSON and YAML codecs
// ABOUTME: Builds a verified memory graph from a description and describes a graph back

package heapdump

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/prateek/heapshape/graph"
)

// ErrInvalidDescription is wrapped by every error building a graph from a description
var ErrInvalidDescription = errors.New("invalid graph description")

// NullName names the null value and the null object in descriptions
const NullName = "null"

// Object kinds as written in descriptions
const (
	KindRegion = "region"
	KindList   = "list"
	KindTree   = "tree"
)

// Description is the document form of a memory graph. Objects and values are
// referenced by name; "null" is the null value.
type Description struct {
	Globals []Variable `json:"globals,omitempty" yaml:"globals,omitempty"`
	Frames  []Frame    `json:"frames,omitempty" yaml:"frames,omitempty"`
	Heap    []HeapObj  `json:"heap,omitempty" yaml:"heap,omitempty"`
	Values  []Value    `json:"values,omitempty" yaml:"values,omitempty"`
	Fields  []Field    `json:"fields,omitempty" yaml:"fields,omitempty"`
	Neq     [][]string `json:"neq,omitempty" yaml:"neq,omitempty"`
}

// Variable is a global or local region. Ref, when set, is the name other
// entries use for it; otherwise they use Name.
type Variable struct {
	Name string `json:"name" yaml:"name"`
	Ref  string `json:"ref,omitempty" yaml:"ref,omitempty"`
	Size int    `json:"size" yaml:"size"`
}

func (v Variable) ref() string {
	if v.Ref != "" {
		return v.Ref
	}
	return v.Name
}

// Frame is one stack frame, outermost first
type Frame struct {
	Function string     `json:"function" yaml:"function"`
	Locals   []Variable `json:"locals,omitempty" yaml:"locals,omitempty"`
	Return   *Variable  `json:"return,omitempty" yaml:"return,omitempty"`
}

// HeapObj is a heap allocation, concrete or abstract
type HeapObj struct {
	Name   string `json:"name" yaml:"name"`
	Kind   string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Size   int    `json:"size" yaml:"size"`
	Label  string `json:"label,omitempty" yaml:"label,omitempty"`
	Valid  *bool  `json:"valid,omitempty" yaml:"valid,omitempty"`
	Offset int    `json:"offset,omitempty" yaml:"offset,omitempty"`
	Length int    `json:"length,omitempty" yaml:"length,omitempty"`
	Left   int    `json:"left,omitempty" yaml:"left,omitempty"`
	Right  int    `json:"right,omitempty" yaml:"right,omitempty"`
	Depth  int    `json:"depth,omitempty" yaml:"depth,omitempty"`
}

// Value is a symbolic value, optionally an address or a known integer
type Value struct {
	Name     string  `json:"name" yaml:"name"`
	Explicit *int64  `json:"explicit,omitempty" yaml:"explicit,omitempty"`
	PointsTo *Target `json:"points_to,omitempty" yaml:"points_to,omitempty"`
}

// Target is the object and offset a value addresses
type Target struct {
	Object string `json:"object" yaml:"object"`
	Offset int    `json:"offset,omitempty" yaml:"offset,omitempty"`
}

// Field binds bytes [Offset, Offset+Size) of Object to Value
type Field struct {
	Object string `json:"object" yaml:"object"`
	Offset int    `json:"offset" yaml:"offset"`
	Size   int    `json:"size" yaml:"size"`
	Value  string `json:"value" yaml:"value"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDescription, fmt.Sprintf(format, args...))
}

// builder resolves names while a description is turned into a graph
type builder struct {
	m       *graph.Memory
	objects map[string]graph.ObjID
	values  map[string]graph.ValueID
}

func (b *builder) declare(name string, id graph.ObjID) {
	b.objects[name] = id
}

func (b *builder) checkFree(name string, size int) error {
	if name == "" {
		return invalid("object without a name")
	}
	if name == NullName {
		return invalid("object name %q is reserved", name)
	}
	if _, ok := b.objects[name]; ok {
		return invalid("object %q declared twice", name)
	}
	if size < 0 {
		return invalid("object %q has negative size %d", name, size)
	}
	return nil
}

func (b *builder) object(name string) (graph.ObjID, error) {
	id, ok := b.objects[name]
	if !ok {
		return 0, invalid("unknown object %q", name)
	}
	return id, nil
}

func (b *builder) value(name string) (graph.ValueID, error) {
	if name == NullName {
		return graph.NullValue, nil
	}
	v, ok := b.values[name]
	if !ok {
		return 0, invalid("unknown value %q", name)
	}
	return v, nil
}

// Build creates the memory graph described by d and verifies it
func (d *Description) Build() (*graph.Memory, error) {
	b := &builder{
		m:       graph.NewMemory(),
		objects: make(map[string]graph.ObjID),
		values:  make(map[string]graph.ValueID),
	}
	steps := []func(*Description) error{b.globals, b.frames, b.heap, b.valueSet, b.fields, b.neq}
	for _, step := range steps {
		if err := step(d); err != nil {
			return nil, err
		}
	}
	if err := b.m.Verify(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDescription, err)
	}
	return b.m, nil
}

func (b *builder) globals(d *Description) error {
	for _, v := range d.Globals {
		if err := b.checkFree(v.ref(), v.Size); err != nil {
			return err
		}
		if _, ok := b.m.Global(v.Name); ok {
			return invalid("global %q declared twice", v.Name)
		}
		b.declare(v.ref(), b.m.AddGlobal(v.Name, v.Size))
	}
	return nil
}

func (b *builder) frames(d *Description) error {
	for _, f := range d.Frames {
		frame := b.m.PushFrame(f.Function)
		for _, v := range f.Locals {
			if err := b.checkFree(v.ref(), v.Size); err != nil {
				return err
			}
			if _, ok := frame.Local(v.Name); ok {
				return invalid("local %q declared twice in %s", v.Name, f.Function)
			}
			b.declare(v.ref(), b.m.AddLocal(v.Name, v.Size))
		}
		if f.Return != nil {
			if err := b.checkFree(f.Return.ref(), f.Return.Size); err != nil {
				return err
			}
			b.declare(f.Return.ref(), b.m.AddReturn(f.Return.Size))
		}
	}
	return nil
}

func (b *builder) heap(d *Description) error {
	for _, h := range d.Heap {
		if err := b.checkFree(h.Name, h.Size); err != nil {
			return err
		}
		var o graph.Object
		switch h.Kind {
		case "", KindRegion:
			o = graph.NewRegion(h.Size, h.Name)
			if h.Label != "" {
				o.Label = h.Label
			}
		case KindList:
			o = graph.NewList(h.Size, h.Offset, h.Length)
		case KindTree:
			o = graph.NewTree(h.Size, h.Left, h.Right, h.Depth)
		default:
			return invalid("object %q has unknown kind %q", h.Name, h.Kind)
		}
		id := b.m.AddHeapObject(o)
		if h.Valid != nil && !*h.Valid {
			b.m.SetValid(id, false)
		}
		b.declare(h.Name, id)
	}
	return nil
}

func (b *builder) valueSet(d *Description) error {
	for _, v := range d.Values {
		if v.Name == "" || v.Name == NullName {
			return invalid("value name %q is reserved", v.Name)
		}
		if _, ok := b.values[v.Name]; ok {
			return invalid("value %q declared twice", v.Name)
		}
		b.values[v.Name] = b.m.NewValue()
	}
	for _, v := range d.Values {
		id := b.values[v.Name]
		if v.Explicit != nil {
			b.m.SetExplicit(id, *v.Explicit)
		}
		if v.PointsTo == nil {
			continue
		}
		obj, err := b.object(v.PointsTo.Object)
		if err != nil {
			return err
		}
		b.m.AddPT(graph.PTEdge{Value: id, Object: obj, Offset: v.PointsTo.Offset})
	}
	return nil
}

func (b *builder) fields(d *Description) error {
	for _, f := range d.Fields {
		obj, err := b.object(f.Object)
		if err != nil {
			return err
		}
		v, err := b.value(f.Value)
		if err != nil {
			return err
		}
		if f.Size <= 0 {
			return invalid("field %s+%d has size %d", f.Object, f.Offset, f.Size)
		}
		b.m.AddHV(graph.HVEdge{Object: obj, Offset: f.Offset, Size: f.Size, Value: v})
	}
	return nil
}

func (b *builder) neq(d *Description) error {
	for _, pair := range d.Neq {
		if len(pair) != 2 {
			return invalid("disequality %v is not a pair", pair)
		}
		x, err := b.value(pair[0])
		if err != nil {
			return err
		}
		y, err := b.value(pair[1])
		if err != nil {
			return err
		}
		if x == y {
			return invalid("value %q cannot differ from itself", pair[0])
		}
		b.m.AddNeq(x, y)
	}
	return nil
}

// Describe returns the description of m. Heap objects are named h<handle>
// and values v<handle>; variables keep their names unless two collide.
func Describe(m *graph.Memory) *Description {
	d := &Description{}
	names := map[graph.ObjID]string{graph.NullObject: NullName}
	taken := map[string]bool{NullName: true}
	claim := func(id graph.ObjID, want string) string {
		ref := want
		if taken[ref] {
			ref = want + "#" + strconv.FormatUint(uint64(id), 10)
		}
		taken[ref] = true
		names[id] = ref
		return ref
	}
	variable := func(id graph.ObjID, name string) Variable {
		v := Variable{Name: name, Size: m.Object(id).Size}
		if ref := claim(id, name); ref != name {
			v.Ref = ref
		}
		return v
	}

	for _, g := range m.GlobalNames() {
		id, _ := m.Global(g)
		d.Globals = append(d.Globals, variable(id, g))
	}
	for _, f := range m.Frames() {
		frame := Frame{Function: f.Function}
		for _, local := range f.LocalNames() {
			id, _ := f.Local(local)
			frame.Locals = append(frame.Locals, variable(id, local))
		}
		if id, ok := f.Return(); ok {
			ret := variable(id, "return "+f.Function)
			frame.Return = &ret
		}
		d.Frames = append(d.Frames, frame)
	}
	for _, id := range m.HeapObjects() {
		if id != graph.NullObject {
			d.Heap = append(d.Heap, describeObject(m, id, claim(id, heapName(id))))
		}
	}

	valueName := func(v graph.ValueID) string {
		if v == graph.NullValue {
			return NullName
		}
		return "v" + strconv.FormatUint(uint64(v), 10)
	}
	for _, v := range m.Values() {
		if v == graph.NullValue {
			continue
		}
		entry := Value{Name: valueName(v)}
		if x, ok := m.Explicit(v); ok {
			entry.Explicit = &x
		}
		if pt, ok := m.PT(v); ok {
			entry.PointsTo = &Target{Object: names[pt.Object], Offset: pt.Offset}
		}
		d.Values = append(d.Values, entry)

		for _, other := range m.Neq(v) {
			if v < other {
				d.Neq = append(d.Neq, []string{valueName(v), valueName(other)})
			}
		}
	}

	for _, e := range m.HVs(graph.Filter{}) {
		d.Fields = append(d.Fields, Field{Object: names[e.Object], Offset: e.Offset, Size: e.Size, Value: valueName(e.Value)})
	}
	return d
}

func heapName(id graph.ObjID) string {
	return "h" + strconv.FormatUint(uint64(id), 10)
}

func describeObject(m *graph.Memory, id graph.ObjID, name string) HeapObj {
	o := m.Object(id)
	h := HeapObj{Name: name, Size: o.Size}
	switch o.Kind {
	case graph.KindList:
		h.Kind, h.Offset, h.Length = KindList, o.List.Offset, o.List.Length
	case graph.KindTree:
		h.Kind, h.Left, h.Right, h.Depth = KindTree, o.Tree.Left, o.Tree.Right, o.Tree.Depth
	default:
		h.Kind, h.Label = KindRegion, o.Label
	}
	if !m.IsValid(id) {
		valid := false
		h.Valid = &valid
	}
	return h
}
