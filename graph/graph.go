// ABOUTME: Symbolic memory graph arena and its mutation/query API
// ABOUTME: Objects and values are addressed by stable integer handles owned by each graph

package graph

import (
	"cmp"
	"maps"
	"slices"

	"github.com/google/uuid"
)

// Graph is the read-only view of a symbolic memory graph
type Graph interface {
	// ID identifies the arena the handles belong to
	ID() uuid.UUID

	// Object returns the object with the given handle
	Object(id ObjID) Object

	// ContainsObject reports whether the handle is live
	ContainsObject(id ObjID) bool

	// ForEachObject iterates over all objects in handle order
	ForEachObject(fn func(Object))

	// NumObjects returns the total number of objects, null included
	NumObjects() int

	// IsValid reports the validity flag of an object
	IsValid(id ObjID) bool

	// Values returns every value handle in order
	Values() []ValueID

	// HVs returns the has-value edges satisfying f
	HVs(f Filter) []HVEdge

	// PTs returns every points-to edge
	PTs() []PTEdge

	// Explicit returns the concrete integer recorded for v, if any
	Explicit(v ValueID) (int64, bool)

	// Neq returns the values known to differ from v
	Neq(v ValueID) []ValueID
}

// SMG is an in-memory symbolic memory graph
type SMG struct {
	id       uuid.UUID
	objects  map[ObjID]Object
	valid    map[ObjID]bool
	values   map[ValueID]struct{}
	hv       map[ObjID]map[HVEdge]struct{}
	pt       map[ValueID]PTEdge
	neq      map[ValueID]map[ValueID]struct{}
	explicit map[ValueID]int64
	nextObj  ObjID
	nextVal  ValueID
}

var _ Graph = (*SMG)(nil)

// New creates a graph holding only the null object and the null value
func New() *SMG {
	g := &SMG{
		id:       uuid.New(),
		objects:  make(map[ObjID]Object),
		valid:    make(map[ObjID]bool),
		values:   make(map[ValueID]struct{}),
		hv:       make(map[ObjID]map[HVEdge]struct{}),
		pt:       make(map[ValueID]PTEdge),
		neq:      make(map[ValueID]map[ValueID]struct{}),
		explicit: make(map[ValueID]int64),
		nextObj:  NullObject + 1,
		nextVal:  NullValue + 1,
	}
	g.objects[NullObject] = Object{ID: NullObject, Kind: KindNull, Label: "NULL"}
	g.valid[NullObject] = false
	g.values[NullValue] = struct{}{}
	g.pt[NullValue] = PTEdge{Value: NullValue, Object: NullObject}
	return g
}

// ID identifies this arena; copies get a fresh identity
func (g *SMG) ID() uuid.UUID {
	return g.id
}

// AddObject registers o under a fresh handle, marks it valid and returns the handle
func (g *SMG) AddObject(o Object) ObjID {
	if o.Kind == KindNull {
		panic(invariantf("only one null object may exist"))
	}
	id := g.nextObj
	g.nextObj++
	o.ID = id
	g.objects[id] = o
	g.valid[id] = true
	return id
}

// UpdateObject replaces the stored parameters of an existing object
func (g *SMG) UpdateObject(o Object) {
	old := g.Object(o.ID)
	if old.Kind != o.Kind || old.Kind == KindNull {
		panic(invariantf("cannot change kind of object %d from %v to %v", o.ID, old.Kind, o.Kind))
	}
	g.objects[o.ID] = o
}

// RemoveObject detaches an object without touching its edges
func (g *SMG) RemoveObject(id ObjID) {
	g.mustObject(id)
	if id == NullObject {
		panic(invariantf("the null object cannot be removed"))
	}
	delete(g.objects, id)
	delete(g.valid, id)
}

// RemoveObjectAndEdges removes an object, its fields and every points-to edge aimed at it.
// Values that pointed at the object stay in the graph.
func (g *SMG) RemoveObjectAndEdges(id ObjID) {
	g.mustObject(id)
	delete(g.hv, id)
	for v, e := range g.pt {
		if e.Object == id {
			delete(g.pt, v)
		}
	}
	g.RemoveObject(id)
}

// ContainsObject reports whether the handle is live in this graph
func (g *SMG) ContainsObject(id ObjID) bool {
	_, ok := g.objects[id]
	return ok
}

// Object returns the object stored under id
func (g *SMG) Object(id ObjID) Object {
	return g.mustObject(id)
}

// NumObjects returns the total number of objects, null included
func (g *SMG) NumObjects() int {
	return len(g.objects)
}

// Objects returns all object handles in ascending order
func (g *SMG) Objects() []ObjID {
	return slices.Sorted(maps.Keys(g.objects))
}

// ForEachObject iterates over all objects in handle order
func (g *SMG) ForEachObject(fn func(Object)) {
	for _, id := range g.Objects() {
		fn(g.objects[id])
	}
}

// NewValue allocates a fresh value handle
func (g *SMG) NewValue() ValueID {
	v := g.nextVal
	g.nextVal++
	g.values[v] = struct{}{}
	return v
}

// ContainsValue reports whether v is live in this graph
func (g *SMG) ContainsValue(v ValueID) bool {
	_, ok := g.values[v]
	return ok
}

// RemoveValue detaches v along with its disequalities and explicit value.
// Edges that mention v must be removed by the caller first.
func (g *SMG) RemoveValue(v ValueID) {
	g.mustValue(v)
	if v == NullValue {
		panic(invariantf("the null value cannot be removed"))
	}
	for other := range g.neq[v] {
		delete(g.neq[other], v)
		if len(g.neq[other]) == 0 {
			delete(g.neq, other)
		}
	}
	delete(g.neq, v)
	delete(g.explicit, v)
	delete(g.values, v)
}

// Values returns every value handle in order
func (g *SMG) Values() []ValueID {
	return slices.Sorted(maps.Keys(g.values))
}

// AddHV adds a has-value edge; both endpoints must already exist
func (g *SMG) AddHV(e HVEdge) {
	g.mustObject(e.Object)
	g.mustValue(e.Value)
	fields, ok := g.hv[e.Object]
	if !ok {
		fields = make(map[HVEdge]struct{})
		g.hv[e.Object] = fields
	}
	fields[e] = struct{}{}
}

// RemoveHV removes a has-value edge if present
func (g *SMG) RemoveHV(e HVEdge) {
	fields := g.hv[e.Object]
	delete(fields, e)
	if len(fields) == 0 {
		delete(g.hv, e.Object)
	}
}

// ReplaceObjectHVs swaps the entire field set of obj for edges
func (g *SMG) ReplaceObjectHVs(obj ObjID, edges []HVEdge) {
	g.mustObject(obj)
	delete(g.hv, obj)
	for _, e := range edges {
		if e.Object != obj {
			panic(invariantf("edge %v does not belong to object %d", e, obj))
		}
		g.AddHV(e)
	}
}

// HVs returns the has-value edges satisfying f, sorted by object, offset, size and value
func (g *SMG) HVs(f Filter) []HVEdge {
	var out []HVEdge
	collect := func(fields map[HVEdge]struct{}) {
		for e := range fields {
			if f.Holds(e) {
				out = append(out, e)
			}
		}
	}
	if f.hasObject {
		collect(g.hv[f.object])
	} else {
		for _, fields := range g.hv {
			collect(fields)
		}
	}
	slices.SortFunc(out, compareHV)
	return out
}

// UniqueHV returns the single edge satisfying f. More than one match panics.
func (g *SMG) UniqueHV(f Filter) (HVEdge, bool) {
	edges := g.HVs(f)
	switch len(edges) {
	case 0:
		return HVEdge{}, false
	case 1:
		return edges[0], true
	}
	panic(invariantf("expected a unique has-value edge, found %v", edges))
}

// AddPT records that e.Value addresses e.Object. A value holds at most one edge.
func (g *SMG) AddPT(e PTEdge) {
	g.mustValue(e.Value)
	g.mustObject(e.Object)
	if old, ok := g.pt[e.Value]; ok && old != e {
		panic(invariantf("value %d already points to %v", e.Value, old))
	}
	g.pt[e.Value] = e
}

// RemovePT drops the points-to edge of v if present
func (g *SMG) RemovePT(v ValueID) {
	if v == NullValue {
		panic(invariantf("the null value must keep pointing at the null object"))
	}
	delete(g.pt, v)
}

// PT returns the points-to edge of v
func (g *SMG) PT(v ValueID) (PTEdge, bool) {
	e, ok := g.pt[v]
	return e, ok
}

// IsPointer reports whether v has a points-to edge
func (g *SMG) IsPointer(v ValueID) bool {
	_, ok := g.pt[v]
	return ok
}

// PTs returns every points-to edge ordered by value
func (g *SMG) PTs() []PTEdge {
	out := slices.Collect(maps.Values(g.pt))
	slices.SortFunc(out, func(a, b PTEdge) int { return cmp.Compare(a.Value, b.Value) })
	return out
}

// PTsTo returns the points-to edges aimed at obj ordered by value
func (g *SMG) PTsTo(obj ObjID) []PTEdge {
	var out []PTEdge
	for _, e := range g.PTs() {
		if e.Object == obj {
			out = append(out, e)
		}
	}
	return out
}

// SetValid sets the validity flag of an existing object
func (g *SMG) SetValid(id ObjID, valid bool) {
	g.mustObject(id)
	if id == NullObject && valid {
		panic(invariantf("the null object is permanently invalid"))
	}
	g.valid[id] = valid
}

// IsValid reports the validity flag of an object
func (g *SMG) IsValid(id ObjID) bool {
	g.mustObject(id)
	return g.valid[id]
}

// NullBytes marks every byte of obj covered by a field holding the null value
func (g *SMG) NullBytes(obj ObjID) []bool {
	o := g.mustObject(obj)
	bytes := make([]bool, o.Size)
	for e := range g.hv[obj] {
		if e.Value != NullValue {
			continue
		}
		for i := max(e.Offset, 0); i < e.End() && i < o.Size; i++ {
			bytes[i] = true
		}
	}
	return bytes
}

// IsNullCovered reports whether every byte of [off, off+size) of obj is provably null
func (g *SMG) IsNullCovered(obj ObjID, off, size int) bool {
	bytes := g.NullBytes(obj)
	if off < 0 || off+size > len(bytes) {
		return false
	}
	for i := off; i < off+size; i++ {
		if !bytes[i] {
			return false
		}
	}
	return true
}

// MergeValues folds drop into keep: fields holding drop now hold keep and
// drop's disequalities move to keep. Merging with the null value always keeps
// NullValue as the survivor.
func (g *SMG) MergeValues(keep, drop ValueID) {
	g.mustValue(keep)
	g.mustValue(drop)
	if drop == NullValue {
		keep, drop = drop, keep
	}
	if keep == drop {
		return
	}
	for _, fields := range g.hv {
		for e := range fields {
			if e.Value == drop {
				delete(fields, e)
				e.Value = keep
				fields[e] = struct{}{}
			}
		}
	}
	for other := range g.neq[drop] {
		if other != keep {
			g.AddNeq(keep, other)
		}
	}
	delete(g.pt, drop)
	g.RemoveValue(drop)
}

// AddNeq records that a and b are known to differ
func (g *SMG) AddNeq(a, b ValueID) {
	g.mustValue(a)
	g.mustValue(b)
	if a == b {
		panic(invariantf("value %d cannot differ from itself", a))
	}
	g.addNeqHalf(a, b)
	g.addNeqHalf(b, a)
}

func (g *SMG) addNeqHalf(a, b ValueID) {
	set, ok := g.neq[a]
	if !ok {
		set = make(map[ValueID]struct{})
		g.neq[a] = set
	}
	set[b] = struct{}{}
}

// IsNeq reports whether a and b are known to differ
func (g *SMG) IsNeq(a, b ValueID) bool {
	_, ok := g.neq[a][b]
	return ok
}

// Neq returns the values known to differ from v
func (g *SMG) Neq(v ValueID) []ValueID {
	return slices.Sorted(maps.Keys(g.neq[v]))
}

// Explicit returns the concrete integer recorded for v, if any
func (g *SMG) Explicit(v ValueID) (int64, bool) {
	x, ok := g.explicit[v]
	return x, ok
}

// SetExplicit records a concrete integer for v
func (g *SMG) SetExplicit(v ValueID, x int64) {
	g.mustValue(v)
	g.explicit[v] = x
}

// ClearExplicit forgets the concrete integer of v
func (g *SMG) ClearExplicit(v ValueID) {
	delete(g.explicit, v)
}

// Copy returns a deep copy with a new identity. Handles stay valid in the copy
// and fresh handles never collide with the original's.
func (g *SMG) Copy() *SMG {
	c := &SMG{
		id:       uuid.New(),
		objects:  maps.Clone(g.objects),
		valid:    maps.Clone(g.valid),
		values:   maps.Clone(g.values),
		hv:       make(map[ObjID]map[HVEdge]struct{}, len(g.hv)),
		pt:       maps.Clone(g.pt),
		neq:      make(map[ValueID]map[ValueID]struct{}, len(g.neq)),
		explicit: maps.Clone(g.explicit),
		nextObj:  g.nextObj,
		nextVal:  g.nextVal,
	}
	for obj, fields := range g.hv {
		c.hv[obj] = maps.Clone(fields)
	}
	for v, set := range g.neq {
		c.neq[v] = maps.Clone(set)
	}
	return c
}

// IsIdentical reports whether both graphs hold the same objects, values and edges
// under the same handles
func (g *SMG) IsIdentical(o *SMG) bool {
	if !maps.Equal(g.objects, o.objects) || !maps.Equal(g.valid, o.valid) ||
		!maps.Equal(g.values, o.values) || !maps.Equal(g.pt, o.pt) ||
		!maps.Equal(g.explicit, o.explicit) {
		return false
	}
	if !maps.EqualFunc(g.hv, o.hv, maps.Equal[map[HVEdge]struct{}, map[HVEdge]struct{}]) {
		return false
	}
	return maps.EqualFunc(g.neq, o.neq, maps.Equal[map[ValueID]struct{}, map[ValueID]struct{}])
}

func (g *SMG) mustObject(id ObjID) Object {
	o, ok := g.objects[id]
	if !ok {
		panic(invariantf("object %d is not in the graph", id))
	}
	return o
}

func (g *SMG) mustValue(v ValueID) {
	if _, ok := g.values[v]; !ok {
		panic(invariantf("value %d is not in the graph", v))
	}
}

func compareHV(a, b HVEdge) int {
	return cmp.Or(
		cmp.Compare(a.Object, b.Object),
		cmp.Compare(a.Offset, b.Offset),
		cmp.Compare(a.Size, b.Size),
		cmp.Compare(a.Value, b.Value),
	)
}
