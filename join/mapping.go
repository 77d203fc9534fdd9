// ABOUTME: Node mappings from one input graph into the destination graph
// ABOUTME: Keys are source handles, targets are destination handles, both tied to graph identities

package join

import (
	"maps"

	"github.com/google/uuid"

	"github.com/prateek/heapshape/graph"
)

// Mapping records which destination object and value each source node became.
// A mapping is private to one join invocation.
type Mapping struct {
	source  uuid.UUID
	dest    uuid.UUID
	objects map[graph.ObjID]graph.ObjID
	values  map[graph.ValueID]graph.ValueID
	objUses map[graph.ObjID]int
	valUses map[graph.ValueID]int
}

// NewMapping creates an empty mapping from source into dest
func NewMapping(source, dest graph.Graph) *Mapping {
	return &Mapping{
		source:  source.ID(),
		dest:    dest.ID(),
		objects: make(map[graph.ObjID]graph.ObjID),
		values:  make(map[graph.ValueID]graph.ValueID),
		objUses: make(map[graph.ObjID]int),
		valUses: make(map[graph.ValueID]int),
	}
}

// Connects reports whether the mapping was built for this pair of graphs
func (m *Mapping) Connects(source, dest graph.Graph) bool {
	return m.source == source.ID() && m.dest == dest.ID()
}

// Object returns the destination object src was mapped to
func (m *Mapping) Object(src graph.ObjID) (graph.ObjID, bool) {
	d, ok := m.objects[src]
	return d, ok
}

// MapObject maps src onto dst, replacing any previous target
func (m *Mapping) MapObject(src, dst graph.ObjID) {
	if old, ok := m.objects[src]; ok {
		m.releaseObject(old)
	}
	m.objects[src] = dst
	m.objUses[dst]++
}

// HasObjectTarget reports whether some source object maps onto dst
func (m *Mapping) HasObjectTarget(dst graph.ObjID) bool {
	return m.objUses[dst] > 0
}

// Value returns the destination value src was mapped to
func (m *Mapping) Value(src graph.ValueID) (graph.ValueID, bool) {
	d, ok := m.values[src]
	return d, ok
}

// HasValue reports whether src is already mapped
func (m *Mapping) HasValue(src graph.ValueID) bool {
	_, ok := m.values[src]
	return ok
}

// MapValue maps src onto dst, replacing any previous target
func (m *Mapping) MapValue(src, dst graph.ValueID) {
	if old, ok := m.values[src]; ok {
		m.releaseValue(old)
	}
	m.values[src] = dst
	m.valUses[dst]++
}

// HasValueTarget reports whether some source value maps onto dst
func (m *Mapping) HasValueTarget(dst graph.ValueID) bool {
	return m.valUses[dst] > 0
}

// Copy returns an independent mapping with the same entries
func (m *Mapping) Copy() *Mapping {
	return &Mapping{
		source:  m.source,
		dest:    m.dest,
		objects: maps.Clone(m.objects),
		values:  maps.Clone(m.values),
		objUses: maps.Clone(m.objUses),
		valUses: maps.Clone(m.valUses),
	}
}

func (m *Mapping) releaseObject(dst graph.ObjID) {
	if m.objUses[dst]--; m.objUses[dst] <= 0 {
		delete(m.objUses, dst)
	}
}

func (m *Mapping) releaseValue(dst graph.ValueID) {
	if m.valUses[dst]--; m.valUses[dst] <= 0 {
		delete(m.valUses, dst)
	}
}
