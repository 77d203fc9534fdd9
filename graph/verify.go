// ABOUTME: Consistency verifier for symbolic memory graphs and their environments
// ABOUTME: Collects every violated invariant into one joined error

package graph

import (
	"errors"
	"fmt"
)

func inconsistent(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInconsistent, fmt.Sprintf(format, args...))
}

// Verify checks the graph-level invariants of g
func Verify(g Graph) error {
	var errs []error

	nullCount := 0
	g.ForEachObject(func(o Object) {
		if o.Kind != KindNull {
			return
		}
		nullCount++
		if o.ID != NullObject || o.Size != 0 {
			errs = append(errs, inconsistent("null object %v must have handle 0 and size 0", o))
		}
		if g.IsValid(o.ID) {
			errs = append(errs, inconsistent("null object is valid"))
		}
	})
	if nullCount != 1 {
		errs = append(errs, inconsistent("found %d null objects", nullCount))
	}

	known := make(map[ValueID]bool)
	for _, v := range g.Values() {
		known[v] = true
	}
	if !known[NullValue] {
		errs = append(errs, inconsistent("null value missing"))
	}

	nullPointed := false
	for _, pt := range g.PTs() {
		if !known[pt.Value] {
			errs = append(errs, inconsistent("points-to edge %v from unknown value", pt))
		}
		if !g.ContainsObject(pt.Object) {
			errs = append(errs, inconsistent("points-to edge %v into unknown object", pt))
			continue
		}
		if pt.Value == NullValue {
			nullPointed = pt.Object == NullObject && pt.Offset == 0
		} else if pt.Object == NullObject {
			errs = append(errs, inconsistent("value %d other than null points to the null object", pt.Value))
		}
	}
	if !nullPointed {
		errs = append(errs, inconsistent("null value does not point to the null object at offset 0"))
	}

	fields := make(map[HVEdge]ValueID)
	for _, e := range g.HVs(Filter{}) {
		if !g.ContainsObject(e.Object) {
			errs = append(errs, inconsistent("field %v on unknown object", e))
			continue
		}
		o := g.Object(e.Object)
		switch {
		case e.Object == NullObject:
			errs = append(errs, inconsistent("field %v on the null object", e))
		case !g.IsValid(e.Object):
			errs = append(errs, inconsistent("field %v on invalid object %v", e, o))
		case e.Size <= 0 || e.Offset < 0 || e.Offset > o.Size-e.Size:
			errs = append(errs, inconsistent("field %v exceeds object %v", e, o))
		}
		if !known[e.Value] {
			errs = append(errs, inconsistent("field %v holds unknown value", e))
		}
		key := e
		key.Value = 0
		if v, ok := fields[key]; ok && v != e.Value {
			errs = append(errs, inconsistent("field %v also holds value %d", e, v))
		}
		fields[key] = e.Value
	}

	g.ForEachObject(func(o Object) {
		if o.IsAbstract() && !g.IsValid(o.ID) {
			errs = append(errs, inconsistent("abstract object %v is invalid", o))
		}
	})

	return errors.Join(errs...)
}

// Verify checks the graph invariants plus the environment partition:
// heap, global and stack objects are disjoint and together cover the graph
func (m *Memory) Verify() error {
	errs := []error{Verify(m.SMG)}

	owner := make(map[ObjID]string)
	claim := func(id ObjID, who string) {
		if prev, ok := owner[id]; ok {
			errs = append(errs, inconsistent("object %d owned by both %s and %s", id, prev, who))
			return
		}
		owner[id] = who
		if !m.ContainsObject(id) {
			errs = append(errs, inconsistent("%s names missing object %d", who, id))
		}
	}

	for _, id := range m.HeapObjects() {
		claim(id, "heap")
	}
	if !m.IsHeapObject(NullObject) {
		errs = append(errs, inconsistent("null object missing from the heap"))
	}
	for _, name := range m.GlobalNames() {
		id := m.globals[name]
		claim(id, "global "+name)
		if m.ContainsObject(id) && m.Object(id).Label != name {
			errs = append(errs, inconsistent("global %q labels its region %q", name, m.Object(id).Label))
		}
	}
	for _, f := range m.frames {
		for _, id := range f.Objects() {
			claim(id, "frame "+f.Function)
		}
	}
	for _, id := range m.Objects() {
		if _, ok := owner[id]; !ok {
			errs = append(errs, inconsistent("object %v is neither heap, global nor stack", m.Object(id)))
		}
	}

	return errors.Join(errs...)
}
