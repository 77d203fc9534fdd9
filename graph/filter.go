// ABOUTME: Conjunctive filter over has-value edges
// ABOUTME: Each criterion is optional; an empty filter matches every edge

package graph

type valueMode uint8

const (
	anyValue valueMode = iota
	equalValue
	otherValue
)

// Filter selects has-value edges by object, offset, size and value
type Filter struct {
	object    ObjID
	hasObject bool
	offset    int
	hasOffset bool
	size      int
	hasSize   bool
	value     ValueID
	mode      valueMode
}

// ObjectFilter matches edges on obj
func ObjectFilter(obj ObjID) Filter {
	return Filter{object: obj, hasObject: true}
}

// ValueFilter matches edges holding v on any object
func ValueFilter(v ValueID) Filter {
	return Filter{value: v, mode: equalValue}
}

// AtOffset restricts the filter to fields starting at off
func (f Filter) AtOffset(off int) Filter {
	f.offset, f.hasOffset = off, true
	return f
}

// WithSize restricts the filter to fields of the given type size
func (f Filter) WithSize(size int) Filter {
	f.size, f.hasSize = size, true
	return f
}

// WithValue restricts the filter to fields holding v
func (f Filter) WithValue(v ValueID) Filter {
	f.value, f.mode = v, equalValue
	return f
}

// WithoutValue excludes fields holding v
func (f Filter) WithoutValue(v ValueID) Filter {
	f.value, f.mode = v, otherValue
	return f
}

// Holds reports whether e satisfies every criterion of f
func (f Filter) Holds(e HVEdge) bool {
	if f.hasObject && e.Object != f.object {
		return false
	}
	if f.hasOffset && e.Offset != f.offset {
		return false
	}
	if f.hasSize && e.Size != f.size {
		return false
	}
	switch f.mode {
	case equalValue:
		return e.Value == f.value
	case otherValue:
		return e.Value != f.value
	}
	return true
}
