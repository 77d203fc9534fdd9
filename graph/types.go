// ABOUTME: Core data types for the symbolic memory graph
// ABOUTME: Defines object kinds, shape parameters, and has-value/points-to edges

package graph

import "fmt"

// ObjID is an arena handle for an object within one graph
type ObjID uint64

// ValueID is an opaque symbolic value handle within one graph
type ValueID uint64

const (
	// NullObject is the distinguished object every null pointer targets
	NullObject ObjID = 0
	// NullValue is the only value allowed to point at NullObject
	NullValue ValueID = 0
)

// PointerSize is the byte width of a pointer field
const PointerSize = 8

// Kind tags the closed set of object variants
type Kind uint8

const (
	KindNull Kind = iota
	KindRegion
	KindList
	KindTree
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindRegion:
		return "region"
	case KindList:
		return "list"
	case KindTree:
		return "tree"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ListShape holds the parameters of a singly-linked list segment.
// Length counts the minimum number of elements the segment stands for.
type ListShape struct {
	Offset int // offset of the next pointer inside each element
	Length int
}

// TreeShape holds the parameters of a binary tree segment.
// Depth bounds the height of the summarised, non-empty tree.
type TreeShape struct {
	Left  int
	Right int
	Depth int
}

// Object is a memory region of Size bytes, concrete or abstract
type Object struct {
	ID    ObjID
	Kind  Kind
	Size  int
	Label string
	List  ListShape // valid when Kind == KindList
	Tree  TreeShape // valid when Kind == KindTree
}

// NewRegion returns a concrete region of the given size
func NewRegion(size int, label string) Object {
	return Object{Kind: KindRegion, Size: size, Label: label}
}

// NewList returns a list segment shaped after a prototype of the given size
func NewList(size, offset, length int) Object {
	return Object{Kind: KindList, Size: size, Label: "SLL", List: ListShape{Offset: offset, Length: length}}
}

// NewTree returns a tree segment; the two child offsets are normalised so Left < Right
func NewTree(size, left, right, depth int) Object {
	if left > right {
		left, right = right, left
	}
	return Object{Kind: KindTree, Size: size, Label: "TREE", Tree: TreeShape{Left: left, Right: right, Depth: depth}}
}

// IsNull reports whether o is the null object
func (o Object) IsNull() bool {
	return o.Kind == KindNull
}

// IsAbstract reports whether o summarises more than one concrete region
func (o Object) IsAbstract() bool {
	return o.Kind == KindList || o.Kind == KindTree
}

func (o Object) String() string {
	switch o.Kind {
	case KindNull:
		return "NULL"
	case KindList:
		return fmt.Sprintf("SLL(id=%d, size=%d, offset=%d, len=%d)", o.ID, o.Size, o.List.Offset, o.List.Length)
	case KindTree:
		return fmt.Sprintf("TREE(id=%d, size=%d, l=%d, r=%d, depth=%d)", o.ID, o.Size, o.Tree.Left, o.Tree.Right, o.Tree.Depth)
	}
	return fmt.Sprintf("REGION(id=%d, %s, %db)", o.ID, o.Label, o.Size)
}

// MatchGenericShape reports whether both objects are abstractions of the same kind
func (o Object) MatchGenericShape(other Object) bool {
	return o.IsAbstract() && o.Kind == other.Kind
}

// MatchSpecificShape additionally requires identical binding parameters and size
func (o Object) MatchSpecificShape(other Object) bool {
	if !o.MatchGenericShape(other) || o.Size != other.Size {
		return false
	}
	switch o.Kind {
	case KindList:
		return o.List.Offset == other.List.Offset
	case KindTree:
		return o.Tree.Left == other.Tree.Left && o.Tree.Right == other.Tree.Right
	}
	return false
}

// IsMoreGeneral reports whether o denotes a strictly larger set of concrete
// heaps than other. Comparing incompatible abstractions panics.
func (o Object) IsMoreGeneral(other Object) bool {
	if !o.IsAbstract() {
		return false
	}
	if !other.IsAbstract() {
		return true
	}
	if !o.MatchSpecificShape(other) {
		panic(invariantf("IsMoreGeneral on incompatible objects %v and %v", o, other))
	}
	if o.Kind == KindList {
		return o.List.Length < other.List.Length
	}
	return o.Tree.Depth > other.Tree.Depth
}

// Join returns an unregistered object covering both o and other.
// The result carries no ID; callers add it to a graph.
func (o Object) Join(other Object) Object {
	if o.IsNull() || other.IsNull() {
		panic(invariantf("join of null object with %v", other))
	}
	if !o.IsAbstract() {
		if other.IsAbstract() {
			return other.Join(o)
		}
		if o.Size != other.Size {
			panic(invariantf("join of regions with sizes %d and %d", o.Size, other.Size))
		}
		return o.unregistered()
	}
	if !other.IsAbstract() {
		return o.unregistered()
	}
	if !o.MatchSpecificShape(other) {
		panic(invariantf("join of incompatible abstractions %v and %v", o, other))
	}
	if o.IsMoreGeneral(other) || !other.IsMoreGeneral(o) {
		return o.unregistered()
	}
	return other.unregistered()
}

func (o Object) unregistered() Object {
	o.ID = 0
	return o
}

// HVEdge binds the bytes [Offset, Offset+Size) of Object to Value.
// Size doubles as the field type.
type HVEdge struct {
	Object ObjID
	Offset int
	Size   int
	Value  ValueID
}

// End returns the first byte past the field
func (e HVEdge) End() int {
	return e.Offset + e.Size
}

// Overlaps reports whether two fields on the same object share a byte
func (e HVEdge) Overlaps(other HVEdge) bool {
	return e.Object == other.Object && e.Offset < other.End() && other.Offset < e.End()
}

// SameField reports whether both edges describe the same offset and type
func (e HVEdge) SameField(other HVEdge) bool {
	return e.Offset == other.Offset && e.Size == other.Size
}

// ConsistentWith reports false when both edges bind the same field of the
// same object to different values
func (e HVEdge) ConsistentWith(other HVEdge) bool {
	if e.Object == other.Object && e.SameField(other) {
		return e.Value == other.Value
	}
	return true
}

func (e HVEdge) String() string {
	return fmt.Sprintf("%d[%d:%d]->#%d", e.Object, e.Offset, e.End(), e.Value)
}

// PTEdge records that Value addresses Object at Offset
type PTEdge struct {
	Value  ValueID
	Object ObjID
	Offset int
}

func (e PTEdge) String() string {
	return fmt.Sprintf("#%d->%d+%d", e.Value, e.Object, e.Offset)
}
