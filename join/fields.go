// ABOUTME: Field aligner making two equally sized objects expose the same field keys
// ABOUTME: Rewrites null runs and synthesises unconstrained values for one-sided fields

package join

import (
	"fmt"

	"github.com/prateek/heapshape/graph"
)

// fieldKey identifies a field independently of the value it holds
type fieldKey struct {
	offset int
	size   int
}

func keyOf(e graph.HVEdge) fieldKey {
	return fieldKey{offset: e.Offset, size: e.Size}
}

// AlignFields rewrites the fields of obj1 in smg1 and obj2 in smg2 so both
// objects end up with identical (offset, size) key sets. The graphs are
// modified in place; callers pass private copies. The returned status records
// which side lost provably null bytes.
func AlignFields(smg1, smg2 *graph.SMG, obj1, obj2 graph.ObjID) Status {
	o1, o2 := smg1.Object(obj1), smg2.Object(obj2)
	if o1.Size != o2.Size {
		panic(&graph.InvariantError{Msg: fmt.Sprintf("aligning objects of sizes %d and %d", o1.Size, o2.Size)})
	}

	null1, null2 := smg1.NullBytes(obj1), smg2.NullBytes(obj2)
	h1 := compatibleFields(smg1, smg2, obj1, obj2, null1, null2)
	h2 := compatibleFields(smg2, smg1, obj2, obj1, null2, null1)
	smg1.ReplaceObjectHVs(obj1, h1)
	smg2.ReplaceObjectHVs(obj2, h2)

	status := Equal
	if lostNull(null1, smg1.NullBytes(obj1)) {
		status = status.Combine(RightEntail)
	}
	if lostNull(null2, smg2.NullBytes(obj2)) {
		status = status.Combine(LeftEntail)
	}

	ext1 := missingFields(smg2, smg1, obj2, obj1)
	ext2 := missingFields(smg1, smg2, obj1, obj2)
	for _, e := range ext1 {
		smg1.AddHV(e)
	}
	for _, e := range ext2 {
		smg2.AddHV(e)
	}

	return status
}

// compatibleFields keeps the non-null fields of obj1, replaces its null
// fields by the maximal runs that are null on both sides, and adds a null
// field wherever obj2 holds a non-null pointer over a range obj1 has nulled
func compatibleFields(smg1, smg2 *graph.SMG, obj1, obj2 graph.ObjID, null1, null2 []bool) []graph.HVEdge {
	out := smg1.HVs(graph.ObjectFilter(obj1).WithoutValue(graph.NullValue))

	start := -1
	for i := 0; i <= len(null1); i++ {
		common := i < len(null1) && null1[i] && null2[i]
		switch {
		case common && start < 0:
			start = i
		case !common && start >= 0:
			out = append(out, graph.HVEdge{Object: obj1, Offset: start, Size: i - start, Value: graph.NullValue})
			start = -1
		}
	}

	for _, e := range smg2.HVs(graph.ObjectFilter(obj2).WithoutValue(graph.NullValue)) {
		if !smg2.IsPointer(e.Value) {
			continue
		}
		if len(smg1.HVs(graph.ObjectFilter(obj1).AtOffset(e.Offset).WithoutValue(graph.NullValue))) > 0 {
			continue
		}
		if covered(null1, e.Offset, e.Size) {
			out = append(out, graph.HVEdge{Object: obj1, Offset: e.Offset, Size: e.Size, Value: graph.NullValue})
		}
	}

	return out
}

// missingFields returns, for every non-null field of obj1 without a
// same-key counterpart on obj2, a field on obj2 holding a fresh value of smg2
func missingFields(smg1, smg2 *graph.SMG, obj1, obj2 graph.ObjID) []graph.HVEdge {
	var out []graph.HVEdge
	for _, e := range smg1.HVs(graph.ObjectFilter(obj1).WithoutValue(graph.NullValue)) {
		if len(smg2.HVs(graph.ObjectFilter(obj2).AtOffset(e.Offset).WithSize(e.Size))) > 0 {
			continue
		}
		out = append(out, graph.HVEdge{Object: obj2, Offset: e.Offset, Size: e.Size, Value: smg2.NewValue()})
	}
	return out
}

func lostNull(before, after []bool) bool {
	for i := range before {
		if before[i] && !after[i] {
			return true
		}
	}
	return false
}

func covered(bytes []bool, off, size int) bool {
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

// CheckAligned verifies the aligner postcondition: both objects expose the
// same field keys, and a null field is only paired with a field that is
// either null-covered or a pointer
func CheckAligned(smg1, smg2 *graph.SMG, obj1, obj2 graph.ObjID) error {
	fields1 := smg1.HVs(graph.ObjectFilter(obj1))
	fields2 := smg2.HVs(graph.ObjectFilter(obj2))
	if len(fields1) != len(fields2) {
		return fmt.Errorf("%w: objects expose %d and %d fields", ErrMisaligned, len(fields1), len(fields2))
	}
	if err := checkNullCounterparts(smg1, smg2, obj2, fields1); err != nil {
		return err
	}
	return checkNullCounterparts(smg2, smg1, obj1, fields2)
}

func checkNullCounterparts(smg1, smg2 *graph.SMG, obj2 graph.ObjID, fields1 []graph.HVEdge) error {
	null2 := smg2.NullBytes(obj2)
	keys2 := make(map[fieldKey]graph.ValueID)
	for _, e := range smg2.HVs(graph.ObjectFilter(obj2)) {
		keys2[keyOf(e)] = e.Value
	}
	for _, e := range fields1 {
		other, ok := keys2[keyOf(e)]
		if !ok {
			return fmt.Errorf("%w: field %v has no counterpart", ErrMisaligned, e)
		}
		if e.Value == graph.NullValue && !covered(null2, e.Offset, e.Size) && !smg2.IsPointer(other) {
			return fmt.Errorf("%w: null field %v paired with non-pointer #%d", ErrMisaligned, e, other)
		}
	}
	return nil
}
