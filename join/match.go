// ABOUTME: Object matcher deciding whether two objects can be join partners
// ABOUTME: Rejects null/non-null pairs, inconsistent mappings and incompatible shapes

package join

import "github.com/prateek/heapshape/graph"

// matchObjects reports whether obj1 and obj2 can be joined into one
// destination object, recording the entailment implied by their shapes
func (j *joiner) matchObjects(obj1, obj2 graph.ObjID) bool {
	o1, o2 := j.smg1.Object(obj1), j.smg2.Object(obj2)

	if o1.IsNull() != o2.IsNull() {
		return false
	}

	dst1, mapped1 := j.m1.Object(obj1)
	dst2, mapped2 := j.m2.Object(obj2)
	if mapped1 && mapped2 && dst1 != dst2 {
		return false
	}
	if (mapped1 && j.m2.HasObjectTarget(dst1)) || (mapped2 && j.m1.HasObjectTarget(dst2)) {
		return false
	}

	if o1.Size != o2.Size || j.smg1.IsValid(obj1) != j.smg2.IsValid(obj2) {
		return false
	}

	if o1.IsAbstract() && o2.IsAbstract() && !(o1.MatchGenericShape(o2) && o1.MatchSpecificShape(o2)) {
		return false
	}

	if j.fieldsConflict(obj1, obj2) {
		return false
	}

	switch {
	case o1.IsMoreGeneral(o2):
		j.update(LeftEntail)
	case o2.IsMoreGeneral(o1):
		j.update(RightEntail)
	}
	return true
}

// fieldsConflict reports whether some field present on both objects holds
// values already mapped to different destination values
func (j *joiner) fieldsConflict(obj1, obj2 graph.ObjID) bool {
	for _, e1 := range j.smg1.HVs(graph.ObjectFilter(obj1)) {
		e2, ok := j.smg2.UniqueHV(graph.ObjectFilter(obj2).AtOffset(e1.Offset).WithSize(e1.Size))
		if !ok {
			continue
		}
		d1, ok1 := j.m1.Value(e1.Value)
		d2, ok2 := j.m2.Value(e2.Value)
		if ok1 && ok2 && d1 != d2 {
			return true
		}
	}
	return false
}
