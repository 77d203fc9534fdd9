// ABOUTME: Sub-graph joiner merging the fields of a matched object pair
// ABOUTME: Aligns the fields, then joins each value pair into the destination object

package join

import (
	"fmt"

	"github.com/prateek/heapshape/graph"
)

// joinSubgraphs joins obj1 and obj2 into the destination object dst.
// It returns false as soon as one field pair cannot be joined.
func (j *joiner) joinSubgraphs(obj1, obj2, dst graph.ObjID) (bool, error) {
	j.checkMappings()
	j.update(AlignFields(j.smg1.SMG, j.smg2.SMG, obj1, obj2))
	if j.checks {
		if err := CheckAligned(j.smg1.SMG, j.smg2.SMG, obj1, obj2); err != nil {
			return false, err
		}
	}

	for _, e1 := range j.smg1.HVs(graph.ObjectFilter(obj1)) {
		e2, ok := j.smg2.UniqueHV(graph.ObjectFilter(obj2).AtOffset(e1.Offset).WithSize(e1.Size))
		if !ok {
			return false, fmt.Errorf("%w: field %v has no counterpart", ErrMisaligned, e1)
		}

		value, ok, err := j.joinValues(e1.Value, e2.Value)
		if err != nil {
			return false, err
		}
		if !ok {
			j.log.Debug("field not joinable", "field", e1, "other", e2)
			return false, nil
		}
		j.dest.AddHV(graph.HVEdge{Object: dst, Offset: e1.Offset, Size: e1.Size, Value: value})
	}
	return true, nil
}
