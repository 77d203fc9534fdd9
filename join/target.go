// ABOUTME: Target resolver joining the objects two pointer values address
// ABOUTME: Creates one destination object per matched pair and recurses into it

package join

import (
	"fmt"

	"github.com/prateek/heapshape/graph"
)

// targetResult is the outcome of resolving a pointer pair. When defined is
// false, recoverable tells whether only this pair is unjoinable.
type targetResult struct {
	value       graph.ValueID
	defined     bool
	recoverable bool
}

// joinTargets joins the targets of pointer values v1 and v2. An error is
// returned only for unrecoverable protocol violations.
func (j *joiner) joinTargets(v1, v2 graph.ValueID) (targetResult, error) {
	j.checkMappings()
	if d, ok := j.alreadyJoined(v1, v2); ok {
		return targetResult{value: d, defined: true}, nil
	}

	pt1, ok1 := j.smg1.PT(v1)
	pt2, ok2 := j.smg2.PT(v2)
	if !ok1 || !ok2 {
		panic(&graph.InvariantError{Msg: fmt.Sprintf("values #%d and #%d must both be pointers", v1, v2)})
	}

	// Cycle check: a pair already mapped onto the same destination object is
	// being (or has been) joined, so only the address is resolved.
	dst1, mapped1 := j.m1.Object(pt1.Object)
	dst2, mapped2 := j.m2.Object(pt2.Object)
	bothNull := pt1.Object == graph.NullObject && pt2.Object == graph.NullObject
	joined := bothNull || (mapped1 && mapped2 && dst1 == dst2)

	if pt1.Offset != pt2.Offset {
		if joined && !bothNull {
			return targetResult{}, fmt.Errorf("%w: pointers #%d and #%d address joined object %d at offsets %d and %d",
				ErrProtocolViolation, v1, v2, dst1, pt1.Offset, pt2.Offset)
		}
		return targetResult{recoverable: true}, nil
	}

	if joined {
		return targetResult{value: j.mapTargetAddress(v1, v2), defined: true}, nil
	}

	if !j.matchObjects(pt1.Object, pt2.Object) {
		return targetResult{recoverable: true}, nil
	}
	if mapped1 || mapped2 {
		return targetResult{}, fmt.Errorf("%w: only one of objects %d and %d is already joined",
			ErrProtocolViolation, pt1.Object, pt2.Object)
	}

	o1, o2 := j.smg1.Object(pt1.Object), j.smg2.Object(pt2.Object)
	joinedObj := j.dest.AddHeapObject(o1.Join(o2))
	if !j.smg1.IsValid(pt1.Object) {
		j.dest.SetValid(joinedObj, false)
	}
	j.m1.MapObject(pt1.Object, joinedObj)
	j.m2.MapObject(pt2.Object, joinedObj)
	j.log.Debug("joined targets", "obj1", o1, "obj2", o2, "dest", joinedObj)

	value := j.mapTargetAddress(v1, v2)
	ok, err := j.joinSubgraphs(pt1.Object, pt2.Object, joinedObj)
	if err != nil || !ok {
		return targetResult{}, err
	}
	return targetResult{value: value, defined: true}, nil
}

// mapTargetAddress returns the destination pointer for the joined target of
// v1 and v2, reusing an existing points-to edge with the same target and offset
func (j *joiner) mapTargetAddress(v1, v2 graph.ValueID) graph.ValueID {
	pt1, _ := j.smg1.PT(v1)
	target := graph.NullObject
	if pt1.Object != graph.NullObject {
		target, _ = j.m1.Object(pt1.Object)
	}

	for _, e := range j.dest.PTsTo(target) {
		if e.Offset == pt1.Offset {
			return e.Value
		}
	}

	value := j.dest.NewValue()
	j.dest.AddPT(graph.PTEdge{Value: value, Object: target, Offset: pt1.Offset})
	j.m1.MapValue(v1, value)
	j.m2.MapValue(v2, value)
	return value
}
