// ABOUTME: Value joiner pairing the values of one aligned field
// ABOUTME: Scalars get a fresh destination value; pointers defer to the target resolver

package join

import "github.com/prateek/heapshape/graph"

// joinValues returns the destination value for the pair (v1, v2).
// ok is false when the pair cannot be joined.
func (j *joiner) joinValues(v1, v2 graph.ValueID) (graph.ValueID, bool, error) {
	if d, ok := j.alreadyJoined(v1, v2); ok {
		return d, true, nil
	}

	ptr1, ptr2 := j.smg1.IsPointer(v1), j.smg2.IsPointer(v2)
	switch {
	case !ptr1 && !ptr2:
		return j.joinScalars(v1, v2)
	case !ptr1 || !ptr2:
		j.log.Debug("pointer joined with non-pointer", "v1", v1, "v2", v2)
		return 0, false, nil
	}

	res, err := j.joinTargets(v1, v2)
	if err != nil || !res.defined {
		return 0, false, err
	}
	return res.value, true, nil
}

func (j *joiner) alreadyJoined(v1, v2 graph.ValueID) (graph.ValueID, bool) {
	d1, ok1 := j.m1.Value(v1)
	d2, ok2 := j.m2.Value(v2)
	return d1, ok1 && ok2 && d1 == d2
}

func (j *joiner) joinScalars(v1, v2 graph.ValueID) (graph.ValueID, bool, error) {
	if j.m1.HasValue(v1) || j.m2.HasValue(v2) {
		return 0, false, nil
	}

	d := j.dest.NewValue()
	j.m1.MapValue(v1, d)
	j.m2.MapValue(v2, d)

	x1, known1 := j.smg1.Explicit(v1)
	x2, known2 := j.smg2.Explicit(v2)
	switch {
	case known1 && known2 && x1 == x2:
		j.dest.SetExplicit(d, x1)
	case known1 && known2:
		j.update(Incomparable)
	case known2:
		j.update(LeftEntail)
	case known1:
		j.update(RightEntail)
	}
	return d, true, nil
}
