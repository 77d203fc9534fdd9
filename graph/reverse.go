// ABOUTME: Inverted pointer index over a graph
// ABOUTME: Maps each object to the fields whose value points into it

package graph

// ReverseEdges maps each object to the fields whose value points into it
type ReverseEdges map[ObjID][]HVEdge

// BuildReverseEdges indexes every has-value edge by the object its value addresses
func BuildReverseEdges(g Graph) ReverseEdges {
	targets := make(map[ValueID]ObjID)
	for _, pt := range g.PTs() {
		targets[pt.Value] = pt.Object
	}

	reverse := make(ReverseEdges)
	for _, e := range g.HVs(Filter{}) {
		if target, ok := targets[e.Value]; ok {
			reverse[target] = append(reverse[target], e)
		}
	}
	return reverse
}

// ValueUses counts the fields holding each value
func ValueUses(g Graph) map[ValueID]int {
	uses := make(map[ValueID]int)
	for _, e := range g.HVs(Filter{}) {
		uses[e.Value]++
	}
	return uses
}
