// ABOUTME: Reachability from variable roots and removal of unreachable memory
// ABOUTME: Dropping a still-valid object raises the leak flag

package graph

// Reachable returns the objects and values reachable from roots by following
// has-value edges and then the points-to edge of each held value
func Reachable(g Graph, roots []ObjID) (map[ObjID]bool, map[ValueID]bool) {
	targets := make(map[ValueID]ObjID)
	for _, pt := range g.PTs() {
		targets[pt.Value] = pt.Object
	}

	objects := make(map[ObjID]bool)
	values := make(map[ValueID]bool)
	queue := make([]ObjID, 0, len(roots))
	for _, id := range roots {
		if !objects[id] {
			objects[id] = true
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		for _, e := range g.HVs(ObjectFilter(id)) {
			values[e.Value] = true
			target, ok := targets[e.Value]
			if !ok || objects[target] {
				continue
			}
			objects[target] = true
			queue = append(queue, target)
		}
	}

	return objects, values
}

// PruneUnreachable deletes every non-null object and value not reachable from
// a global or stack region, along with their edges
func (m *Memory) PruneUnreachable() {
	objects, values := Reachable(m, m.Roots())

	for _, id := range m.Objects() {
		if id == NullObject || objects[id] {
			continue
		}
		if m.IsValid(id) {
			m.leaked = true
		}
		delete(m.heap, id)
		m.RemoveObjectAndEdges(id)
	}

	for _, v := range m.Values() {
		if v == NullValue || values[v] {
			continue
		}
		m.RemovePT(v)
		m.RemoveValue(v)
	}

	m.check()
}
