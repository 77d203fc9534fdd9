// ABOUTME: Breadth-first search for the pointer chains that keep an object reachable
// ABOUTME: Each path records the fields it follows from a global or stack region down to the target

package graph

import "slices"

// Path is a pointer chain ending at Target. Via lists the fields followed,
// nearest referrer first; the object of the last field is a root. An empty
// Via means Target is a root itself.
type Path struct {
	Target ObjID
	Via    []HVEdge
}

// Root returns the region the path starts from
func (p Path) Root() ObjID {
	if len(p.Via) == 0 {
		return p.Target
	}
	return p.Via[len(p.Via)-1].Object
}

// Objects returns the handles on the path from Target up to the root
func (p Path) Objects() []ObjID {
	ids := []ObjID{p.Target}
	for _, e := range p.Via {
		ids = append(ids, e.Object)
	}
	return ids
}

func (p Path) visits(id ObjID) bool {
	return id == p.Target || slices.ContainsFunc(p.Via, func(e HVEdge) bool { return e.Object == id })
}

// PathsToRoots returns at most limit shortest cycle-free paths from a global or
// stack region to from
func PathsToRoots(m *Memory, from ObjID, limit int) []Path {
	if limit <= 0 {
		return nil
	}

	roots := make(map[ObjID]bool)
	for _, id := range m.Roots() {
		roots[id] = true
	}
	if roots[from] {
		return []Path{{Target: from}}
	}

	reverse := BuildReverseEdges(m)
	var found []Path
	queue := []Path{{Target: from}}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		tip := p.Root()
		for _, e := range reverse[tip] {
			if p.visits(e.Object) {
				continue
			}
			next := Path{Target: from, Via: append(slices.Clip(p.Via), e)}
			if !roots[e.Object] {
				queue = append(queue, next)
				continue
			}
			found = append(found, next)
			if len(found) == limit {
				return found
			}
		}
	}
	return found
}
