// ABOUTME: Tests for list discovery and folding chains into list segments
// ABOUTME: Covers unknown ends, incompatible chains, aliasing and abstraction results

package shape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek/heapshape/graph"
)

func requireSingleList(t *testing.T, m *graph.Memory, threshold, length, offset int) *ListCandidate {
	t.Helper()
	candidates := FindListCandidates(m, threshold)
	require.Len(t, candidates, 1)
	assert.Equal(t, length, candidates[0].Length)
	assert.Equal(t, offset, candidates[0].Offset)
	return candidates[0]
}

func TestListCandidateCompatible(t *testing.T) {
	first := &ListCandidate{Head: 1, Size: 8, Offset: 4, Length: 2}
	second := &ListCandidate{Head: 2, Size: 8, Offset: 4, Length: 8}
	wide := &ListCandidate{Head: 3, Size: 16, Offset: 4, Length: 2}
	shifted := &ListCandidate{Head: 2, Size: 8, Offset: 6, Length: 2}

	assert.True(t, first.compatible(second))
	assert.True(t, second.compatible(first))
	assert.False(t, wide.compatible(first))
	assert.False(t, first.compatible(wide))
	assert.False(t, first.compatible(shifted))

	assert.Equal(t, graph.KindList, first.Kind())
	assert.Equal(t, graph.ObjID(1), first.Start())
	assert.Equal(t, 2, first.Score())
	assert.Equal(t, "SLL CANDIDATE(head=1, offset=4, length=2)", first.String())
}

func TestFindListSimple(t *testing.T) {
	m := graph.NewMemory()
	nodes, _ := globalList(m, "pointer", 5, nodeSize, linkOffset)

	c := requireSingleList(t, m, 1, 5, linkOffset)
	assert.Equal(t, nodes[0], c.Head)
	assert.Equal(t, nodeSize, c.Size)
}

func TestFindListDefaultThreshold(t *testing.T) {
	m := graph.NewMemory()
	globalList(m, "pointer", 11, nodeSize, linkOffset)
	requireSingleList(t, m, DefaultListThreshold, 11, linkOffset)

	short := graph.NewMemory()
	globalList(short, "pointer", 10, nodeSize, linkOffset)
	assert.Empty(t, FindListCandidates(short, DefaultListThreshold))
}

func TestFindListNullifiedEnd(t *testing.T) {
	m := graph.NewMemory()
	globalList(m, "pointer", 2, nodeSize, linkOffset)
	requireSingleList(t, m, 1, 2, linkOffset)
}

func TestFindListUnknownEnd(t *testing.T) {
	m := graph.NewMemory()
	nodes, _ := globalList(m, "list_1_", 3, nodeSize, linkOffset)

	tail := nodes[len(nodes)-1]
	m.ReplaceObjectHVs(tail, []graph.HVEdge{{Object: tail, Size: graph.PointerSize, Value: m.NewValue()}})

	requireSingleList(t, m, 1, 2, linkOffset)
}

func TestFindListIncompatibleChains(t *testing.T) {
	m := graph.NewMemory()
	_, wide := heapList(m, 3, 24, 0)
	nodes, _ := globalList(m, "list_2_", 3, nodeSize, linkOffset)

	tail := nodes[len(nodes)-1]
	m.ReplaceObjectHVs(tail, []graph.HVEdge{{Object: tail, Size: graph.PointerSize, Value: wide}})

	assert.Empty(t, FindListCandidates(m, 5))

	c := requireSingleList(t, m, 2, 3, 0)
	assert.Equal(t, 24, c.Size)

	assert.Len(t, FindListCandidates(m, 1), 2)
}

func TestFindListInboundPointers(t *testing.T) {
	m := graph.NewMemory()
	tailNodes, tail := heapList(m, 4, nodeSize, linkOffset)
	headNodes, _ := globalList(m, "head", 3, nodeSize, linkOffset)

	// head -> ... -> last -> inside -> tail -> ..., with inside and tail
	// both also held by globals
	inside := m.AddHeapObject(graph.NewRegion(nodeSize, "pointed_at"))
	m.AddHV(graph.HVEdge{Object: inside, Offset: linkOffset, Size: graph.PointerSize, Value: tail})
	last := headNodes[len(headNodes)-1]
	m.ReplaceObjectHVs(last, nil)
	address := connect(m, last, linkOffset, inside)
	m.AddHV(graph.HVEdge{Object: m.AddGlobal("inbound_pointer", graph.PointerSize), Size: graph.PointerSize, Value: address})
	m.AddHV(graph.HVEdge{Object: m.AddGlobal("tail_pointer", graph.PointerSize), Size: graph.PointerSize, Value: tail})

	candidates := FindListCandidates(m, 1)
	require.Len(t, candidates, 2)

	heads := map[int]graph.ObjID{}
	for _, c := range candidates {
		heads[c.Length] = c.Head
	}
	assert.Equal(t, map[int]graph.ObjID{3: headNodes[0], 4: tailNodes[0]}, heads)
}

func TestFindListSkipsAbstractAndFreedNodes(t *testing.T) {
	m := graph.NewMemory()
	nodes, _ := globalList(m, "pointer", 4, nodeSize, linkOffset)
	require.NoError(t, m.Free(nodes[2], 0))

	// The freed node ends the chain and loses its own link.
	requireSingleList(t, m, 1, 2, linkOffset)

	seg, _ := globalSegment(m, "segment", graph.NewList(nodeSize, linkOffset, 3))
	for _, c := range FindListCandidates(m, 0) {
		assert.NotEqual(t, seg, c.Head)
	}
}

func TestFindListSelfLoop(t *testing.T) {
	m := graph.NewMemory()
	node := m.AddHeapObject(graph.NewRegion(nodeSize, "loop"))
	connect(m, node, linkOffset, node)

	candidates := FindListCandidates(m, 0)
	require.Len(t, candidates, 1)
	assert.Equal(t, 1, candidates[0].Length)
}

func TestListAbstract(t *testing.T) {
	t.Run("segment before a stopper", func(t *testing.T) {
		const length = 18
		m := graph.NewMemory()
		nodes, root := globalList(m, "pointer", length+1, nodeSize, linkOffset)

		c := &ListCandidate{Head: nodes[0], Size: nodeSize, Offset: linkOffset, Length: length}
		out := c.Abstract(m)
		require.NoError(t, out.Verify())
		assert.Len(t, out.HeapObjects(), 3)

		pt, ok := out.PT(root.Value)
		require.True(t, ok)
		segment := out.Object(pt.Object)
		assert.Equal(t, graph.KindList, segment.Kind)
		assert.Equal(t, nodeSize, segment.Size)
		assert.Equal(t, length, segment.List.Length)
		assert.Equal(t, linkOffset, segment.List.Offset)

		outbound, ok := out.UniqueHV(graph.ObjectFilter(segment.ID))
		require.True(t, ok)
		assert.Equal(t, linkOffset, outbound.Offset)
		assert.Equal(t, graph.PointerSize, outbound.Size)

		stopper, ok := target(out, segment.ID, linkOffset)
		require.True(t, ok)
		assert.Equal(t, nodes[length], stopper.ID)
		assert.Equal(t, graph.KindRegion, stopper.Kind)
		end, ok := out.UniqueHV(graph.ObjectFilter(stopper.ID))
		require.True(t, ok)
		assert.Equal(t, graph.HVEdge{Object: stopper.ID, Offset: 0, Size: nodeSize, Value: graph.NullValue}, end)

		assert.Len(t, m.HeapObjects(), length+2, "input keeps its nodes")
	})

	t.Run("null terminated", func(t *testing.T) {
		m := graph.NewMemory()
		nodes, root := globalList(m, "pointer", 2, nodeSize, linkOffset)

		c := &ListCandidate{Head: nodes[0], Size: nodeSize, Offset: linkOffset, Length: 2}
		out := c.Abstract(m)
		require.NoError(t, out.Verify())
		assert.Len(t, out.HeapObjects(), 2)

		pt, ok := out.PT(root.Value)
		require.True(t, ok)
		segment := out.Object(pt.Object)
		assert.Equal(t, 2, segment.List.Length)
		outbound, ok := out.UniqueHV(graph.ObjectFilter(segment.ID))
		require.True(t, ok)
		assert.Equal(t, graph.HVEdge{Object: segment.ID, Offset: linkOffset, Size: graph.PointerSize, Value: graph.NullValue}, outbound)
	})

	t.Run("scalar sharing the link offset", func(t *testing.T) {
		m := graph.NewMemory()
		pointer := m.AddGlobal("pointer", graph.PointerSize)
		first := m.AddHeapObject(graph.NewRegion(nodeSize, "first"))
		m.AddHV(graph.HVEdge{Object: first, Offset: 0, Size: 4, Value: m.NewValue()})
		connect(m, pointer, 0, first)
		nodes, _ := heapList(m, 2, nodeSize, 0)
		connect(m, first, 0, nodes[0])

		c := &ListCandidate{Head: first, Size: nodeSize, Offset: 0, Length: 2}
		out := c.Abstract(m)

		seg, ok := target(out, pointer, 0)
		require.True(t, ok)
		assert.Equal(t, 2, seg.List.Length)
		stopper, ok := target(out, seg.ID, 0)
		require.True(t, ok)
		assert.Equal(t, nodes[1], stopper.ID)
	})
}

func TestTwentyNodeList(t *testing.T) {
	m := graph.NewMemory()
	_, root := globalList(m, "pointer", 20, nodeSize, linkOffset)

	// The null-terminated tail counts as a node of the chain, so all twenty
	// nodes fold into one segment and only it and the null object remain.
	c := requireSingleList(t, m, DefaultListThreshold, 20, linkOffset)
	out := c.Abstract(m)
	require.NoError(t, out.Verify())

	assert.Len(t, out.HeapObjects(), 2)
	seg, ok := target(out, root.Object, 0)
	require.True(t, ok)
	assert.Equal(t, graph.KindList, seg.Kind)
	assert.Equal(t, 20, seg.List.Length)

	out.PruneUnreachable()
	assert.False(t, out.HasLeaks())
}
