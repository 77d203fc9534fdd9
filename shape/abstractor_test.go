// ABOUTME: Tests for the abstraction driver and candidate ranking
// ABOUTME: Folds mixed list and tree heaps until no candidate remains

package shape

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek/heapshape/graph"
)

func quiet() Option {
	return WithLogger(slog.New(slog.DiscardHandler))
}

func TestBestCandidate(t *testing.T) {
	_, ok := best(nil)
	assert.False(t, ok)

	long := &ListCandidate{Head: 9, Length: 12}
	tree := &TreeCandidate{Root: 2, Depth: 3}
	list := &ListCandidate{Head: 5, Length: 3}

	c, ok := best([]Candidate{list, tree, long})
	require.True(t, ok)
	assert.Same(t, long, c)

	c, ok = best([]Candidate{list, tree})
	require.True(t, ok)
	assert.Same(t, tree, c, "equal scores prefer the lowest start")

	sameStart := &ListCandidate{Head: 2, Length: 3}
	c, ok = best([]Candidate{tree, sameStart})
	require.True(t, ok)
	assert.Same(t, sameStart, c, "then lists before trees")
}

func TestAbstractorDefaults(t *testing.T) {
	a := NewAbstractor()
	assert.Equal(t, DefaultListThreshold, a.listThreshold)
	assert.Equal(t, DefaultTreeMinDepth, a.treeMinDepth)
	assert.NotNil(t, a.log)

	a = NewAbstractor(WithListThreshold(3), WithTreeMinDepth(1), WithLogger(nil))
	assert.Equal(t, 3, a.listThreshold)
	assert.Equal(t, 1, a.treeMinDepth)
	assert.NotNil(t, a.log)
}

func TestAbstractorMixedHeap(t *testing.T) {
	m := graph.NewMemory()
	_, list := globalList(m, "list", 12, nodeSize, linkOffset)
	_, tree := completeTree(m, "tree", 0, linkOffset)

	a := NewAbstractor(quiet())
	require.Len(t, a.Candidates(m), 2)

	out, applied := a.Abstract(m)
	require.NoError(t, out.Verify())
	require.Len(t, applied, 2)
	assert.Equal(t, graph.KindList, applied[0].Kind())
	assert.Equal(t, graph.KindTree, applied[1].Kind())

	assert.Len(t, out.HeapObjects(), 3)
	seg, ok := target(out, list.Object, 0)
	require.True(t, ok)
	assert.Equal(t, 12, seg.List.Length)
	summary, ok := target(out, tree, 0)
	require.True(t, ok)
	assert.Equal(t, 3, summary.Tree.Depth)

	assert.Empty(t, a.Candidates(out))
	assert.Len(t, m.HeapObjects(), 12+7+1, "input keeps its nodes")
}

func TestAbstractorNothingToFold(t *testing.T) {
	m := graph.NewMemory()
	globalList(m, "list", 4, nodeSize, linkOffset)

	out, applied := NewAbstractor(quiet()).Abstract(m)
	assert.Empty(t, applied)
	assert.True(t, out.IsIdentical(m.SMG))
}

func TestAbstractorLowThreshold(t *testing.T) {
	m := graph.NewMemory()
	globalList(m, "list", 4, nodeSize, linkOffset)

	out, applied := NewAbstractor(quiet(), WithListThreshold(1)).Abstract(m)
	require.Len(t, applied, 1)
	assert.Len(t, out.HeapObjects(), 2)
}
