// ABOUTME: Tests for the field aligner and its postcondition check
// ABOUTME: Covers common null runs, implied null pointers, fresh values and status downgrades

package join

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek/heapshape/graph"
)

func TestCompatibleFieldsCommonNullRuns(t *testing.T) {
	m1, m2 := graph.NewMemory(), graph.NewMemory()
	o1 := m1.AddHeapObject(graph.NewRegion(22, "1"))
	o2 := m2.AddHeapObject(graph.NewRegion(22, "2"))
	for _, off := range []int{4, 14, 18} {
		store(m1, o1, off, 4, graph.NullValue)
	}
	for _, off := range []int{8, 12, 18} {
		store(m2, o2, off, 4, graph.NullValue)
	}

	got := compatibleFields(m1.SMG, m2.SMG, o1, o2, m1.NullBytes(o1), m2.NullBytes(o2))

	want := []graph.HVEdge{
		{Object: o1, Offset: 14, Size: 2, Value: graph.NullValue},
		{Object: o1, Offset: 18, Size: 4, Value: graph.NullValue},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("compatibleFields() mismatch (-want +got):\n%s", diff)
	}
}

func TestCompatibleFieldsImpliedNullPointer(t *testing.T) {
	m1, m2 := graph.NewMemory(), graph.NewMemory()
	o1 := m1.AddHeapObject(graph.NewRegion(8, "1"))
	o2 := m2.AddHeapObject(graph.NewRegion(8, "2"))
	store(m1, o1, 0, 8, graph.NullValue)
	v := m2.NewValue()
	store(m2, o2, 2, 4, v)

	got := compatibleFields(m1.SMG, m2.SMG, o1, o2, m1.NullBytes(o1), m2.NullBytes(o2))
	assert.Empty(t, got, "a non-pointer does not imply a null field")

	m2.AddPT(graph.PTEdge{Value: v, Object: o2})
	got = compatibleFields(m1.SMG, m2.SMG, o1, o2, m1.NullBytes(o1), m2.NullBytes(o2))
	require.Len(t, got, 1)
	assert.Equal(t, graph.HVEdge{Object: o1, Offset: 2, Size: 4, Value: graph.NullValue}, got[0])
}

func TestAlignFieldsSynthesisesMissingFields(t *testing.T) {
	m1, m2 := graph.NewMemory(), graph.NewMemory()
	o1 := m1.AddHeapObject(graph.NewRegion(16, "object"))
	o2 := m2.AddHeapObject(graph.NewRegion(16, "object"))
	v1, v2 := m1.NewValue(), m1.NewValue()
	store(m1, o1, 0, 4, v1)
	store(m1, o1, 2, 4, v2)
	store(m1, o1, 4, 4, graph.NullValue)

	status := AlignFields(m1.SMG, m2.SMG, o1, o2)

	assert.Equal(t, RightEntail, status, "the left side lost its null bytes")
	want := []fieldKey{{0, 4}, {2, 4}}
	assert.Equal(t, want, fieldKeys(m1, o1))
	assert.Equal(t, want, fieldKeys(m2, o2))

	seen := map[graph.ValueID]bool{}
	for _, e := range m2.HVs(graph.ObjectFilter(o2)) {
		assert.NotEqual(t, graph.NullValue, e.Value)
		assert.False(t, seen[e.Value], "each synthesised field gets its own value")
		seen[e.Value] = true
	}
	assert.NoError(t, CheckAligned(m1.SMG, m2.SMG, o1, o2))
}

func TestAlignFieldsKeepsSharedFields(t *testing.T) {
	m1, m2 := graph.NewMemory(), graph.NewMemory()
	g1 := m1.AddGlobal("object", 8)
	g2 := m2.AddGlobal("object", 8)
	store(m1, g1, 0, 4, m1.NewValue())

	AlignFields(m1.SMG, m2.SMG, g1, g2)
	assert.Len(t, m2.HVs(graph.ObjectFilter(g2)), 1)

	m2.ReplaceObjectHVs(g2, nil)
	AlignFields(m2.SMG, m1.SMG, g2, g1)
	assert.Len(t, m2.HVs(graph.ObjectFilter(g2)), 1, "alignment is symmetric")
}

func TestAlignFieldsStatus(t *testing.T) {
	nulls := map[string][][2]int{
		"04": {{0, 4}},
		"48": {{4, 4}},
		"26": {{2, 4}},
		"08": {{0, 4}, {4, 4}},
	}
	build := func(name string) (*graph.Memory, graph.ObjID) {
		m := graph.NewMemory()
		obj := m.AddHeapObject(graph.NewRegion(8, "object"))
		for _, f := range nulls[name] {
			store(m, obj, f[0], f[1], graph.NullValue)
		}
		return m, obj
	}

	tests := []struct {
		left, right string
		want        Status
	}{
		{"04", "48", Incomparable},
		{"04", "26", Incomparable},
		{"04", "08", LeftEntail},
		{"48", "04", Incomparable},
		{"48", "26", Incomparable},
		{"48", "08", LeftEntail},
		{"26", "04", Incomparable},
		{"26", "48", Incomparable},
		{"26", "08", LeftEntail},
		{"08", "04", RightEntail},
		{"08", "48", RightEntail},
		{"08", "26", RightEntail},
		{"08", "08", Equal},
	}

	for _, tt := range tests {
		t.Run(tt.left+"_"+tt.right, func(t *testing.T) {
			m1, o1 := build(tt.left)
			m2, o2 := build(tt.right)

			assert.Equal(t, tt.want, AlignFields(m1.SMG, m2.SMG, o1, o2))
			assert.Equal(t, fieldKeys(m1, o1), fieldKeys(m2, o2))
			assert.NoError(t, CheckAligned(m1.SMG, m2.SMG, o1, o2))
		})
	}
}

func TestAlignFieldsRejectsSizeMismatch(t *testing.T) {
	m1, m2 := graph.NewMemory(), graph.NewMemory()
	o1 := m1.AddHeapObject(graph.NewRegion(8, "1"))
	o2 := m2.AddHeapObject(graph.NewRegion(12, "2"))

	assert.Panics(t, func() { AlignFields(m1.SMG, m2.SMG, o1, o2) })
}

func TestAlignFieldsRejectsAbsentObject(t *testing.T) {
	m1, m2 := graph.NewMemory(), graph.NewMemory()
	o2 := m2.AddHeapObject(graph.NewRegion(8, "2"))

	assert.Panics(t, func() { AlignFields(m1.SMG, m2.SMG, o2+5, o2) })
}

func TestCheckAligned(t *testing.T) {
	tests := []struct {
		name    string
		build   func(m1, m2 *graph.Memory, o1, o2 graph.ObjID)
		wantErr bool
	}{
		{
			name: "matching scalar fields",
			build: func(m1, m2 *graph.Memory, o1, o2 graph.ObjID) {
				store(m1, o1, 0, 4, m1.NewValue())
				store(m2, o2, 0, 4, m2.NewValue())
			},
		},
		{
			name: "matching null fields of several sizes",
			build: func(m1, m2 *graph.Memory, o1, o2 graph.ObjID) {
				for _, m := range []*graph.Memory{m1, m2} {
					o := o1
					if m == m2 {
						o = o2
					}
					store(m, o, 8, 4, graph.NullValue)
					store(m, o, 12, 4, graph.NullValue)
					store(m, o, 8, 8, graph.NullValue)
				}
			},
		},
		{
			name: "null paired with pointer",
			build: func(m1, m2 *graph.Memory, o1, o2 graph.ObjID) {
				store(m1, o1, 16, 4, pointTo(m1, o1, 0))
				store(m2, o2, 16, 4, graph.NullValue)
			},
		},
		{
			name: "field on one side only",
			build: func(m1, m2 *graph.Memory, o1, o2 graph.ObjID) {
				store(m1, o1, 0, 4, m1.NewValue())
			},
			wantErr: true,
		},
		{
			name: "same offset different size",
			build: func(m1, m2 *graph.Memory, o1, o2 graph.ObjID) {
				store(m1, o1, 0, 4, graph.NullValue)
				store(m2, o2, 0, 8, graph.NullValue)
			},
			wantErr: true,
		},
		{
			name: "split null against one wide null",
			build: func(m1, m2 *graph.Memory, o1, o2 graph.ObjID) {
				store(m1, o1, 0, 4, graph.NullValue)
				store(m1, o1, 4, 4, graph.NullValue)
				store(m2, o2, 0, 8, graph.NullValue)
			},
			wantErr: true,
		},
		{
			name: "null paired with scalar",
			build: func(m1, m2 *graph.Memory, o1, o2 graph.ObjID) {
				store(m1, o1, 0, 4, graph.NullValue)
				store(m2, o2, 0, 4, m2.NewValue())
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m1, m2 := graph.NewMemory(), graph.NewMemory()
			o1 := m1.AddHeapObject(graph.NewRegion(32, "1"))
			o2 := m2.AddHeapObject(graph.NewRegion(32, "2"))
			tt.build(m1, m2, o1, o2)

			err := CheckAligned(m1.SMG, m2.SMG, o1, o2)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrMisaligned), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
