// ABOUTME: Tests for the cached description loader
// ABOUTME: Checks digest keyed caching, copy semantics and error paths

package heapdump

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek/heapshape/graph"
)

func quietLoader(t *testing.T, size int) *Loader {
	t.Helper()
	l, err := NewLoader(size, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return l
}

func TestLoaderCaches(t *testing.T) {
	l := quietLoader(t, DefaultCacheSize)
	path := filepath.Join("testdata", "list.yaml")

	first, err := l.LoadFile(path)
	require.NoError(t, err)
	second, err := l.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Len())

	assert.NotSame(t, first, second)
	assert.NotEqual(t, first.ID(), second.ID())
	assert.True(t, first.IsIdentical(second.SMG))

	first.AddHeapObject(graph.NewRegion(8, "extra"))
	third, err := l.LoadFile(path)
	require.NoError(t, err)
	assert.True(t, third.IsIdentical(second.SMG), "cached graph is never handed out")

	_, err = l.LoadFile(filepath.Join("testdata", "pointer.json"))
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())
}

func TestLoaderEvicts(t *testing.T) {
	l := quietLoader(t, 1)
	for _, doc := range []string{"globals:\n  - {name: a, size: 8}\n", "globals:\n  - {name: b, size: 8}\n"} {
		_, err := l.Load(strings.NewReader(doc))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, l.Len())
}

func TestLoaderErrors(t *testing.T) {
	_, err := NewLoader(0, nil)
	require.Error(t, err)

	l := quietLoader(t, DefaultCacheSize)
	_, err = l.LoadFile(filepath.Join("testdata", "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = l.Load(strings.NewReader("nothing to see"))
	require.ErrorIs(t, err, ErrNoParser)
	assert.Equal(t, 0, l.Len(), "failures are not cached")
}
