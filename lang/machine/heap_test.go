package machine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeapNewStringAllocatesFromArena(t *testing.T) {
	h := NewHeap()
	defer h.Close()

	s := h.NewString("hello")
	require.Equal(t, "hello", s.String())
	require.Equal(t, 5, h.BytesUsed())
}

func TestHeapCollectSweepsUnreachableAndKeepsRoots(t *testing.T) {
	h := NewHeap()
	defer h.Close()

	kept := h.NewString("kept")
	_ = h.NewString("garbage")

	roots := func(mark func(Value)) {
		mark(FromObj(kept))
	}
	h.Collect(roots)

	require.Equal(t, len(kept.b), h.BytesUsed())
}

func TestHeapCollectRaisesThresholdAfterSweep(t *testing.T) {
	h := NewHeap()
	defer h.Close()

	before := h.threshold
	h.NewString("x")
	h.Collect(func(mark func(Value)) {})
	require.NotEqual(t, before, h.threshold)
	require.Equal(t, h.bytesUsed*2+100, h.threshold)
}

func TestHeapCloseRunsFinalizersAndUnmapsArenas(t *testing.T) {
	h := NewHeap()
	h.NewString("one")
	h.NewString("two")
	require.NoError(t, h.Close())
	require.Nil(t, h.arenas)
	require.Nil(t, h.finalizers)
}

func TestArenaAllocReusesFreedSpans(t *testing.T) {
	a, err := newArena(64)
	require.NoError(t, err)

	start1, ok := a.alloc(16)
	require.True(t, ok)
	a.release(start1, 16)

	start2, ok := a.alloc(16)
	require.True(t, ok)
	require.Equal(t, start1, start2)
}

func TestHeapNewImportStartsWithEmptyGlobals(t *testing.T) {
	h := NewHeap()
	defer h.Close()

	imp := h.NewImport("main")
	require.Equal(t, 0, imp.Globals.Count())
}
