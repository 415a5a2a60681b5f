package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/umalloc/memutils"
)

func newTestArena(t *testing.T, capacity int) *Arena {
	arena, err := New(Options{Capacity: capacity})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, arena.Release())
	})

	return arena
}

func TestGrowPageAligned(t *testing.T) {
	arena := newTestArena(t, 64*1024)

	first, err := arena.Grow(16)
	require.NoError(t, err)
	require.Equal(t, Extent{ID: 0, Start: Base, End: Base + 16}, first)

	second, err := arena.Grow(4096 * 2)
	require.NoError(t, err)
	require.Equal(t, Extent{ID: 1, Start: Base + 4096, End: Base + 4096*3}, second)

	third, err := arena.Grow(100)
	require.NoError(t, err)
	require.Equal(t, Base+4096*3, third.Start)
	require.Equal(t, 100, third.Size())

	require.Equal(t, []Extent{first, second, third}, arena.Extents())
}

func TestGrowOutOfMemory(t *testing.T) {
	arena := newTestArena(t, 8192)

	_, err := arena.Grow(4096)
	require.NoError(t, err)

	_, err = arena.Grow(4097)
	require.ErrorIs(t, err, memutils.ErrOutOfMemory)

	extent, err := arena.Grow(4096)
	require.NoError(t, err)
	require.Equal(t, Base+4096, extent.Start)

	_, err = arena.Grow(1)
	require.ErrorIs(t, err, memutils.ErrOutOfMemory)
	require.Len(t, arena.Extents(), 2)
}

func TestGrowInvalidSize(t *testing.T) {
	arena := newTestArena(t, 8192)

	_, err := arena.Grow(0)
	require.ErrorIs(t, err, memutils.ErrInvalidSize)
	require.Empty(t, arena.Extents())
}

func TestInvalidPageSize(t *testing.T) {
	_, err := NewWithBuffer(make([]byte, 4096), Options{PageSize: 3000})
	require.ErrorIs(t, err, memutils.PowerOfTwoError)

	_, err = NewWithBuffer(make([]byte, 4096), Options{PageSize: 1 << 20})
	require.Error(t, err)
}

func TestWordRoundTrip(t *testing.T) {
	arena, err := NewWithBuffer(make([]byte, 8192), Options{PageSize: 1024})
	require.NoError(t, err)

	extent, err := arena.Grow(64)
	require.NoError(t, err)

	arena.PutWord(extent.Start, 0xdeadbeef)
	arena.PutWord(extent.Start.Add(8), 42)
	require.Equal(t, uint64(0xdeadbeef), arena.Word(extent.Start))
	require.Equal(t, uint64(42), arena.Word(extent.Start.Add(8)))

	require.Panics(t, func() {
		arena.Word(extent.End.Add(-4))
	})
	require.Panics(t, func() {
		arena.Word(Nil)
	})
}

func TestSlice(t *testing.T) {
	arena := newTestArena(t, 64*1024)

	first, err := arena.Grow(32)
	require.NoError(t, err)
	second, err := arena.Grow(32)
	require.NoError(t, err)

	buf, err := arena.Slice(first.Start.Add(16), 16)
	require.NoError(t, err)
	require.Len(t, buf, 16)
	buf[0] = 7
	require.Equal(t, uint64(7), arena.Word(first.Start.Add(16)))

	_, err = arena.Slice(first.Start.Add(16), 17)
	require.Error(t, err)

	_, err = arena.Slice(second.Start.Add(-8), 16)
	require.Error(t, err)
}

func TestSliceEmptyAtExtentEnd(t *testing.T) {
	arena := newTestArena(t, 64*1024)

	first, err := arena.Grow(32)
	require.NoError(t, err)
	_, err = arena.Grow(32)
	require.NoError(t, err)

	buf, err := arena.Slice(first.End, 0)
	require.NoError(t, err)
	require.NotNil(t, buf)
	require.Len(t, buf, 0)

	buf, err = arena.Slice(first.Start, 0)
	require.NoError(t, err)
	require.Len(t, buf, 0)

	// Past the end of the extent, in the gap before the next one
	_, err = arena.Slice(first.End.Add(16), 0)
	require.Error(t, err)

	_, err = arena.Slice(first.End, 1)
	require.Error(t, err)
}

func TestFindExtent(t *testing.T) {
	extents := []Extent{
		{ID: 0, Start: 0x10000, End: 0x10010},
		{ID: 1, Start: 0x11000, End: 0x12000},
		{ID: 2, Start: 0x12000, End: 0x14000},
	}

	extent, ok := FindExtent(extents, 0x10008)
	require.True(t, ok)
	require.Equal(t, 0, extent.ID)

	extent, ok = FindExtent(extents, 0x12000)
	require.True(t, ok)
	require.Equal(t, 2, extent.ID)

	_, ok = FindExtent(extents, 0x10010)
	require.False(t, ok)

	_, ok = FindExtent(extents, 0x14000)
	require.False(t, ok)

	_, ok = FindExtent(nil, 0x10000)
	require.False(t, ok)
}

func TestExtentContains(t *testing.T) {
	extent := Extent{Start: 0x11000, End: 0x12000}

	require.True(t, extent.Contains(0x11000, 0x1000))
	require.True(t, extent.Contains(0x11ff0, 16))
	require.False(t, extent.Contains(0x11ff0, 17))
	require.False(t, extent.Contains(0x10ff0, 16))
	require.True(t, extent.Contains(0x12000, 0))
}

func TestRelease(t *testing.T) {
	arena, err := New(Options{Capacity: 8192})
	require.NoError(t, err)

	_, err = arena.Grow(16)
	require.NoError(t, err)

	require.NoError(t, arena.Release())
	require.NoError(t, arena.Release())

	_, err = arena.Grow(16)
	require.Error(t, err)
}
