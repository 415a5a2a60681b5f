package umalloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFillPatterns(t *testing.T) {
	if !InitializeAllocs {
		t.Skip("allocations are only filled with the debug_init_allocs build tag")
	}

	heap, allocator := readyAllocator(t, 1024*1024, CreateOptions{Flags: AllocatorCreateNoMerge})

	ptr, err := allocator.Allocate(40)
	require.NoError(t, err)

	data, err := heap.Slice(ptr, 48)
	require.NoError(t, err)
	for _, b := range data {
		require.Equal(t, createdFillPattern, b)
	}

	require.NoError(t, allocator.Free(ptr))
	for _, b := range data {
		require.Equal(t, destroyedFillPattern, b)
	}
}

func TestFillZeroByteAllocation(t *testing.T) {
	if !InitializeAllocs {
		t.Skip("allocations are only filled with the debug_init_allocs build tag")
	}

	_, allocator := readyAllocator(t, 1024*1024, CreateOptions{})

	ptr, err := allocator.Allocate(0)
	require.NoError(t, err)

	data, err := allocator.Bytes(ptr)
	require.NoError(t, err)
	require.Len(t, data, 0)

	require.NoError(t, allocator.Free(ptr))
}
